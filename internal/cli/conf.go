package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/metadata"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

func newConfCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conf <target>",
		Short: "Print the apt-ftparchive configurations of an APT target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			targets, err := cfg.SelectTargets(args)
			if err != nil {
				return &models.PublishError{Type: models.ErrInvalidConfig, Err: err}
			}

			repo := metadata.Repository{
				Origin:      cfg.Repository.Origin,
				Label:       cfg.Repository.Label,
				Description: cfg.Repository.Description,
			}
			printed := 0
			out := cmd.OutOrStdout()
			for _, t := range targets {
				if t.Family != models.FamilyAPT {
					continue
				}
				fmt.Fprintf(out, "# %s: apt-ftparchive generate\n", t.ID())
				fmt.Fprintln(out, metadata.GenerateConf(t.Codename, t.Component, t.Architectures))
				fmt.Fprintf(out, "# %s: apt-ftparchive release\n", t.ID())
				fmt.Fprintln(out, metadata.ReleaseConf(repo.ReleaseDescription(t)))
				printed++
			}
			if printed == 0 {
				return &models.PublishError{
					Type: models.ErrInvalidConfig,
					Err:  errors.Newf("%s selects no APT target", args[0]),
				}
			}
			return nil
		},
	}
}

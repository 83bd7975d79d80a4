package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/publisher"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
)

func newSignCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <dir>",
		Short: "Sign every unsigned package below a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			b, err := publisher.NewBatchSigner(cfg, runner.NewExecRunner(opts.verbose), opts.progress)
			if err != nil {
				return &models.PublishError{Type: models.ErrSigning, Err: err}
			}

			report, err := b.Sign(cmd.Context(), args[0])
			if err != nil {
				return &models.PublishError{Type: models.ErrSigning, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d checked, %d already signed, %d signed\n",
				report.Checked, len(report.Signed), len(report.Unsigned))
			for _, path := range report.Unsigned {
				fmt.Fprintf(cmd.OutOrStdout(), "signed %s\n", path)
			}
			return nil
		},
	}
}

package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/distmerge"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <base> <new> <merged>",
		Short: "Merge two APT dists/<codename> trees",
		Long: `Writes the union of the base and new dists trees into merged, which must
not exist or be empty. The merged Release is unsigned.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, incoming, merged := args[0], args[1], args[2]
			if err := distmerge.NewMerger().Merge(cmd.Context(), base, incoming, merged); err != nil {
				return &models.PublishError{Type: models.ErrMerge, Err: err}
			}
			if err := distmerge.CheckSuperset(base, merged); err != nil {
				return &models.PublishError{Type: models.ErrMerge, Err: err}
			}
			logrus.Infof("Merged %s and %s into %s", base, incoming, merged)
			return nil
		},
	}
}

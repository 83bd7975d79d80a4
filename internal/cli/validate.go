package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and list the targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range cfg.Targets() {
				fmt.Fprintf(out, "%s\t%s\n", t, strings.Join(t.Architectures, " "))
			}
			fmt.Fprintf(out, "configuration %s is valid\n", opts.configPath)
			return nil
		},
	}
}

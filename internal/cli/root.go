package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/config"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/logging"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
	parallel   int
	workers    int
	progress   bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "repopub",
		Short: "Publish signed APT and Yum repositories incrementally",
		Long: `Repopub merges newly uploaded packages into published APT and Yum
repositories. Each run fetches the published metadata and the incoming
packages, signs what is unsigned, regenerates and merges the metadata,
signs the manifests and uploads packages before metadata.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			if opts.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "repopub.toml", "Configuration file (TOML or YAML)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.IntVar(&opts.parallel, "parallel", 0, "Targets processed concurrently (overrides config)")
	flags.IntVar(&opts.workers, "workers", 0, "Signature check workers per batch (overrides config)")
	flags.BoolVar(&opts.progress, "progress", false, "Show transfer and signing progress")

	// Add subcommands
	rootCmd.AddCommand(
		newPublishCmd(opts),
		newRecoverCmd(opts),
		newSignCmd(opts),
		newMergeCmd(),
		newConfCmd(opts),
		newValidateCmd(opts),
	)

	return rootCmd
}

// loadConfig reads and validates the configuration, applies flag
// overrides and configures logging.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, &models.PublishError{Type: models.ErrInvalidConfig, Err: err}
	}

	if opts.parallel > 0 {
		cfg.Parallel = opts.parallel
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Check(); err != nil {
		return nil, &models.PublishError{
			Type: models.ErrInvalidConfig,
			Err:  errors.Wrapf(err, "invalid configuration %s", opts.configPath),
		}
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}); err != nil {
		return nil, &models.PublishError{Type: models.ErrInvalidConfig, Err: err}
	}

	logrus.Debugf("Configuration: %+v", cfg)
	return cfg, nil
}

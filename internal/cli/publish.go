package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/config"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/lock"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/publisher"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
)

type runFunc func(p *publisher.Publisher, ctx context.Context, targets []models.Target) ([]publisher.TargetReport, error)

func newPublishCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [target...]",
		Short: "Publish incoming packages",
		Long: `Publishes the incoming packages of every configured target, or of the
targets named by id ("apt-debian-bookworm"), family ("yum") or
distribution ("almalinux").`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTargets(cmd, opts, args, (*publisher.Publisher).Run)
		},
	}
}

func newRecoverCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover [target...]",
		Short: "Regenerate published metadata from the full package pool",
		Long: `Downloads the complete published pool of each selected target,
rebuilds its metadata from scratch, signs it and uploads the metadata.
Use it when the published metadata is damaged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTargets(cmd, opts, args, (*publisher.Publisher).Recover)
		},
	}
}

func runTargets(cmd *cobra.Command, opts *globalOptions, filters []string, run runFunc) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	targets, err := cfg.SelectTargets(filters)
	if err != nil {
		return &models.PublishError{Type: models.ErrInvalidConfig, Err: err}
	}

	unlock, err := lock.Acquire(cfg.WorkDir)
	if err != nil {
		return &models.PublishError{Type: models.ErrFileOp, Err: err}
	}
	defer func() {
		if err := unlock(); err != nil {
			logrus.Warnf("Failed to release lock: %v", err)
		}
	}()

	pub, err := newPublisher(cfg, opts)
	if err != nil {
		return err
	}

	logrus.Infof("Processing %d target(s)", len(targets))
	reports, runErr := run(pub, cmd.Context(), targets)
	printReports(cmd.OutOrStdout(), reports)
	return runErr
}

func newPublisher(cfg *config.Config, opts *globalOptions) (*publisher.Publisher, error) {
	pub, err := publisher.New(cfg, runner.NewExecRunner(opts.verbose), opts.progress)
	if err != nil {
		return nil, &models.PublishError{Type: models.ErrSigning, Err: err}
	}
	return pub, nil
}

func printReports(w io.Writer, reports []publisher.TargetReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSTAGE\tSIGNED\tTIME\tERROR")
	for _, r := range reports {
		errText := "-"
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.Target.ID(), r.Stage, r.Resigned, r.Duration.Round(time.Millisecond), errText)
	}
	tw.Flush()
}

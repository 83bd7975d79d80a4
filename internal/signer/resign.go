package signer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
	"github.com/sirupsen/logrus"
)

// runToCompletion runs cmd unless ctx is already done. Once started, the
// signing tool rewrites files in place and must not be interrupted, so
// later cancellation of ctx is ignored.
func runToCompletion(ctx context.Context, r runner.Runner, cmd runner.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.Run(context.WithoutCancel(ctx), cmd)
	return err
}

// RPMResigner signs RPM packages with `rpm --resign`.
type RPMResigner struct {
	Runner runner.Runner
	KeyID  string
}

// Args returns the rpm arguments for signing paths.
func (r *RPMResigner) Args(paths []string) []string {
	args := []string{
		"-D", "_gpg_name " + r.KeyID,
		"-D", "_gpg_digest_algo sha256",
		"-D", "__gpg_check_password_cmd /bin/true true",
		"--resign",
	}
	return append(args, paths...)
}

// Resign implements Resigner
func (r *RPMResigner) Resign(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	logrus.Infof("Signing %d RPM package(s) with %s", len(paths), r.KeyID)
	if err := runToCompletion(ctx, r.Runner, runner.Command{Name: "rpm", Args: r.Args(paths)}); err != nil {
		return errors.Wrap(err, "rpm --resign failed")
	}
	return nil
}

// DebResigner signs source packages and uploads with debsign.
type DebResigner struct {
	Runner runner.Runner
	KeyID  string
}

// Args returns the debsign arguments for signing paths.
func (r *DebResigner) Args(paths []string) []string {
	args := []string{"--no-re-sign", "-k" + r.KeyID}
	return append(args, paths...)
}

// Resign implements Resigner
func (r *DebResigner) Resign(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	logrus.Infof("Signing %d source file(s) with %s", len(paths), r.KeyID)
	if err := runToCompletion(ctx, r.Runner, runner.Command{Name: "debsign", Args: r.Args(paths)}); err != nil {
		return errors.Wrap(err, "debsign failed")
	}
	return nil
}

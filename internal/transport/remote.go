package transport

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
)

// EnsureRemoteDir creates dir on the remote side by syncing an empty
// local directory to it.
func EnsureRemoteDir(ctx context.Context, s Syncer, scratch, dir string) error {
	if err := os.RemoveAll(scratch); err != nil {
		return errors.Wrapf(err, "failed to reset %s", scratch)
	}
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", scratch)
	}
	defer os.RemoveAll(scratch)

	return s.Sync(ctx, Spec{Source: Dir(scratch), Dest: Dir(dir)})
}

// Purge empties dir on the remote side by syncing an empty local
// directory to it with --delete.
func Purge(ctx context.Context, s Syncer, scratch, dir string) error {
	if err := os.RemoveAll(scratch); err != nil {
		return errors.Wrapf(err, "failed to reset %s", scratch)
	}
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", scratch)
	}

	return s.Sync(ctx, Spec{Source: Dir(scratch), Dest: Dir(dir), Delete: true})
}

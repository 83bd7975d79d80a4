// Package transport mirrors directory trees between the work area and
// the public repository host.
package transport

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
)

// Spec describes one directory synchronization. Source and Dest follow
// rsync conventions: a trailing slash on Source copies its contents.
type Spec struct {
	Source         string
	Dest           string
	Delete         bool
	DeleteExcluded bool
	Includes       []string
	Excludes       []string
}

// Syncer copies trees between local and remote locations.
type Syncer interface {
	Sync(ctx context.Context, spec Spec) error
}

// RsyncSyncer implements Syncer with rsync.
type RsyncSyncer struct {
	Runner runner.Runner
	// Binary defaults to "rsync".
	Binary string
	// Progress adds --progress to every invocation.
	Progress bool
}

// NewRsyncSyncer creates an rsync-backed syncer.
func NewRsyncSyncer(r runner.Runner, progress bool) *RsyncSyncer {
	return &RsyncSyncer{Runner: r, Binary: "rsync", Progress: progress}
}

// Args returns the rsync command line for spec, without the binary.
func (s *RsyncSyncer) Args(spec Spec) []string {
	args := []string{"-avz"}
	if s.Progress {
		args = append(args, "--progress")
	}
	if spec.Delete {
		args = append(args, "--delete")
	}
	if spec.DeleteExcluded {
		args = append(args, "--delete-excluded")
	}
	for _, inc := range spec.Includes {
		args = append(args, "--include="+inc)
	}
	for _, exc := range spec.Excludes {
		args = append(args, "--exclude="+exc)
	}
	return append(args, spec.Source, spec.Dest)
}

// Sync implements Syncer. Local destinations are created first.
func (s *RsyncSyncer) Sync(ctx context.Context, spec Spec) error {
	if spec.Source == "" || spec.Dest == "" {
		return errors.New("rsync source and destination are required")
	}
	if !IsRemote(spec.Dest) {
		if err := os.MkdirAll(strings.TrimSuffix(spec.Dest, "/"), 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", spec.Dest)
		}
	}

	binary := s.Binary
	if binary == "" {
		binary = "rsync"
	}

	logrus.Debugf("Syncing %s -> %s", spec.Source, spec.Dest)
	if _, err := s.Runner.Run(ctx, runner.Command{Name: binary, Args: s.Args(spec)}); err != nil {
		return errors.Wrapf(err, "failed to sync %s to %s", spec.Source, spec.Dest)
	}
	return nil
}

// IsRemote reports whether location uses rsync's host:path syntax.
func IsRemote(location string) bool {
	if strings.HasPrefix(location, "/") || strings.HasPrefix(location, ".") {
		return false
	}
	colon := strings.Index(location, ":")
	return colon > 0 && !strings.Contains(location[:colon], "/")
}

// Join appends slash separated elements to a local or remote base.
// A trailing slash on the last element is kept.
func Join(base string, elem ...string) string {
	out := strings.TrimSuffix(base, "/")
	for _, e := range elem {
		e = strings.Trim(e, "/")
		if e == "" {
			continue
		}
		out += "/" + e
	}
	if len(elem) > 0 && strings.HasSuffix(elem[len(elem)-1], "/") {
		out += "/"
	}
	return out
}

// Dir returns location with exactly one trailing slash, which makes rsync
// copy the directory's contents.
func Dir(location string) string {
	return strings.TrimSuffix(location, "/") + "/"
}

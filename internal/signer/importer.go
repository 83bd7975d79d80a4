package signer

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// RPMKeyImporter imports the signing key into the rpm database when it is
// not there yet. Concurrent callers share one import.
type RPMKeyImporter struct {
	Runner runner.Runner
	KeyID  string

	// ExportedKey, when set, is imported instead of `gpg --export` output.
	ExportedKey []byte

	group singleflight.Group
	mu    sync.Mutex
	done  bool
}

// NewRPMKeyImporter creates an importer for keyID
func NewRPMKeyImporter(r runner.Runner, keyID string) *RPMKeyImporter {
	return &RPMKeyImporter{Runner: r, KeyID: keyID}
}

// EnsureTrusted implements KeyTruster
func (i *RPMKeyImporter) EnsureTrusted(ctx context.Context) error {
	i.mu.Lock()
	done := i.done
	i.mu.Unlock()
	if done {
		return nil
	}

	_, err, _ := i.group.Do(i.KeyID, func() (interface{}, error) {
		if err := i.ensure(ctx); err != nil {
			return nil, err
		}
		i.mu.Lock()
		i.done = true
		i.mu.Unlock()
		return nil, nil
	})
	return err
}

func (i *RPMKeyImporter) ensure(ctx context.Context) error {
	short := strings.ToLower(models.ShortKeyID(i.KeyID))
	_, err := i.Runner.Run(ctx, runner.Command{
		Name: "rpm",
		Args: []string{"-q", "gpg-pubkey-" + short},
	})
	if err == nil {
		logrus.Debugf("Key %s already in rpm database", short)
		return nil
	}
	if !runner.IsExitError(err) {
		return errors.Wrap(err, "failed to query rpm keys")
	}

	armored := i.ExportedKey
	if len(armored) == 0 {
		var buf bytes.Buffer
		if _, err := i.Runner.Run(ctx, runner.Command{
			Name:   "gpg",
			Args:   []string{"--armor", "--export", i.KeyID},
			Stdout: &buf,
		}); err != nil {
			return errors.Wrapf(err, "failed to export key %s", i.KeyID)
		}
		armored = buf.Bytes()
	}
	if len(bytes.TrimSpace(armored)) == 0 {
		return errors.Newf("key %s is not in the gpg keyring", i.KeyID)
	}

	tmp, err := os.CreateTemp("", "repopub-key-*.asc")
	if err != nil {
		return errors.Wrap(err, "failed to create key file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(armored); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write key file")
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	logrus.Infof("Importing key %s into rpm database", short)
	if _, err := i.Runner.Run(ctx, runner.Command{
		Name: "rpm",
		Args: []string{"--import", tmp.Name()},
	}); err != nil {
		return errors.Wrapf(err, "failed to import key %s", i.KeyID)
	}
	return nil
}

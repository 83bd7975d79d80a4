package signer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/stretchr/testify/require"
)

var (
	keysOnce  sync.Once
	keysErr   error
	repoKey   *openpgp.Entity
	strangerK *openpgp.Entity
)

func testKeys(t *testing.T) (*openpgp.Entity, *openpgp.Entity) {
	t.Helper()
	keysOnce.Do(func() {
		cfg := &packet.Config{RSABits: 2048}
		repoKey, keysErr = openpgp.NewEntity("Repository Signing", "", "packages@example.org", cfg)
		if keysErr != nil {
			return
		}
		strangerK, keysErr = openpgp.NewEntity("Somebody Else", "", "else@example.org", cfg)
	})
	require.NoError(t, keysErr)
	return repoKey, strangerK
}

func publicKeyring(t *testing.T, entities ...*openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, e := range entities {
		require.NoError(t, armorEntity(&buf, e))
	}
	return buf.Bytes()
}

func writePrivateKey(t *testing.T, e *openpgp.Entity) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, e.SerializePrivate(w, nil))
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "signing.asc")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type mapChecker struct {
	mu      sync.Mutex
	signed  map[string]bool
	fail    map[string]error
	checked []string
}

func (c *mapChecker) IsSigned(_ context.Context, a models.Artifact) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked = append(c.checked, a.Path)
	if err := c.fail[a.Path]; err != nil {
		return false, err
	}
	return c.signed[a.Path], nil
}

type recordingResigner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recordingResigner) Resign(_ context.Context, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), paths...))
	return r.err
}

type countingTruster struct {
	calls int
	err   error
}

func (c *countingTruster) EnsureTrusted(context.Context) error {
	c.calls++
	return c.err
}

// signingResigner marks every resigned path as signed in checker.
type signingResigner struct {
	recordingResigner
	checker *mapChecker
}

func (r *signingResigner) Resign(ctx context.Context, paths []string) error {
	if err := r.recordingResigner.Resign(ctx, paths); err != nil {
		return err
	}
	r.checker.mu.Lock()
	defer r.checker.mu.Unlock()
	for _, p := range paths {
		r.checker.signed[p] = true
	}
	return nil
}

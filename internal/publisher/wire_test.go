package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/config"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/distmerge"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner/runnertest"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/signer"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.WorkDir = t.TempDir()
	cfg.Remote = remote
	cfg.Signing.KeyID = "50785E2340D629B2B9823F39807C619DF72898CB"
	cfg.APT.Targets = []config.APTTarget{{Distribution: "debian", Codename: "bookworm", Component: "main"}}
	return cfg
}

func TestNewWiresToolBackends(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, runnertest.New(), false)
	require.NoError(t, err)

	assert.IsType(t, &signer.GPGSigner{}, p.Releases)
	assert.IsType(t, &distmerge.Merger{}, p.Merger)

	yum, ok := p.YumSigner.(*signer.BatchSigner)
	require.True(t, ok)
	assert.NotNil(t, yum.Trust)
	require.Len(t, yum.Families, 1)
	assert.Equal(t, "rpm", yum.Families[0].Name)

	apt, ok := p.APTSigner.(*signer.BatchSigner)
	require.True(t, ok)
	assert.Nil(t, apt.Trust)
	require.Len(t, apt.Families, 1)
	assert.Equal(t, "deb", apt.Families[0].Name)
}

func TestNewUsesMergeCommand(t *testing.T) {
	cfg := testConfig(t)
	cfg.Merge.Command = "apt-dists-merge --verbose"

	p, err := New(cfg, runnertest.New(), false)
	require.NoError(t, err)
	m, ok := p.Merger.(*distmerge.CommandMerger)
	require.True(t, ok)
	assert.Equal(t, "apt-dists-merge --verbose", m.Command)
}

func TestNewRejectsMissingNativeKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Signing.Backend = config.BackendNative
	cfg.Signing.KeyFile = t.TempDir() + "/missing.asc"

	_, err := New(cfg, runnertest.New(), false)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Signing.Checker = config.CheckerNative
	cfg.Signing.PublicKeyFile = t.TempDir() + "/missing.asc"
	_, err = New(cfg, runnertest.New(), false)
	assert.Error(t, err)
}

func TestNewBatchSignerCoversBothFamilies(t *testing.T) {
	b, err := NewBatchSigner(testConfig(t), runnertest.New(), false)
	require.NoError(t, err)
	require.Len(t, b.Families, 2)
	assert.Equal(t, "rpm", b.Families[0].Name)
	assert.Equal(t, "deb", b.Families[1].Name)
}

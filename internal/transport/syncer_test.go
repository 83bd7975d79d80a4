package transport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner/runnertest"
)

func TestRsyncArgs(t *testing.T) {
	s := NewRsyncSyncer(runnertest.New(), false)

	args := s.Args(Spec{
		Source:         "packages@example.org:public/incoming/debian/",
		Dest:           "/work/incoming/debian",
		Delete:         true,
		DeleteExcluded: true,
		Includes:       []string{"pool/", "pool/bookworm/", "pool/bookworm/**"},
		Excludes:       []string{"*"},
	})

	assert.Equal(t, []string{
		"-avz",
		"--delete",
		"--delete-excluded",
		"--include=pool/",
		"--include=pool/bookworm/",
		"--include=pool/bookworm/**",
		"--exclude=*",
		"packages@example.org:public/incoming/debian/",
		"/work/incoming/debian",
	}, args)
}

func TestSyncCreatesLocalDestination(t *testing.T) {
	fake := runnertest.New()
	s := NewRsyncSyncer(fake, true)
	dest := filepath.Join(t.TempDir(), "base", "debian", "dists", "bookworm")

	require.NoError(t, s.Sync(context.Background(), Spec{Source: "host:public/debian/dists/bookworm/", Dest: dest}))

	assert.DirExists(t, dest)
	calls := fake.CallsTo("rsync")
	require.Len(t, calls, 1)
	assert.True(t, runnertest.HasArg(calls[0], "--progress"))
}

func TestSyncFailure(t *testing.T) {
	fake := runnertest.New()
	fake.Handle("rsync", runnertest.Fail(23, "some files could not be transferred"))
	s := NewRsyncSyncer(fake, false)

	err := s.Sync(context.Background(), Spec{Source: t.TempDir() + "/", Dest: "host:public/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be transferred")
}

func TestPurgeSyncsEmptyDirWithDelete(t *testing.T) {
	fake := runnertest.New()
	s := NewRsyncSyncer(fake, false)
	scratch := filepath.Join(t.TempDir(), "empty")

	require.NoError(t, Purge(context.Background(), s, scratch, "host:public/incoming/debian/pool/bookworm"))

	calls := fake.CallsTo("rsync")
	require.Len(t, calls, 1)
	assert.True(t, runnertest.HasArg(calls[0], "--delete"))
	assert.Equal(t, []string{scratch + "/", "host:public/incoming/debian/pool/bookworm/"}, calls[0].Args[len(calls[0].Args)-2:])
}

func TestJoinAndIsRemote(t *testing.T) {
	assert.Equal(t, "host:public/debian/dists/bookworm/", Join("host:public/", "debian", "dists", "bookworm/"))
	assert.Equal(t, "/srv/public/centos/7", Join("/srv/public", "centos", "7"))

	assert.True(t, IsRemote("packages@packages.red-data-tools.org:public"))
	assert.False(t, IsRemote("/srv/public"))
	assert.False(t, IsRemote("./dir:with-colon"))
}

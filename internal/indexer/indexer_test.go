package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner/runnertest"
)

func TestFTPArchiveRelease(t *testing.T) {
	fake := runnertest.New()
	fake.Handle("apt-ftparchive", runnertest.Output("Origin: Red Data Tools\n"))

	a := &FTPArchive{Runner: fake}
	out, err := a.Release(context.Background(), "/work/incoming/debian", "/tmp/release.conf", "dists/bookworm")
	require.NoError(t, err)
	assert.Equal(t, "Origin: Red Data Tools\n", string(out))

	calls := fake.CallsTo("apt-ftparchive")
	require.Len(t, calls, 1)
	assert.Equal(t, "/work/incoming/debian", calls[0].Dir)
	assert.Equal(t, []string{"-c", "/tmp/release.conf", "release", "dists/bookworm"}, calls[0].Args)
}

func TestFTPArchiveReleaseEmptyOutput(t *testing.T) {
	a := &FTPArchive{Runner: runnertest.New()}
	_, err := a.Release(context.Background(), "/work", "release.conf", "dists/bookworm")
	assert.Error(t, err)
}

func TestFTPArchiveGenerateFailure(t *testing.T) {
	fake := runnertest.New()
	fake.Handle("apt-ftparchive", runnertest.Fail(100, "E: unable to open pool"))

	a := &FTPArchive{Runner: fake}
	err := a.Generate(context.Background(), "/work", "generate.conf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to open pool")
}

func TestCreateRepoUpdate(t *testing.T) {
	fake := runnertest.New()
	out := filepath.Join(t.TempDir(), "merged", "centos", "7", "x86_64")

	c := &CreateRepo{Runner: fake}
	require.NoError(t, c.Update(context.Background(), YumUpdate{
		RepoDir:   "/work/incoming/centos/7/x86_64",
		OutputDir: out,
		PkgList:   "/tmp/pkglist",
	}))

	assert.DirExists(t, out)
	calls := fake.CallsTo("createrepo_c")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		"--pkglist", "/tmp/pkglist",
		"--recycle-pkglist",
		"--retain-old-md-by-age=0",
		"--skip-stat",
		"--update",
		"--outputdir", out,
		"/work/incoming/centos/7/x86_64",
	}, calls[0].Args)
}

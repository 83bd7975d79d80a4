// Package indexer wraps the external repository index tools.
package indexer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
)

// APT produces Packages/Sources/Contents indexes and Release manifests.
type APT interface {
	// Generate runs "apt-ftparchive generate <conf>" inside dir.
	Generate(ctx context.Context, dir, conf string) error
	// Release runs "apt-ftparchive -c <conf> release <distsDir>" inside
	// dir and returns the manifest.
	Release(ctx context.Context, dir, conf, distsDir string) ([]byte, error)
}

// YumUpdate describes an incremental createrepo_c run.
type YumUpdate struct {
	// RepoDir holds the new packages.
	RepoDir string
	// OutputDir holds the previous repodata and receives the new one.
	OutputDir string
	// PkgList lists the new packages relative to RepoDir.
	PkgList string
}

// Yum produces repodata.
type Yum interface {
	// Update merges new packages into existing repodata.
	Update(ctx context.Context, u YumUpdate) error
	// Rebuild regenerates repodata for every package under dir.
	Rebuild(ctx context.Context, dir string) error
}

// FTPArchive implements APT with apt-ftparchive.
type FTPArchive struct {
	Runner runner.Runner
}

// Generate implements APT
func (a *FTPArchive) Generate(ctx context.Context, dir, conf string) error {
	logrus.Debugf("apt-ftparchive generate in %s", dir)
	_, err := a.Runner.Run(ctx, runner.Command{
		Name: "apt-ftparchive",
		Args: []string{"generate", conf},
		Dir:  dir,
	})
	if err != nil {
		return errors.Wrap(err, "apt-ftparchive generate failed")
	}
	return nil
}

// Release implements APT
func (a *FTPArchive) Release(ctx context.Context, dir, conf, distsDir string) ([]byte, error) {
	var out bytes.Buffer
	_, err := a.Runner.Run(ctx, runner.Command{
		Name:   "apt-ftparchive",
		Args:   []string{"-c", conf, "release", distsDir},
		Dir:    dir,
		Stdout: &out,
	})
	if err != nil {
		return nil, errors.Wrap(err, "apt-ftparchive release failed")
	}
	if out.Len() == 0 {
		return nil, errors.Newf("apt-ftparchive release produced no output for %s", distsDir)
	}
	return out.Bytes(), nil
}

// CreateRepo implements Yum with createrepo_c.
type CreateRepo struct {
	Runner runner.Runner
}

// Update implements Yum
func (c *CreateRepo) Update(ctx context.Context, u YumUpdate) error {
	if err := os.MkdirAll(u.OutputDir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", u.OutputDir)
	}
	_, err := c.Runner.Run(ctx, runner.Command{
		Name: "createrepo_c",
		Args: []string{
			"--pkglist", u.PkgList,
			"--recycle-pkglist",
			"--retain-old-md-by-age=0",
			"--skip-stat",
			"--update",
			"--outputdir", u.OutputDir,
			u.RepoDir,
		},
	})
	if err != nil {
		return errors.Wrapf(err, "createrepo_c failed for %s", filepath.Base(u.RepoDir))
	}
	return nil
}

// Rebuild implements Yum
func (c *CreateRepo) Rebuild(ctx context.Context, dir string) error {
	_, err := c.Runner.Run(ctx, runner.Command{
		Name: "createrepo_c",
		Args: []string{"--update", dir},
	})
	if err != nil {
		return errors.Wrapf(err, "createrepo_c failed for %s", dir)
	}
	return nil
}

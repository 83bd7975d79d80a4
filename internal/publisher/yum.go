package publisher

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/indexer"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/metadata"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/repodata"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/scanner"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/transport"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
)

// architectures returns the configured architecture directories of
// versionDir that hold packages. Unconfigured directories are ignored
// with a warning.
func architectures(ctx context.Context, c *cycle, versionDir string) ([]string, error) {
	entries, err := os.ReadDir(versionDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", versionDir)
	}

	var archs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !c.target.HasArchitecture(e.Name()) {
			c.log.Warnf("Ignoring unconfigured architecture directory %s", filepath.Join(versionDir, e.Name()))
			continue
		}
		ok, err := scanner.HasPackages(ctx, filepath.Join(versionDir, e.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			archs = append(archs, e.Name())
		}
	}
	sort.Strings(archs)
	return archs, nil
}

func (p *Publisher) publishYum(ctx context.Context, c *cycle) error {
	l := c.layout
	t := c.target
	baseVersion := l.version(l.dist(models.SnapshotBase))
	incomingVersion := l.version(l.dist(models.SnapshotIncoming))
	mergedVersion := l.version(l.dist(models.SnapshotMerged))

	err := c.step(ctx, models.StageFetchBase, models.ErrTransport, func() error {
		if err := transport.EnsureRemoteDir(ctx, p.Syncer, l.scratch(), l.remoteDist()); err != nil {
			return err
		}
		v := t.Codename
		return p.Syncer.Sync(ctx, transport.Spec{
			Source:   transport.Dir(l.remoteDist()),
			Dest:     transport.Dir(l.dist(models.SnapshotBase)),
			Delete:   true,
			Includes: []string{v + "/", v + "/*/", v + "/*/repodata/", v + "/*/repodata/**"},
			Excludes: []string{"*"},
		})
	})
	if err != nil {
		return err
	}

	err = c.step(ctx, models.StageFetchIncoming, models.ErrTransport, func() error {
		d := t.Distribution
		return p.Syncer.Sync(ctx, transport.Spec{
			Source:         transport.Dir(l.remoteIncoming()),
			Dest:           transport.Dir(l.root(models.SnapshotIncoming)),
			Delete:         true,
			DeleteExcluded: true,
			Includes:       []string{d + "/", d + "/" + t.Codename + "/", d + "/" + t.Codename + "/**"},
			Excludes:       []string{"*"},
		})
	})
	if err != nil {
		return err
	}

	hasPackages, err := scanner.HasPackages(ctx, incomingVersion)
	if err != nil {
		return c.fail(models.StageFetchIncoming, models.ErrFileOp, err)
	}
	if !hasPackages {
		return c.skip("no incoming packages in " + incomingVersion)
	}

	err = c.step(ctx, models.StageSignIncoming, models.ErrSigning, func() error {
		report, err := p.YumSigner.Sign(ctx, incomingVersion)
		if report != nil {
			c.report.Resigned = len(report.Unsigned)
		}
		return err
	})
	if err != nil {
		return err
	}

	var archs []string
	err = c.step(ctx, models.StageRegenerateMetadata, models.ErrMetadataGen, func() error {
		var err error
		if archs, err = architectures(ctx, c, incomingVersion); err != nil {
			return err
		}
		for _, arch := range archs {
			if err := p.updateRepodata(ctx, c, arch, baseVersion, incomingVersion, mergedVersion); err != nil {
				return errors.Wrapf(err, "%s", arch)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(archs) == 0 {
		return c.skip("no packages for a configured architecture")
	}
	c.report.Architectures = archs

	err = c.step(ctx, models.StageMerge, models.ErrMerge, func() error {
		for _, arch := range archs {
			if err := repodata.CheckMonotonic(filepath.Join(baseVersion, arch), filepath.Join(mergedVersion, arch)); err != nil {
				return errors.Wrapf(err, "%s", arch)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := p.signAndVerifyRepomd(ctx, c, mergedVersion, archs); err != nil {
		return err
	}

	err = c.step(ctx, models.StagePublish, models.ErrTransport, func() error {
		// Packages go live before the metadata that references them.
		if err := p.Syncer.Sync(ctx, transport.Spec{
			Source:   transport.Dir(l.dist(models.SnapshotIncoming)),
			Dest:     transport.Dir(l.remoteDist()),
			Excludes: []string{"*/*/repodata/"},
		}); err != nil {
			return errors.Wrap(err, "failed to upload packages")
		}
		for _, arch := range archs {
			if err := p.Syncer.Sync(ctx, transport.Spec{
				Source: transport.Dir(filepath.Join(mergedVersion, arch, "repodata")),
				Dest:   transport.Dir(l.remoteDist(t.Codename, arch, "repodata")),
				Delete: true,
			}); err != nil {
				return errors.Wrapf(err, "failed to upload %s metadata", arch)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = c.step(ctx, models.StagePurgeIncoming, models.ErrTransport, func() error {
		if err := utils.ResetDir(incomingVersion); err != nil {
			return err
		}
		return transport.Purge(ctx, p.Syncer, l.scratch(), l.remoteIncoming(t.Distribution, t.Codename+"/"))
	})
	if err != nil {
		return err
	}

	return c.done()
}

// updateRepodata merges the new packages of one architecture into a copy
// of the base repodata.
func (p *Publisher) updateRepodata(ctx context.Context, c *cycle, arch, baseVersion, incomingVersion, mergedVersion string) error {
	incomingArch := filepath.Join(incomingVersion, arch)
	mergedArch := filepath.Join(mergedVersion, arch)

	if err := utils.ResetDir(mergedArch); err != nil {
		return err
	}
	// createrepo_c must not pick up stale metadata uploaded with the packages.
	if err := os.RemoveAll(filepath.Join(incomingArch, "repodata")); err != nil {
		return err
	}
	baseRepodata := filepath.Join(baseVersion, arch, "repodata")
	if utils.IsDir(baseRepodata) {
		if err := utils.CopyTree(baseRepodata, filepath.Join(mergedArch, "repodata")); err != nil {
			return errors.Wrap(err, "failed to copy base repodata")
		}
	}

	list, err := metadata.PackageList(incomingArch)
	if err != nil {
		return err
	}
	pkglist := c.layout.file("pkglist-" + arch)
	if err := metadata.WritePackageList(pkglist, list); err != nil {
		return err
	}
	c.log.Infof("Updating %s repodata with %d package(s)", arch, len(list))

	return p.Yum.Update(ctx, indexer.YumUpdate{
		RepoDir:   incomingArch,
		OutputDir: mergedArch,
		PkgList:   pkglist,
	})
}

func (p *Publisher) signAndVerifyRepomd(ctx context.Context, c *cycle, versionDir string, archs []string) error {
	repomd := func(arch string) string {
		return filepath.Join(versionDir, arch, "repodata", repodata.RepomdFile)
	}

	err := c.step(ctx, models.StageSignRelease, models.ErrSigning, func() error {
		for _, arch := range archs {
			if err := p.Releases.SignDetachedFile(ctx, repomd(arch), repomd(arch)+".asc"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.step(ctx, models.StageVerify, models.ErrVerification, func() error {
		v, err := p.loadVerifier(ctx)
		if err != nil {
			return err
		}
		for _, arch := range archs {
			if err := v.VerifyFile(repomd(arch), repomd(arch)+".asc"); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Publisher) recoverYum(ctx context.Context, c *cycle) error {
	l := c.layout
	t := c.target
	versionDir := l.version(l.recovery())

	err := c.step(ctx, models.StageFetchBase, models.ErrTransport, func() error {
		return p.Syncer.Sync(ctx, transport.Spec{
			Source: transport.Dir(l.remoteDist(t.Codename)),
			Dest:   transport.Dir(versionDir),
			Delete: true,
		})
	})
	if err != nil {
		return err
	}

	var archs []string
	err = c.step(ctx, models.StageRegenerateMetadata, models.ErrMetadataGen, func() error {
		var err error
		if archs, err = architectures(ctx, c, versionDir); err != nil {
			return err
		}
		for _, arch := range archs {
			if err := p.Yum.Rebuild(ctx, filepath.Join(versionDir, arch)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(archs) == 0 {
		return c.skip("no published packages")
	}
	c.report.Architectures = archs

	if err := p.signAndVerifyRepomd(ctx, c, versionDir, archs); err != nil {
		return err
	}

	err = c.step(ctx, models.StagePublish, models.ErrTransport, func() error {
		for _, arch := range archs {
			if err := p.Syncer.Sync(ctx, transport.Spec{
				Source: transport.Dir(filepath.Join(versionDir, arch, "repodata")),
				Dest:   transport.Dir(l.remoteDist(t.Codename, arch, "repodata")),
				Delete: true,
			}); err != nil {
				return errors.Wrapf(err, "failed to upload %s metadata", arch)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.done()
}

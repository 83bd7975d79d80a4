package publisher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/distmerge"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/metadata"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/scanner"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/transport"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
)

func (p *Publisher) publishAPT(ctx context.Context, c *cycle) error {
	l := c.layout
	t := c.target
	baseDist := l.dist(models.SnapshotBase)
	incomingDist := l.dist(models.SnapshotIncoming)
	mergedDist := l.dist(models.SnapshotMerged)
	pool := l.pool(incomingDist)
	incomingDists := l.dists(incomingDist)
	mergedDists := l.dists(mergedDist)

	err := c.step(ctx, models.StageFetchBase, models.ErrTransport, func() error {
		if err := transport.EnsureRemoteDir(ctx, p.Syncer, l.scratch(), l.remoteDist()); err != nil {
			return err
		}
		return p.Syncer.Sync(ctx, transport.Spec{
			Source:   transport.Dir(l.remoteDist()),
			Dest:     transport.Dir(baseDist),
			Delete:   true,
			Includes: []string{"dists/", "dists/" + t.Codename + "/", "dists/" + t.Codename + "/**"},
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
			Includes:       []string{d + "/", d + "/pool/", d + "/pool/" + t.Codename + "/", d + "/pool/" + t.Codename + "/**"},
			Excludes:       []string{"*"},
		})
	})
	if err != nil {
		return err
	}

	hasPackages, err := scanner.HasPackages(ctx, pool)
	if err != nil {
		return c.fail(models.StageFetchIncoming, models.ErrFileOp, err)
	}
	if !hasPackages {
		return c.skip("no incoming packages in " + pool)
	}

	err = c.step(ctx, models.StageSignIncoming, models.ErrSigning, func() error {
		report, err := p.APTSigner.Sign(ctx, pool)
		if report != nil {
			c.report.Resigned = len(report.Unsigned)
		}
		return err
	})
	if err != nil {
		return err
	}

	err = c.step(ctx, models.StageRegenerateMetadata, models.ErrMetadataGen, func() error {
		return p.generateDists(ctx, c, incomingDist)
	})
	if err != nil {
		return err
	}

	err = c.step(ctx, models.StageMerge, models.ErrMerge, func() error {
		if err := os.RemoveAll(mergedDists); err != nil {
			return errors.Wrap(err, "failed to clear merged dists")
		}
		baseDists := l.dists(baseDist)
		if err := p.Merger.Merge(ctx, baseDists, incomingDists, mergedDists); err != nil {
			return err
		}
		return distmerge.CheckSuperset(baseDists, mergedDists)
	})
	if err != nil {
		return err
	}

	release := filepath.Join(mergedDists, distmerge.ReleaseFile)
	if err := p.signAndVerifyRelease(ctx, c, release); err != nil {
		return err
	}

	err = c.step(ctx, models.StagePublish, models.ErrTransport, func() error {
		// Packages go live before the metadata that references them.
		if err := p.Syncer.Sync(ctx, transport.Spec{
			Source:   transport.Dir(incomingDist),
			Dest:     transport.Dir(l.remoteDist()),
			Excludes: []string{"dists/", "*.db"},
		}); err != nil {
			return errors.Wrap(err, "failed to upload packages")
		}
		if err := p.Syncer.Sync(ctx, transport.Spec{
			Source:   transport.Dir(filepath.Dir(mergedDists)),
			Dest:     transport.Dir(l.remoteDist("dists")),
			Delete:   true,
			Includes: []string{t.Codename + "/", t.Codename + "/**"},
			Excludes: []string{"*"},
		}); err != nil {
			return errors.Wrap(err, "failed to upload metadata")
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = c.step(ctx, models.StagePurgeIncoming, models.ErrTransport, func() error {
		if err := utils.ResetDir(pool); err != nil {
			return err
		}
		return transport.Purge(ctx, p.Syncer, l.scratch(), l.remoteIncoming(t.Distribution, "pool", t.Codename+"/"))
	})
	if err != nil {
		return err
	}

	return c.done()
}

// generateDists rebuilds dists/<codename> of the distribution tree dist
// from its pool and writes an unsigned Release.
func (p *Publisher) generateDists(ctx context.Context, c *cycle, dist string) error {
	t := c.target
	l := c.layout
	dists := l.dists(dist)

	if err := os.RemoveAll(dists); err != nil {
		return errors.Wrap(err, "failed to clear dists")
	}
	if err := p.Repository.WriteStubs(dists, t); err != nil {
		return err
	}

	generateConf := l.file("apt-ftparchive-generate.conf")
	conf := metadata.GenerateConf(t.Codename, t.Component, t.Architectures)
	if err := utils.WriteFile(generateConf, []byte(conf), 0644); err != nil {
		return err
	}
	if err := p.APT.Generate(ctx, dist, generateConf); err != nil {
		return err
	}

	if err := utils.RemoveGlob(filepath.Join(dists, "Release*")); err != nil {
		return err
	}
	if err := utils.RemoveGlob(filepath.Join(dist, "*.db")); err != nil {
		return err
	}

	releaseConf := l.file("apt-ftparchive-release.conf")
	conf = metadata.ReleaseConf(p.Repository.ReleaseDescription(t))
	if err := utils.WriteFile(releaseConf, []byte(conf), 0644); err != nil {
		return err
	}
	release, err := p.APT.Release(ctx, dist, releaseConf, filepath.Join("dists", t.Codename))
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(filepath.Join(dists, distmerge.ReleaseFile), release, 0644)
}

func (p *Publisher) signAndVerifyRelease(ctx context.Context, c *cycle, release string) error {
	err := c.step(ctx, models.StageSignRelease, models.ErrSigning, func() error {
		return p.Releases.SignRelease(ctx, release)
	})
	if err != nil {
		return err
	}

	return c.step(ctx, models.StageVerify, models.ErrVerification, func() error {
		v, err := p.loadVerifier(ctx)
		if err != nil {
			return err
		}
		return v.VerifyRelease(release)
	})
}

func (p *Publisher) recoverAPT(ctx context.Context, c *cycle) error {
	l := c.layout
	t := c.target
	dist := l.recovery()
	dists := l.dists(dist)

	err := c.step(ctx, models.StageFetchBase, models.ErrTransport, func() error {
		return p.Syncer.Sync(ctx, transport.Spec{
			Source: transport.Dir(l.remoteDist("pool", t.Codename)),
			Dest:   transport.Dir(l.pool(dist)),
			Delete: true,
		})
	})
	if err != nil {
		return err
	}

	err = c.step(ctx, models.StageRegenerateMetadata, models.ErrMetadataGen, func() error {
		return p.generateDists(ctx, c, dist)
	})
	if err != nil {
		return err
	}

	if err := p.signAndVerifyRelease(ctx, c, filepath.Join(dists, distmerge.ReleaseFile)); err != nil {
		return err
	}

	err = c.step(ctx, models.StagePublish, models.ErrTransport, func() error {
		return p.Syncer.Sync(ctx, transport.Spec{
			Source: transport.Dir(dists),
			Dest:   transport.Dir(l.remoteDist("dists", t.Codename)),
			Delete: true,
		})
	})
	if err != nil {
		return err
	}

	return c.done()
}

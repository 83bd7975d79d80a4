// Package publisher reconciles freshly uploaded packages with the
// published repository: it fetches both trees, signs what is unsigned,
// regenerates and merges metadata, signs the manifests and pushes the
// result back, packages first.
package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/indexer"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/metadata"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/signer"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/transport"
)

// PackageSigner signs every unsigned artifact below a directory.
type PackageSigner interface {
	Sign(ctx context.Context, root string) (*signer.SignReport, error)
}

// Merger combines base and freshly generated dists into merged.
type Merger interface {
	Merge(ctx context.Context, base, incoming, merged string) error
}

// Options is the static part of the publisher configuration.
type Options struct {
	WorkDir  string
	Remote   string
	Parallel int
	// Repository brands the generated APT metadata.
	Repository metadata.Repository
}

// Publisher runs reconciliation cycles. Every external tool is reached
// through one of the interfaces below.
type Publisher struct {
	Options

	Syncer   transport.Syncer
	APT      indexer.APT
	Yum      indexer.Yum
	Merger   Merger
	Releases signer.ReleaseSigner

	// APTSigner signs .dsc and .changes files of an APT pool.
	APTSigner PackageSigner
	// YumSigner signs the RPMs of a Yum version tree.
	YumSigner PackageSigner

	verifierMu sync.Mutex
	verifier   *signer.Verifier
}

// Run publishes targets concurrently, at most Parallel at a time. A
// failing target does not stop the others; the returned error aggregates
// every failure.
func (p *Publisher) Run(ctx context.Context, targets []models.Target) ([]TargetReport, error) {
	return p.each(ctx, targets, p.publish)
}

// Recover regenerates the published metadata of targets from their full
// package pools.
func (p *Publisher) Recover(ctx context.Context, targets []models.Target) ([]TargetReport, error) {
	return p.each(ctx, targets, p.recover)
}

func (p *Publisher) each(ctx context.Context, targets []models.Target, fn func(context.Context, *cycle) error) ([]TargetReport, error) {
	reports := make([]TargetReport, len(targets))

	var g errgroup.Group
	limit := p.Parallel
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, t := range targets {
		g.Go(func() error {
			c := p.newCycle(t, &reports[i])
			start := time.Now()
			err := fn(ctx, c)
			reports[i].Duration = time.Since(start)
			if err != nil {
				reports[i].Err = err
				c.log.WithField("stage", reports[i].Stage).Errorf("Failed: %v", err)
				return nil
			}
			c.log.WithField("stage", reports[i].Stage).Infof("Finished in %s", reports[i].Duration.Round(time.Millisecond))
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, r := range reports {
		if r.Err != nil {
			result = multierror.Append(result, r.Err)
		}
	}
	return reports, result.ErrorOrNil()
}

func (p *Publisher) publish(ctx context.Context, c *cycle) error {
	switch c.target.Family {
	case models.FamilyAPT:
		return p.publishAPT(ctx, c)
	case models.FamilyYum:
		return p.publishYum(ctx, c)
	default:
		return c.fail(models.StageFetchBase, models.ErrInvalidConfig,
			errors.Newf("unknown family %q", c.target.Family))
	}
}

func (p *Publisher) recover(ctx context.Context, c *cycle) error {
	switch c.target.Family {
	case models.FamilyAPT:
		return p.recoverAPT(ctx, c)
	case models.FamilyYum:
		return p.recoverYum(ctx, c)
	default:
		return c.fail(models.StageFetchBase, models.ErrInvalidConfig,
			errors.Newf("unknown family %q", c.target.Family))
	}
}

// loadVerifier builds the signature verifier from the signing identity's
// public key on first use.
func (p *Publisher) loadVerifier(ctx context.Context) (*signer.Verifier, error) {
	p.verifierMu.Lock()
	defer p.verifierMu.Unlock()
	if p.verifier != nil {
		return p.verifier, nil
	}

	key, err := p.Releases.PublicKey(ctx)
	if err != nil {
		return nil, err
	}
	v, err := signer.NewVerifier(key)
	if err != nil {
		return nil, err
	}
	p.verifier = v
	return v, nil
}

// cycle is the state of one target's pass.
type cycle struct {
	target models.Target
	layout layout
	report *TargetReport
	log    *logrus.Entry
}

func (p *Publisher) newCycle(t models.Target, report *TargetReport) *cycle {
	report.Target = t
	return &cycle{
		target: t,
		layout: newLayout(p.WorkDir, p.Remote, t),
		report: report,
		log:    logrus.WithField("target", t.ID()),
	}
}

// step records stage, runs fn and classifies its failure.
func (c *cycle) step(ctx context.Context, stage models.Stage, errType models.ErrorType, fn func() error) error {
	c.report.Stage = stage
	if err := ctx.Err(); err != nil {
		return c.fail(stage, errType, err)
	}
	c.log.WithField("stage", stage).Debug("Entering stage")
	if err := fn(); err != nil {
		return c.fail(stage, errType, err)
	}
	return nil
}

func (c *cycle) fail(stage models.Stage, errType models.ErrorType, err error) error {
	c.report.Stage = stage
	return &models.PublishError{
		Type:   errType,
		Target: c.target.ID(),
		Stage:  stage,
		Err:    err,
	}
}

func (c *cycle) skip(reason string) error {
	c.report.Stage = models.StageSkipped
	c.log.Infof("Skipped: %s", reason)
	return nil
}

func (c *cycle) done() error {
	c.report.Stage = models.StageDone
	return nil
}

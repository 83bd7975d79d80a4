package signer

import (
	"context"
	"sort"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/pool"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/scanner"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Family groups artifact types signed by the same tool.
type Family struct {
	Name     string
	Types    []models.ArtifactType
	Resigner Resigner
}

// SignReport summarizes one batch signing run.
type SignReport struct {
	Root     string
	Checked  int
	Signed   []string
	Unsigned []string
}

// BatchSigner finds unsigned artifacts under a directory and signs them,
// one resign invocation per family.
type BatchSigner struct {
	Scanner  scanner.Scanner
	Checker  Checker
	Families []Family
	// Trust, when set, runs before any signature is checked.
	Trust   KeyTruster
	Workers int
	// Progress shows a progress bar while checking.
	Progress bool
}

func (b *BatchSigner) family(t models.ArtifactType) (Family, bool) {
	return lo.Find(b.Families, func(f Family) bool {
		return lo.Contains(f.Types, t)
	})
}

// Sign checks every artifact under root and resigns the unsigned ones.
// Nothing is resigned unless every check succeeded.
func (b *BatchSigner) Sign(ctx context.Context, root string) (*SignReport, error) {
	report := &SignReport{Root: root}

	if b.Trust != nil {
		if err := b.Trust.EnsureTrusted(ctx); err != nil {
			return report, errors.Wrap(err, "failed to trust signing key")
		}
	}

	found, err := b.Scanner.Scan(ctx, root)
	if err != nil {
		return report, errors.Wrapf(err, "failed to scan %s", root)
	}
	artifacts := lo.Filter(found, func(a models.Artifact, _ int) bool {
		_, ok := b.family(a.Type)
		return ok
	})
	report.Checked = len(artifacts)
	if len(artifacts) == 0 {
		logrus.Debugf("No signable artifacts under %s", root)
		return report, nil
	}

	var (
		mu       sync.Mutex
		unsigned []models.Artifact
	)
	p := pool.New(b.Workers, func(ctx context.Context, a models.Artifact) error {
		signed, err := b.Checker.IsSigned(ctx, a)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if signed {
			report.Signed = append(report.Signed, a.Path)
		} else {
			unsigned = append(unsigned, a)
		}
		return nil
	})

	if b.Progress {
		bar := pb.StartNew(len(artifacts))
		defer bar.Finish()
		p.OnDone = func(models.Artifact, error) { bar.Increment() }
	}

	for _, a := range artifacts {
		if err := p.Submit(ctx, a); err != nil {
			break
		}
	}
	if err := p.ShutdownAndWait(); err != nil {
		return report, errors.Wrap(err, "signature check failed")
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	sort.Strings(report.Signed)
	sort.Slice(unsigned, func(i, j int) bool { return unsigned[i].Path < unsigned[j].Path })
	report.Unsigned = lo.Map(unsigned, func(a models.Artifact, _ int) string { return a.Path })

	for _, f := range b.Families {
		paths := lo.FilterMap(unsigned, func(a models.Artifact, _ int) (string, bool) {
			return a.Path, lo.Contains(f.Types, a.Type)
		})
		if len(paths) == 0 {
			continue
		}
		if err := f.Resigner.Resign(ctx, paths); err != nil {
			return report, errors.Wrapf(err, "failed to sign %s artifacts", f.Name)
		}
	}

	logrus.Infof("%s: %d checked, %d signed now", root, report.Checked, len(report.Unsigned))
	return report, nil
}

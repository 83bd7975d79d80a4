package metadata

import (
	"github.com/cockroachdb/errors"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

// Repository carries the branding shared by every generated file.
type Repository struct {
	Origin      string
	Label       string
	Description string
}

// Stubs returns the per-architecture Release stubs of an APT target,
// source first.
func (r Repository) Stubs(t models.Target) []Stub {
	archs := append([]string{SourceArchitecture}, t.Architectures...)
	stubs := make([]Stub, 0, len(archs))
	for _, arch := range archs {
		stubs = append(stubs, Stub{
			Archive:      t.Codename,
			Component:    t.Component,
			Origin:       r.Origin,
			Label:        r.Label,
			Architecture: arch,
		})
	}
	return stubs
}

// WriteStubs writes every stub of t below distsDir.
func (r Repository) WriteStubs(distsDir string, t models.Target) error {
	for _, s := range r.Stubs(t) {
		if err := WriteComponentRelease(distsDir, s); err != nil {
			return errors.Wrapf(err, "stub for %s", s.Architecture)
		}
	}
	return nil
}

// ReleaseDescription returns the top-level Release fields of an APT target.
func (r Repository) ReleaseDescription(t models.Target) ReleaseDescription {
	return ReleaseDescription{
		Origin:        r.Origin,
		Label:         r.Label,
		Architectures: t.Architectures,
		Codename:      t.Codename,
		Suite:         t.Codename,
		Components:    []string{t.Component},
		Description:   r.Description,
	}
}

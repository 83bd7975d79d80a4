package scanner

import (
	"context"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

// Scanner interface for detecting and scanning package artifacts
type Scanner interface {
	// Scan recursively scans a directory for artifacts
	Scan(ctx context.Context, dir string) ([]models.Artifact, error)

	// DetectType determines the artifact type of a file
	DetectType(path string) (models.ArtifactType, error)
}

package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/sirupsen/logrus"
)

// FileSystemScanner implements Scanner interface for filesystem scanning
type FileSystemScanner struct {
	// Types restricts the result to these artifact types; empty means all.
	Types []models.ArtifactType
}

// NewFileSystemScanner creates a new filesystem scanner
func NewFileSystemScanner(types ...models.ArtifactType) *FileSystemScanner {
	return &FileSystemScanner{Types: types}
}

// Scan recursively scans a directory for artifacts. A missing directory
// yields no artifacts. Results are sorted by path.
func (s *FileSystemScanner) Scan(ctx context.Context, dir string) ([]models.Artifact, error) {
	var artifacts []models.Artifact

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logrus.Debugf("Scan root %s does not exist", dir)
		return nil, nil
	}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		artifactType, err := s.DetectType(path)
		if err != nil {
			logrus.Warnf("Failed to detect type for %s: %v", path, err)
			return nil
		}

		if artifactType == models.ArtifactUnknown || !s.accepts(artifactType) {
			return nil
		}

		logrus.Debugf("Found %s artifact: %s", artifactType, path)

		artifacts = append(artifacts, models.Artifact{
			Path: path,
			Type: artifactType,
			Size: info.Size(),
		})

		return nil
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed to scan directory")
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Path < artifacts[j].Path
	})

	logrus.Debugf("Found %d artifacts in %s", len(artifacts), dir)
	return artifacts, nil
}

// DetectType determines the artifact type of a file
func (s *FileSystemScanner) DetectType(path string) (models.ArtifactType, error) {
	return DetectArtifactType(path)
}

func (s *FileSystemScanner) accepts(t models.ArtifactType) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, want := range s.Types {
		if want == t {
			return true
		}
	}
	return false
}

// HasPackages reports whether dir contains at least one package artifact.
func HasPackages(ctx context.Context, dir string) (bool, error) {
	artifacts, err := NewFileSystemScanner().Scan(ctx, dir)
	if err != nil {
		return false, err
	}
	return len(artifacts) > 0, nil
}

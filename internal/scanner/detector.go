package scanner

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

// Magic bytes for package detection
var (
	// Debian packages start with "!<arch>\ndebian"
	debMagic = []byte("!<arch>\ndebian")

	// RPM packages start with 0xED 0xAB 0xEE 0xDB
	rpmMagic = []byte{0xED, 0xAB, 0xEE, 0xDB}
)

// DetectArtifactType determines the artifact type based on file extension,
// falling back to magic bytes for binary packages with unusual names
func DetectArtifactType(path string) (models.ArtifactType, error) {
	switch filepath.Ext(path) {
	case ".rpm":
		return models.ArtifactRPM, nil
	case ".deb", ".udeb", ".ddeb":
		return models.ArtifactDeb, nil
	case ".dsc":
		return models.ArtifactDsc, nil
	case ".changes":
		return models.ArtifactChanges, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return models.ArtifactUnknown, err
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		// Empty files are never packages
		return models.ArtifactUnknown, nil
	}
	header = header[:n]

	if bytes.HasPrefix(header, debMagic) {
		return models.ArtifactDeb, nil
	}
	if bytes.HasPrefix(header, rpmMagic) {
		return models.ArtifactRPM, nil
	}

	return models.ArtifactUnknown, nil
}

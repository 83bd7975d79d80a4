// Package metadata renders the small files and tool configurations that
// apt-ftparchive and createrepo_c need to index a pool.
package metadata

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
)

// SourceArchitecture is the pseudo architecture of source packages.
const SourceArchitecture = "source"

// Stub holds the fields of a per-architecture Release file.
type Stub struct {
	Archive      string
	Component    string
	Origin       string
	Label        string
	Architecture string
}

// Dir returns the component sub-directory the stub belongs to, relative
// to the codename's dists directory.
func (s Stub) Dir() string {
	if s.Architecture == SourceArchitecture {
		return filepath.Join(s.Component, SourceArchitecture)
	}
	return filepath.Join(s.Component, fmt.Sprintf("binary-%s", s.Architecture))
}

// Render returns the stub content.
func (s Stub) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Archive: %s\n", s.Archive)
	fmt.Fprintf(&buf, "Component: %s\n", s.Component)
	fmt.Fprintf(&buf, "Origin: %s\n", s.Origin)
	fmt.Fprintf(&buf, "Label: %s\n", s.Label)
	fmt.Fprintf(&buf, "Architecture: %s\n", s.Architecture)
	return buf.Bytes()
}

// WriteComponentRelease writes the stub below distsDir, creating parent
// directories as needed.
func WriteComponentRelease(distsDir string, s Stub) error {
	if s.Archive == "" || s.Component == "" || s.Architecture == "" {
		return errors.Newf("incomplete release stub %+v", s)
	}
	path := filepath.Join(distsDir, s.Dir(), "Release")
	if err := utils.WriteFile(path, s.Render(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

package metadata

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
)

// PackageList returns the RPMs one directory below archDir
// (e.g. "Packages/foo-1.0-1.el9.x86_64.rpm"), sorted, relative to archDir.
func PackageList(archDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(archDir, "*", "*.rpm"))
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", archDir)
	}

	var list []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		rel, err := filepath.Rel(archDir, m)
		if err != nil {
			return nil, err
		}
		list = append(list, filepath.ToSlash(rel))
	}
	sort.Strings(list)
	return list, nil
}

// WritePackageList writes list one entry per line.
func WritePackageList(path string, list []string) error {
	var content string
	if len(list) > 0 {
		content = strings.Join(list, "\n") + "\n"
	}
	return utils.WriteFile(path, []byte(content), 0644)
}

package repodata

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// ErrShrunk reports that merged metadata lost packages from the base.
var ErrShrunk = errors.New("merged metadata is missing base packages")

// Missing returns the base packages absent from merged, compared by
// location.
func Missing(base, merged []Package) []Package {
	have := make(map[string]struct{}, len(merged))
	for _, p := range merged {
		have[p.Location] = struct{}{}
	}

	var missing []Package
	for _, p := range base {
		if _, ok := have[p.Location]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// CheckMonotonic verifies that mergedDir's metadata lists every package of
// baseDir's metadata.
func CheckMonotonic(baseDir, mergedDir string) error {
	base, err := ReadPrimary(baseDir)
	if err != nil {
		return errors.Wrap(err, "base")
	}
	merged, err := ReadPrimary(mergedDir)
	if err != nil {
		return errors.Wrap(err, "merged")
	}

	missing := Missing(base, merged)
	if len(missing) == 0 {
		logrus.Debugf("Repodata of %s grew from %d to %d packages", mergedDir, len(base), len(merged))
		return nil
	}

	names := make([]string, 0, len(missing))
	for _, p := range missing {
		names = append(names, p.String())
	}
	return errors.Wrapf(ErrShrunk, "%d packages: %s", len(missing), strings.Join(names, ", "))
}

// Package distmerge merges two APT dists/<codename> trees into a third
// one that indexes the union of their packages.
package distmerge

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
)

// ErrShrunk reports that merged indexes lost entries from the base.
var ErrShrunk = errors.New("merged dists are missing base entries")

// readPreference lists the variants tried when reading an index.
var readPreference = []utils.Compression{utils.CompressionNone, utils.CompressionXz, utils.CompressionGzip}

// Merger merges dists trees natively.
type Merger struct{}

// NewMerger creates a Merger
func NewMerger() *Merger {
	return &Merger{}
}

// Merge writes the union of base and incoming into merged. base may be
// missing (first publication); incoming must hold a Release. merged must
// not exist or be empty.
func (m *Merger) Merge(ctx context.Context, base, incoming, merged string) error {
	if err := checkDistinct(base, incoming, merged); err != nil {
		return err
	}
	if !utils.Exists(filepath.Join(incoming, ReleaseFile)) {
		return errors.Newf("incoming dists %s has no Release", incoming)
	}
	if entries, err := os.ReadDir(merged); err == nil && len(entries) > 0 {
		return errors.Newf("merged dists %s is not empty", merged)
	}
	if err := utils.EnsureDir(merged); err != nil {
		return err
	}

	baseFiles, err := listFiles(base)
	if err != nil {
		return errors.Wrap(err, "failed to list base dists")
	}
	incomingFiles, err := listFiles(incoming)
	if err != nil {
		return errors.Wrap(err, "failed to list incoming dists")
	}

	groups := make(map[string][]string)
	for rel := range union(baseFiles, incomingFiles) {
		logical := strings.TrimSuffix(strings.TrimSuffix(rel, ".gz"), ".xz")
		groups[logical] = append(groups[logical], rel)
	}
	logicals := make([]string, 0, len(groups))
	for l := range groups {
		logicals = append(logicals, l)
	}
	sort.Strings(logicals)

	for _, logical := range logicals {
		if err := ctx.Err(); err != nil {
			return err
		}

		variants := groups[logical]
		switch KindOf(logical) {
		case KindPackages, KindSources:
			err = mergeIndex(logical, variants, base, incoming, merged, baseFiles, incomingFiles)
		case KindContents:
			err = mergeContentsFiles(logical, variants, base, incoming, merged, baseFiles, incomingFiles)
		default:
			err = copyPreferIncoming(variants, base, incoming, merged, incomingFiles)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to merge %s", logical)
		}
	}

	return writeMergedRelease(base, incoming, merged)
}

func mergeIndex(logical string, variants []string, base, incoming, merged string, baseFiles, incomingFiles map[string]struct{}) error {
	kind := KindOf(logical)

	baseEntries, err := readIndex(base, logical, baseFiles)
	if err != nil {
		return err
	}
	incomingEntries, err := readIndex(incoming, logical, incomingFiles)
	if err != nil {
		return err
	}

	entries, err := MergeParagraphs(kind, baseEntries, incomingEntries)
	if err != nil {
		return err
	}
	if missing := MissingEntries(kind, baseEntries, entries); len(missing) > 0 {
		return errors.Wrapf(ErrShrunk, "%s: %s", logical, strings.Join(missing, ", "))
	}

	logrus.Debugf("Merged %s: %d base + %d incoming -> %d entries",
		logical, len(baseEntries), len(incomingEntries), len(entries))

	return writeVariants(merged, logical, variants, RenderParagraphs(entries))
}

func mergeContentsFiles(logical string, variants []string, base, incoming, merged string, baseFiles, incomingFiles map[string]struct{}) error {
	baseData, err := readRaw(base, logical, baseFiles)
	if err != nil {
		return err
	}
	incomingData, err := readRaw(incoming, logical, incomingFiles)
	if err != nil {
		return err
	}
	return writeVariants(merged, logical, variants, MergeContents(baseData, incomingData))
}

func copyPreferIncoming(variants []string, base, incoming, merged string, incomingFiles map[string]struct{}) error {
	for _, rel := range variants {
		src := filepath.Join(base, filepath.FromSlash(rel))
		if _, ok := incomingFiles[rel]; ok {
			src = filepath.Join(incoming, filepath.FromSlash(rel))
		}
		if err := utils.CopyFile(src, filepath.Join(merged, filepath.FromSlash(rel))); err != nil {
			return err
		}
	}
	return nil
}

// writeVariants writes data once per compression found among variants.
func writeVariants(dir, logical string, variants []string, data []byte) error {
	for _, rel := range variants {
		encoded, err := utils.Compress(data, utils.CompressionFromPath(rel))
		if err != nil {
			return err
		}
		if err := utils.WriteFile(filepath.Join(dir, filepath.FromSlash(rel)), encoded, 0644); err != nil {
			return err
		}
	}
	return nil
}

func readRaw(dir, logical string, files map[string]struct{}) ([]byte, error) {
	for _, c := range readPreference {
		rel := logical + string(c)
		if _, ok := files[rel]; !ok {
			continue
		}
		return utils.ReadIndexFile(filepath.Join(dir, filepath.FromSlash(rel)))
	}
	return nil, nil
}

func readIndex(dir, logical string, files map[string]struct{}) ([]Paragraph, error) {
	data, err := readRaw(dir, logical, files)
	if err != nil || data == nil {
		return nil, err
	}
	return ParseParagraphs(bytes.NewReader(data))
}

func writeMergedRelease(base, incoming, merged string) error {
	header, err := ReadRelease(filepath.Join(incoming, ReleaseFile))
	if err != nil {
		return errors.Wrap(err, "failed to read incoming Release")
	}

	baseRelease := filepath.Join(base, ReleaseFile)
	if utils.Exists(baseRelease) {
		previous, err := ReadRelease(baseRelease)
		if err != nil {
			return errors.Wrap(err, "failed to read base Release")
		}
		for _, name := range []string{"Architectures", "Components"} {
			if v := unionWords(header.Get(name), previous.Get(name)); v != "" {
				header.Set(name, v)
			}
		}
	}

	files, err := listFiles(merged)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(files))
	for f := range files {
		names = append(names, f)
	}
	sort.Strings(names)

	infos, err := CalculateReleaseFileInfos(merged, names)
	if err != nil {
		return err
	}

	return utils.WriteFileAtomic(filepath.Join(merged, ReleaseFile), GenerateReleaseFile(header, infos), 0644)
}

// CheckSuperset verifies that every Packages and Sources entry of base is
// indexed in merged and that the merged Release lists every file the base
// Release did.
func CheckSuperset(base, merged string) error {
	baseFiles, err := listFiles(base)
	if err != nil {
		return err
	}
	mergedFiles, err := listFiles(merged)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for rel := range baseFiles {
		logical := strings.TrimSuffix(strings.TrimSuffix(rel, ".gz"), ".xz")
		kind := KindOf(logical)
		if kind != KindPackages && kind != KindSources {
			continue
		}
		if _, ok := seen[logical]; ok {
			continue
		}
		seen[logical] = struct{}{}

		baseEntries, err := readIndex(base, logical, baseFiles)
		if err != nil {
			return err
		}
		mergedEntries, err := readIndex(merged, logical, mergedFiles)
		if err != nil {
			return err
		}
		if missing := MissingEntries(kind, baseEntries, mergedEntries); len(missing) > 0 {
			return errors.Wrapf(ErrShrunk, "%s: %s", logical, strings.Join(missing, ", "))
		}
	}
	return checkListedFiles(base, merged)
}

// checkListedFiles verifies that the merged Release still lists every
// index file the base Release listed.
func checkListedFiles(base, merged string) error {
	baseRelease := filepath.Join(base, ReleaseFile)
	if !utils.Exists(baseRelease) {
		return nil
	}
	previous, err := ReadRelease(baseRelease)
	if err != nil {
		return errors.Wrap(err, "failed to read base Release")
	}
	listed := ListedFiles(previous)
	if len(listed) == 0 {
		return nil
	}

	current, err := ReadRelease(filepath.Join(merged, ReleaseFile))
	if err != nil {
		return errors.Wrap(err, "failed to read merged Release")
	}
	have := make(map[string]struct{})
	for _, f := range ListedFiles(current) {
		have[f] = struct{}{}
	}
	var missing []string
	for _, f := range listed {
		if _, ok := have[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrShrunk, "Release no longer lists %s", strings.Join(missing, ", "))
	}
	return nil
}

// listFiles returns the regular files below dir as slash separated
// relative paths, without the top-level manifests. A missing dir is empty.
func listFiles(dir string) (map[string]struct{}, error) {
	files := make(map[string]struct{})
	if !utils.IsDir(dir) {
		return files, nil
	}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch rel {
		case ReleaseFile, ReleaseGPGFile, InReleaseFile:
			return nil
		}
		if !d.Type().IsRegular() {
			logrus.Warnf("Skipping non-regular file %s", p)
			return nil
		}
		if strings.HasSuffix(rel, ".bz2") && KindOf(strings.TrimSuffix(rel, ".bz2")) != KindOther {
			logrus.Warnf("Dropping stale bzip2 index %s", p)
			return nil
		}
		if strings.HasPrefix(path.Base(rel), ".") {
			return nil
		}
		files[rel] = struct{}{}
		return nil
	})
	return files, err
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// checkDistinct rejects identical or nested directories.
func checkDistinct(dirs ...string) error {
	abs := make([]string, len(dirs))
	for i, d := range dirs {
		a, err := filepath.Abs(d)
		if err != nil {
			return err
		}
		abs[i] = filepath.Clean(a)
	}
	for i := range abs {
		for j := range abs {
			if i == j {
				continue
			}
			if abs[i] == abs[j] || strings.HasPrefix(abs[i], abs[j]+string(filepath.Separator)) {
				return errors.Newf("dists directories overlap: %s and %s", dirs[i], dirs[j])
			}
		}
	}
	return nil
}

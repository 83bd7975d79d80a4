package distmerge

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
)

// Manifest file names at the top of dists/<codename>.
const (
	ReleaseFile    = "Release"
	ReleaseGPGFile = "Release.gpg"
	InReleaseFile  = "InRelease"
)

var checksumFields = []string{"MD5Sum", "SHA1", "SHA256", "SHA512"}

// ReleaseFileInfo contains information about a file in the release
type ReleaseFileInfo struct {
	Path     string
	Checksum *utils.Checksum
}

// CalculateReleaseFileInfos calculates checksums for all metadata files
func CalculateReleaseFileInfos(basePath string, files []string) ([]ReleaseFileInfo, error) {
	var infos []ReleaseFileInfo

	for _, file := range files {
		fullPath := filepath.Join(basePath, filepath.FromSlash(file))
		checksum, err := utils.CalculateChecksums(fullPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to calculate checksum for %s", file)
		}

		infos = append(infos, ReleaseFileInfo{
			Path:     file,
			Checksum: checksum,
		})
	}

	return infos, nil
}

// ReadRelease parses a Release manifest.
func ReadRelease(path string) (*Paragraph, error) {
	data, err := utils.ReadIndexFile(path)
	if err != nil {
		return nil, err
	}
	ps, err := ParseParagraphs(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if len(ps) != 1 {
		return nil, errors.Newf("%s: expected one paragraph, found %d", path, len(ps))
	}
	return &ps[0], nil
}

// ListedFiles returns the paths named in the SHA256 section (or MD5Sum
// when SHA256 is absent).
func ListedFiles(release *Paragraph) []string {
	for _, name := range []string{"SHA256", "MD5Sum"} {
		for _, f := range release.Fields {
			if !strings.EqualFold(f.Name, name) {
				continue
			}
			var files []string
			for _, line := range f.Continuation {
				parts := strings.Fields(line)
				if len(parts) == 3 {
					files = append(files, parts[2])
				}
			}
			return files
		}
	}
	return nil
}

// GenerateReleaseFile renders header followed by MD5Sum, SHA1, SHA256 and
// SHA512 sections for files. Checksum fields already in header are
// replaced.
func GenerateReleaseFile(header *Paragraph, files []ReleaseFileInfo) []byte {
	release := Paragraph{Fields: append([]Field(nil), header.Fields...)}
	for _, name := range checksumFields {
		release.Delete(name)
	}

	sorted := append([]ReleaseFileInfo(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	section := func(digest func(*utils.Checksum) string) []string {
		lines := make([]string, 0, len(sorted))
		for _, file := range sorted {
			lines = append(lines, fmt.Sprintf(" %s %d %s", digest(file.Checksum), file.Checksum.Size, file.Path))
		}
		return lines
	}

	release.Set("MD5Sum", "", section(func(c *utils.Checksum) string { return c.MD5 })...)
	release.Set("SHA1", "", section(func(c *utils.Checksum) string { return c.SHA1 })...)
	release.Set("SHA256", "", section(func(c *utils.Checksum) string { return c.SHA256 })...)
	release.Set("SHA512", "", section(func(c *utils.Checksum) string { return c.SHA512 })...)

	return release.Bytes()
}

// unionWords merges two space separated lists keeping first-seen order.
func unionWords(a, b string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range append(strings.Fields(a), strings.Fields(b)...) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

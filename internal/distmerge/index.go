package distmerge

import (
	"bytes"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	version "github.com/knqyf263/go-deb-version"
)

// ErrConflict reports the same package version with different content.
var ErrConflict = errors.New("conflicting package entries")

// IndexKind classifies files below dists/<codename>.
type IndexKind int

const (
	KindOther IndexKind = iota
	KindPackages
	KindSources
	KindContents
)

// KindOf returns the kind of a slash separated path with its compression
// suffix already removed.
func KindOf(logical string) IndexKind {
	base := logical[strings.LastIndex(logical, "/")+1:]
	switch {
	case base == "Packages":
		return KindPackages
	case base == "Sources":
		return KindSources
	case strings.HasPrefix(base, "Contents-"):
		return KindContents
	default:
		return KindOther
	}
}

// entryKey identifies a stanza: name, version and, for binaries, arch.
func entryKey(kind IndexKind, p *Paragraph) string {
	key := p.Get("Package") + "\x00" + p.Get("Version")
	if kind == KindPackages {
		key += "\x00" + p.Get("Architecture")
	}
	return key
}

// entryDigest returns the content checksum of a stanza, if any.
func entryDigest(kind IndexKind, p *Paragraph) string {
	if kind == KindSources {
		for _, f := range p.Fields {
			if strings.EqualFold(f.Name, "Checksums-Sha256") {
				return strings.Join(f.Continuation, "\n")
			}
		}
		return ""
	}
	return p.Get("SHA256")
}

// MergeParagraphs returns base ∪ incoming without duplicates. An entry
// present on both sides keeps the incoming stanza; differing checksums
// for the same key are a conflict.
func MergeParagraphs(kind IndexKind, base, incoming []Paragraph) ([]Paragraph, error) {
	merged := make(map[string]Paragraph, len(base)+len(incoming))
	for _, p := range base {
		merged[entryKey(kind, &p)] = p
	}
	for _, p := range incoming {
		key := entryKey(kind, &p)
		if prev, ok := merged[key]; ok {
			prevDigest, newDigest := entryDigest(kind, &prev), entryDigest(kind, &p)
			if prevDigest != "" && newDigest != "" && prevDigest != newDigest {
				return nil, errors.Wrapf(ErrConflict, "%s %s (%s)", p.Get("Package"), p.Get("Version"), p.Get("Architecture"))
			}
		}
		merged[key] = p
	}

	out := make([]Paragraph, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	SortParagraphs(out)
	return out, nil
}

// SortParagraphs orders stanzas by package name, Debian version and
// architecture.
func SortParagraphs(ps []Paragraph) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := &ps[i], &ps[j]
		if an, bn := a.Get("Package"), b.Get("Package"); an != bn {
			return an < bn
		}
		if av, bv := a.Get("Version"), b.Get("Version"); av != bv {
			return versionLess(av, bv)
		}
		return a.Get("Architecture") < b.Get("Architecture")
	})
}

func versionLess(a, b string) bool {
	v1, err1 := version.NewVersion(a)
	v2, err2 := version.NewVersion(b)
	if err1 != nil || err2 != nil {
		// Fallback to string comparison if version parsing fails
		return a < b
	}
	if v1.Equal(v2) {
		return a < b
	}
	return v1.LessThan(v2)
}

// MissingEntries returns the keys of base absent from merged.
func MissingEntries(kind IndexKind, base, merged []Paragraph) []string {
	have := make(map[string]struct{}, len(merged))
	for _, p := range merged {
		have[entryKey(kind, &p)] = struct{}{}
	}
	var missing []string
	for _, p := range base {
		if _, ok := have[entryKey(kind, &p)]; !ok {
			missing = append(missing, strings.TrimSpace(p.Get("Package")+" "+p.Get("Version")+" "+p.Get("Architecture")))
		}
	}
	return missing
}

// MergeContents unions two Contents indexes. Lines map a file path to a
// comma separated list of section/package locations; lists for the same
// path are unioned.
func MergeContents(base, incoming []byte) []byte {
	locations := make(map[string]map[string]struct{})
	add := func(data []byte) {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, " \t\r")
			if line == "" {
				continue
			}
			idx := strings.LastIndexAny(line, " \t")
			if idx < 0 {
				continue
			}
			path := strings.TrimSpace(line[:idx])
			if path == "" {
				continue
			}
			set, ok := locations[path]
			if !ok {
				set = make(map[string]struct{})
				locations[path] = set
			}
			for _, loc := range strings.Split(line[idx+1:], ",") {
				if loc != "" {
					set[loc] = struct{}{}
				}
			}
		}
	}
	add(base)
	add(incoming)

	paths := make([]string, 0, len(locations))
	for p := range locations {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	for _, p := range paths {
		locs := make([]string, 0, len(locations[p]))
		for l := range locations[p] {
			locs = append(locs, l)
		}
		sort.Strings(locs)
		buf.WriteString(p)
		buf.WriteString("\t")
		buf.WriteString(strings.Join(locs, ","))
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

package repodata

import (
	"encoding/xml"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sassoftware/go-rpmutils"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
)

// XML structures for primary.xml

type metadata struct {
	XMLName       xml.Name `xml:"metadata"`
	Xmlns         string   `xml:"xmlns,attr"`
	XmlnsRpm      string   `xml:"xmlns:rpm,attr"`
	PackagesCount int      `xml:"packages,attr"`
	Packages      []xmlPkg `xml:"package"`
}

type xmlPkg struct {
	Type     string      `xml:"type,attr"`
	Name     string      `xml:"name"`
	Arch     string      `xml:"arch"`
	Version  xmlVersion  `xml:"version"`
	Checksum xmlChecksum `xml:"checksum"`
	Location xmlLocation `xml:"location"`
}

type xmlVersion struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

type xmlChecksum struct {
	Type  string `xml:"type,attr"`
	Pkgid string `xml:"pkgid,attr"`
	Value string `xml:",chardata"`
}

type xmlLocation struct {
	Href string `xml:"href,attr"`
}

// Package is one entry of primary.xml.
type Package struct {
	rpmutils.NEVRA
	Checksum string
	Location string
}

// String returns name-[epoch:]version-release.arch
func (p Package) String() string {
	evr := p.Version + "-" + p.Release
	if p.Epoch != "" && p.Epoch != "0" {
		evr = p.Epoch + ":" + evr
	}
	return p.Name + "-" + evr + "." + p.Arch
}

// ReadPrimary returns the packages listed in the primary metadata of
// archDir, sorted by NEVRA. A missing repodata directory yields no
// packages.
func ReadPrimary(archDir string) ([]Package, error) {
	md, err := ReadRepomd(archDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	path, ok := md.Location("primary")
	if !ok {
		return nil, errors.Newf("repomd.xml in %s has no primary data", archDir)
	}

	raw, err := utils.ReadIndexFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read primary metadata")
	}

	return ParsePrimary(raw)
}

// ParsePrimary decodes an uncompressed primary.xml.
func ParsePrimary(raw []byte) ([]Package, error) {
	var doc metadata
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse primary.xml")
	}

	pkgs := make([]Package, 0, len(doc.Packages))
	for _, p := range doc.Packages {
		pkgs = append(pkgs, Package{
			NEVRA: rpmutils.NEVRA{
				Name:    p.Name,
				Epoch:   p.Version.Epoch,
				Version: p.Version.Ver,
				Release: p.Version.Rel,
				Arch:    p.Arch,
			},
			Checksum: strings.TrimSpace(p.Checksum.Value),
			Location: p.Location.Href,
		})
	}

	sort.SliceStable(pkgs, func(i, j int) bool {
		a, b := pkgs[i], pkgs[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if c := rpmutils.NEVRAcmp(a.NEVRA, b.NEVRA); c != 0 {
			return c < 0
		}
		return a.Arch < b.Arch
	})
	return pkgs, nil
}

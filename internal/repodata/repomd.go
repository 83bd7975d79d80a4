// Package repodata reads createrepo_c output so a merge can be checked
// before it is published.
package repodata

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// RepomdFile is the index every Yum client fetches first.
const RepomdFile = "repomd.xml"

// XML structures for repomd.xml

type repomd struct {
	XMLName  xml.Name     `xml:"repomd"`
	Xmlns    string       `xml:"xmlns,attr"`
	XmlnsRpm string       `xml:"xmlns:rpm,attr"`
	Revision string       `xml:"revision"`
	Data     []repomdData `xml:"data"`
}

type repomdData struct {
	Type         string         `xml:"type,attr"`
	Checksum     repomdChecksum `xml:"checksum"`
	OpenChecksum repomdChecksum `xml:"open-checksum"`
	Location     repomdLocation `xml:"location"`
	Timestamp    int64          `xml:"timestamp"`
	Size         int64          `xml:"size"`
	OpenSize     int64          `xml:"open-size"`
}

type repomdChecksum struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type repomdLocation struct {
	Href string `xml:"href,attr"`
}

// Repomd is a parsed repomd.xml.
type Repomd struct {
	// Dir is the arch directory that contains repodata/.
	Dir      string
	Revision string
	data     map[string]repomdData
}

// ReadRepomd parses <archDir>/repodata/repomd.xml.
func ReadRepomd(archDir string) (*Repomd, error) {
	path := filepath.Join(archDir, "repodata", RepomdFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc repomd
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	md := &Repomd{Dir: archDir, Revision: doc.Revision, data: make(map[string]repomdData)}
	for _, d := range doc.Data {
		md.data[d.Type] = d
	}
	return md, nil
}

// Location returns the path of the metadata of the given type
// ("primary", "filelists", ...).
func (r *Repomd) Location(dataType string) (string, bool) {
	d, ok := r.data[dataType]
	if !ok || d.Location.Href == "" {
		return "", false
	}
	return filepath.Join(r.Dir, filepath.FromSlash(d.Location.Href)), true
}

// Checksum returns the declared checksum type and value of a data type.
func (r *Repomd) Checksum(dataType string) (string, string, bool) {
	d, ok := r.data[dataType]
	if !ok {
		return "", "", false
	}
	return d.Checksum.Type, d.Checksum.Value, true
}

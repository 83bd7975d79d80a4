package metadata

import (
	"bytes"
	"fmt"
	"strings"
)

// GenerateConf returns the apt-ftparchive "generate" configuration for one
// codename and component. Paths are relative to the distribution
// directory that holds pool/ and dists/.
func GenerateConf(codename, component string, archs []string) string {
	var buf bytes.Buffer

	pool := fmt.Sprintf("pool/%s/%s", codename, component)
	fmt.Fprintf(&buf, "Dir::ArchiveDir \".\";\n")
	fmt.Fprintf(&buf, "Dir::CacheDir \".\";\n")
	fmt.Fprintf(&buf, "TreeDefault::Directory \"%s\";\n", pool)
	fmt.Fprintf(&buf, "TreeDefault::SrcDirectory \"%s\";\n", pool)
	fmt.Fprintf(&buf, "Default::Packages::Extensions \".deb\";\n")
	fmt.Fprintf(&buf, "Default::Packages::Compress \". gzip xz\";\n")
	fmt.Fprintf(&buf, "Default::Sources::Compress \". gzip xz\";\n")
	fmt.Fprintf(&buf, "Default::Contents::Compress \"gzip\";\n")

	dists := fmt.Sprintf("dists/%s/%s", codename, component)
	for _, arch := range archs {
		binDir := fmt.Sprintf("%s/binary-%s", dists, arch)
		fmt.Fprintf(&buf, "\nBinDirectory \"%s\" {\n", binDir)
		fmt.Fprintf(&buf, "  Packages \"%s/Packages\";\n", binDir)
		fmt.Fprintf(&buf, "  Contents \"%s/Contents-%s\";\n", dists, arch)
		fmt.Fprintf(&buf, "  SrcPackages \"%s/source/Sources\";\n", dists)
		buf.WriteString("};\n")
	}

	fmt.Fprintf(&buf, "\nTree \"dists/%s\" {\n", codename)
	fmt.Fprintf(&buf, "  Sections \"%s\";\n", component)
	fmt.Fprintf(&buf, "  Architectures \"%s\";\n", strings.Join(append(append([]string{}, archs...), SourceArchitecture), " "))
	buf.WriteString("};\n")

	return buf.String()
}

// ReleaseDescription holds the top-level Release fields.
type ReleaseDescription struct {
	Origin        string
	Label         string
	Architectures []string
	Codename      string
	Suite         string
	Components    []string
	Description   string
}

// ReleaseConf returns the apt-ftparchive "release" configuration.
func ReleaseConf(d ReleaseDescription) string {
	var buf bytes.Buffer

	suite := d.Suite
	if suite == "" {
		suite = d.Codename
	}

	field := func(name, value string) {
		fmt.Fprintf(&buf, "APT::FTPArchive::Release::%s \"%s\";\n", name, value)
	}
	field("Origin", d.Origin)
	field("Label", d.Label)
	field("Architectures", strings.Join(d.Architectures, " "))
	field("Codename", d.Codename)
	field("Suite", suite)
	field("Components", strings.Join(d.Components, " "))
	field("Description", d.Description)

	return buf.String()
}

package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

var redDataTools = Repository{
	Origin:      "Red Data Tools",
	Label:       "Red Data Tools",
	Description: "Red Data Tools related packages",
}

var bookworm = models.Target{
	Family:        models.FamilyAPT,
	Distribution:  "debian",
	Codename:      "bookworm",
	Component:     "main",
	Architectures: []string{"amd64", "arm64", "i386"},
}

func TestWriteStubs(t *testing.T) {
	distsDir := filepath.Join(t.TempDir(), "dists", "bookworm")
	require.NoError(t, redDataTools.WriteStubs(distsDir, bookworm))

	for _, dir := range []string{"source", "binary-amd64", "binary-arm64", "binary-i386"} {
		assert.FileExists(t, filepath.Join(distsDir, "main", dir, "Release"))
	}

	data, err := os.ReadFile(filepath.Join(distsDir, "main", "binary-arm64", "Release"))
	require.NoError(t, err)
	assert.Equal(t, "Archive: bookworm\n"+
		"Component: main\n"+
		"Origin: Red Data Tools\n"+
		"Label: Red Data Tools\n"+
		"Architecture: arm64\n", string(data))
}

func TestWriteComponentReleaseRejectsIncompleteStub(t *testing.T) {
	err := WriteComponentRelease(t.TempDir(), Stub{Component: "main", Architecture: "amd64"})
	assert.Error(t, err)
}

func TestGenerateConf(t *testing.T) {
	conf := GenerateConf("jammy", "universe", []string{"amd64", "arm64"})

	expected := `Dir::ArchiveDir ".";
Dir::CacheDir ".";
TreeDefault::Directory "pool/jammy/universe";
TreeDefault::SrcDirectory "pool/jammy/universe";
Default::Packages::Extensions ".deb";
Default::Packages::Compress ". gzip xz";
Default::Sources::Compress ". gzip xz";
Default::Contents::Compress "gzip";

BinDirectory "dists/jammy/universe/binary-amd64" {
  Packages "dists/jammy/universe/binary-amd64/Packages";
  Contents "dists/jammy/universe/Contents-amd64";
  SrcPackages "dists/jammy/universe/source/Sources";
};

BinDirectory "dists/jammy/universe/binary-arm64" {
  Packages "dists/jammy/universe/binary-arm64/Packages";
  Contents "dists/jammy/universe/Contents-arm64";
  SrcPackages "dists/jammy/universe/source/Sources";
};

Tree "dists/jammy" {
  Sections "universe";
  Architectures "amd64 arm64 source";
};
`
	assert.Equal(t, expected, conf)
	assert.Equal(t, conf, GenerateConf("jammy", "universe", []string{"amd64", "arm64"}))
}

func TestGenerateConfDoesNotAliasArchitectures(t *testing.T) {
	archs := make([]string, 2, 3)
	copy(archs, []string{"amd64", "arm64"})

	GenerateConf("bookworm", "main", archs)
	assert.Equal(t, []string{"amd64", "arm64"}, archs)
	assert.Equal(t, "", archs[:3][2])
}

func TestReleaseConf(t *testing.T) {
	conf := ReleaseConf(redDataTools.ReleaseDescription(bookworm))

	assert.Equal(t, `APT::FTPArchive::Release::Origin "Red Data Tools";
APT::FTPArchive::Release::Label "Red Data Tools";
APT::FTPArchive::Release::Architectures "amd64 arm64 i386";
APT::FTPArchive::Release::Codename "bookworm";
APT::FTPArchive::Release::Suite "bookworm";
APT::FTPArchive::Release::Components "main";
APT::FTPArchive::Release::Description "Red Data Tools related packages";
`, conf)
}

func TestPackageList(t *testing.T) {
	archDir := filepath.Join(t.TempDir(), "x86_64")
	for _, name := range []string{
		"Packages/zlib-ng-2.1-1.el9.x86_64.rpm",
		"Packages/arrow-libs-15.0-1.el9.x86_64.rpm",
		"debug/arrow-debuginfo-15.0-1.el9.x86_64.rpm",
		"repodata/repomd.xml",
		"top-level.rpm",
	} {
		path := filepath.Join(archDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("rpm"), 0644))
	}

	list, err := PackageList(archDir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Packages/arrow-libs-15.0-1.el9.x86_64.rpm",
		"Packages/zlib-ng-2.1-1.el9.x86_64.rpm",
		"debug/arrow-debuginfo-15.0-1.el9.x86_64.rpm",
	}, list)

	listPath := filepath.Join(t.TempDir(), "pkglist")
	require.NoError(t, WritePackageList(listPath, list))
	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Equal(t, "Packages/arrow-libs-15.0-1.el9.x86_64.rpm\n"+
		"Packages/zlib-ng-2.1-1.el9.x86_64.rpm\n"+
		"debug/arrow-debuginfo-15.0-1.el9.x86_64.rpm\n", string(data))
}

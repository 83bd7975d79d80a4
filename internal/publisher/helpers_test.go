package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/distmerge"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/indexer"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/metadata"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/repodata"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/signer"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/transport"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
)

const remote = "packages@packages.example.org:public"

var (
	keyOnce sync.Once
	key     *openpgp.Entity
	keyErr  error
)

func testReleaseSigner(t *testing.T) signer.ReleaseSigner {
	t.Helper()
	keyOnce.Do(func() {
		key, keyErr = openpgp.NewEntity("Repository Signing", "", "packages@example.org", &packet.Config{RSABits: 2048})
	})
	require.NoError(t, keyErr)
	return &signer.FileSigner{Signer: signer.NewKeySignerFromEntity(key)}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, utils.WriteFile(path, []byte(content), 0644))
}

// syncRecorder records every transfer and lets a test materialize the
// remote side of fetches.
type syncRecorder struct {
	mu    sync.Mutex
	specs []transport.Spec
	fetch map[string]func() error
	fail  map[string]error
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{fetch: make(map[string]func() error), fail: make(map[string]error)}
}

// onFetch runs fn when something is synced into dest.
func (s *syncRecorder) onFetch(dest string, fn func() error) {
	s.fetch[transport.Dir(dest)] = fn
}

func (s *syncRecorder) Sync(_ context.Context, spec transport.Spec) error {
	s.mu.Lock()
	s.specs = append(s.specs, spec)
	fn := s.fetch[spec.Dest]
	err := s.fail[spec.Dest]
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if !transport.IsRemote(spec.Dest) {
		if err := os.MkdirAll(spec.Dest, 0755); err != nil {
			return err
		}
	}
	if fn != nil {
		return fn()
	}
	return nil
}

func (s *syncRecorder) all() []transport.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Spec(nil), s.specs...)
}

func fromScratch(spec transport.Spec) bool {
	return strings.HasSuffix(spec.Source, "/empty/")
}

// index returns the position of the first content transfer to dest, or -1.
func (s *syncRecorder) index(dest string) int {
	for i, spec := range s.all() {
		if spec.Dest == dest && !fromScratch(spec) {
			return i
		}
	}
	return -1
}

// purged reports whether dest was emptied remotely.
func (s *syncRecorder) purged(dest string) bool {
	for _, spec := range s.all() {
		if spec.Dest == dest && fromScratch(spec) && spec.Delete {
			return true
		}
	}
	return false
}

func (s *syncRecorder) uploads() []transport.Spec {
	var out []transport.Spec
	for _, spec := range s.all() {
		if transport.IsRemote(spec.Dest) && !fromScratch(spec) {
			out = append(out, spec)
		}
	}
	return out
}

// fakeSigner pretends every artifact below root was unsigned.
type fakeSigner struct {
	mu    sync.Mutex
	roots []string
	err   error
}

func (f *fakeSigner) Sign(ctx context.Context, root string) (*signer.SignReport, error) {
	f.mu.Lock()
	f.roots = append(f.roots, root)
	f.mu.Unlock()
	if f.err != nil {
		return &signer.SignReport{Root: root}, f.err
	}

	var unsigned []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		switch filepath.Ext(path) {
		case ".rpm", ".dsc", ".changes":
			unsigned = append(unsigned, path)
		}
		return nil
	})
	return &signer.SignReport{Root: root, Checked: len(unsigned), Unsigned: unsigned}, err
}

// fakeFTPArchive writes a fixed Packages index and Release header.
type fakeFTPArchive struct {
	packages string
	err      error
	calls    int
}

func (f *fakeFTPArchive) Generate(_ context.Context, dir, conf string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if _, err := os.Stat(conf); err != nil {
		return err
	}
	// apt-ftparchive leaves a cache database next to the pool.
	if err := os.WriteFile(filepath.Join(dir, "packages-amd64.db"), []byte("db"), 0644); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(dir, "dists", "*", "main", "binary-amd64"))
	if err != nil || len(matches) != 1 {
		return errors.Newf("unexpected dists layout in %s", dir)
	}
	return os.WriteFile(filepath.Join(matches[0], "Packages"), []byte(f.packages), 0644)
}

func (f *fakeFTPArchive) Release(_ context.Context, dir, conf, distsDir string) ([]byte, error) {
	if _, err := os.Stat(filepath.Join(dir, distsDir)); err != nil {
		return nil, err
	}
	return []byte(`Origin: Red Data Tools
Label: Red Data Tools
Suite: bookworm
Codename: bookworm
Date: Sat, 01 Jun 2024 00:00:00 UTC
Architectures: amd64
Components: main
Description: Red Data Tools related packages
`), nil
}

type rpmEntry struct {
	name, ver, rel, arch, href string
}

func rpmFromPath(rel string) rpmEntry {
	// Packages/<name>-<ver>-<rel>.<arch>.rpm
	base := strings.TrimSuffix(filepath.Base(rel), ".rpm")
	arch := base[strings.LastIndex(base, ".")+1:]
	base = strings.TrimSuffix(base, "."+arch)
	parts := strings.Split(base, "-")
	n := len(parts)
	return rpmEntry{
		name: strings.Join(parts[:n-2], "-"),
		ver:  parts[n-2],
		rel:  parts[n-1],
		arch: arch,
		href: rel,
	}
}

func writeRepodata(t *testing.T, archDir string, pkgs ...rpmEntry) {
	t.Helper()
	require.NoError(t, writeRepodataFiles(archDir, pkgs))
}

func writeRepodataFiles(archDir string, pkgs []rpmEntry) error {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="%d">
`, len(pkgs))
	for _, p := range pkgs {
		fmt.Fprintf(&b, `<package type="rpm"><name>%s</name><arch>%s</arch><version epoch="0" ver="%s" rel="%s"/><checksum type="sha256" pkgid="YES">%s</checksum><location href="%s"/></package>
`, p.name, p.arch, p.ver, p.rel, sha256Hex([]byte(p.href)), p.href)
	}
	b.WriteString("</metadata>\n")
	if err := utils.WriteFile(filepath.Join(archDir, "repodata", "primary.xml"), []byte(b.String()), 0644); err != nil {
		return err
	}
	repomd := `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo" xmlns:rpm="http://linux.duke.edu/metadata/rpm">
<revision>1700000000</revision>
<data type="primary"><location href="repodata/primary.xml"/></data>
</repomd>
`
	return utils.WriteFile(filepath.Join(archDir, "repodata", repodata.RepomdFile), []byte(repomd), 0644)
}

// fakeCreateRepo keeps the packages of the previous repodata and adds
// those of the package list, like createrepo_c --update --recycle-pkglist.
type fakeCreateRepo struct {
	mu        sync.Mutex
	updates   []indexer.YumUpdate
	rebuilds  []string
	forgetOld bool
}

func (f *fakeCreateRepo) Update(_ context.Context, u indexer.YumUpdate) error {
	f.mu.Lock()
	f.updates = append(f.updates, u)
	f.mu.Unlock()

	var entries []rpmEntry
	if !f.forgetOld {
		old, err := repodata.ReadPrimary(u.OutputDir)
		if err != nil {
			return err
		}
		for _, p := range old {
			entries = append(entries, rpmEntry{name: p.Name, ver: p.Version, rel: p.Release, arch: p.Arch, href: p.Location})
		}
	}
	list, err := os.ReadFile(u.PkgList)
	if err != nil {
		return err
	}
	for _, line := range strings.Fields(string(list)) {
		entries = append(entries, rpmFromPath(line))
	}
	return writeRepodataFiles(u.OutputDir, entries)
}

func (f *fakeCreateRepo) Rebuild(_ context.Context, dir string) error {
	f.mu.Lock()
	f.rebuilds = append(f.rebuilds, dir)
	f.mu.Unlock()

	list, err := metadata.PackageList(dir)
	if err != nil {
		return err
	}
	entries := make([]rpmEntry, 0, len(list))
	for _, rel := range list {
		entries = append(entries, rpmFromPath(rel))
	}
	return writeRepodataFiles(dir, entries)
}

type harness struct {
	pub    *Publisher
	syncer *syncRecorder
	apt    *fakeFTPArchive
	yum    *fakeCreateRepo
	debs   *fakeSigner
	rpms   *fakeSigner
	work   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		syncer: newSyncRecorder(),
		apt: &fakeFTPArchive{packages: `Package: hello
Version: 1.0-1
Architecture: amd64
Filename: pool/bookworm/main/h/hello/hello_1.0-1_amd64.deb
SHA256: 1111111111111111111111111111111111111111111111111111111111111111
`},
		yum:  &fakeCreateRepo{},
		debs: &fakeSigner{},
		rpms: &fakeSigner{},
		work: t.TempDir(),
	}
	h.pub = &Publisher{
		Options: Options{
			WorkDir:  h.work,
			Remote:   remote,
			Parallel: 2,
			Repository: metadata.Repository{
				Origin:      "Red Data Tools",
				Label:       "Red Data Tools",
				Description: "Red Data Tools related packages",
			},
		},
		Syncer:    h.syncer,
		APT:       h.apt,
		Yum:       h.yum,
		Merger:    distmerge.NewMerger(),
		Releases:  testReleaseSigner(t),
		APTSigner: h.debs,
		YumSigner: h.rpms,
	}
	return h
}

func (h *harness) layout(target models.Target) layout {
	return newLayout(h.work, remote, target)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

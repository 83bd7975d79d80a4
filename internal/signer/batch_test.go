package signer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatch(checker Checker, rpm, deb Resigner) *BatchSigner {
	return &BatchSigner{
		Scanner: scanner.NewFileSystemScanner(),
		Checker: checker,
		Families: []Family{
			{Name: "rpm", Types: []models.ArtifactType{models.ArtifactRPM}, Resigner: rpm},
			{Name: "deb", Types: []models.ArtifactType{models.ArtifactDsc, models.ArtifactChanges}, Resigner: deb},
		},
		Workers: 3,
	}
}

func TestBatchSignerResignsOnlyUnsigned(t *testing.T) {
	root := t.TempDir()
	paths := map[string]string{
		"rpm/b-1.0-1.x86_64.rpm": "",
		"rpm/a-1.0-1.x86_64.rpm": "",
		"rpm/c-1.0-1.x86_64.rpm": "",
		"pool/hello_1.0-1.dsc":   "",
		"pool/hello_1.0-1.deb":   "",
		"pool/README":            "",
	}
	for p := range paths {
		writeFile(t, filepath.Join(root, p), "x")
	}
	checker := &mapChecker{signed: map[string]bool{
		filepath.Join(root, "rpm/c-1.0-1.x86_64.rpm"): true,
	}}
	rpm, deb := &recordingResigner{}, &recordingResigner{}

	report, err := newBatch(checker, rpm, deb).Sign(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Checked)
	assert.Len(t, checker.checked, 4)
	require.Len(t, rpm.calls, 1)
	assert.Equal(t, []string{
		filepath.Join(root, "rpm/a-1.0-1.x86_64.rpm"),
		filepath.Join(root, "rpm/b-1.0-1.x86_64.rpm"),
	}, rpm.calls[0])
	require.Len(t, deb.calls, 1)
	assert.Equal(t, []string{filepath.Join(root, "pool/hello_1.0-1.dsc")}, deb.calls[0])
	assert.Equal(t, []string{filepath.Join(root, "rpm/c-1.0-1.x86_64.rpm")}, report.Signed)
	assert.Len(t, report.Unsigned, 3)
}

func TestBatchSignerNothingToDo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.rpm"), "x")
	checker := &mapChecker{signed: map[string]bool{filepath.Join(root, "a.rpm"): true}}
	rpm, deb := &recordingResigner{}, &recordingResigner{}

	report, err := newBatch(checker, rpm, deb).Sign(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, report.Unsigned)
	assert.Empty(t, rpm.calls)
	assert.Empty(t, deb.calls)
}

func TestBatchSignerEmptyTree(t *testing.T) {
	checker := &mapChecker{}
	rpm, deb := &recordingResigner{}, &recordingResigner{}
	truster := &countingTruster{}
	b := newBatch(checker, rpm, deb)
	b.Trust = truster

	report, err := b.Sign(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	assert.Equal(t, 1, truster.calls)
	assert.Empty(t, rpm.calls)
}

func TestBatchSignerCheckFailureSignsNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.rpm"), "x")
	writeFile(t, filepath.Join(root, "b.rpm"), "x")
	checker := &mapChecker{fail: map[string]error{
		filepath.Join(root, "b.rpm"): errors.New("rpm crashed"),
	}}
	rpm, deb := &recordingResigner{}, &recordingResigner{}

	_, err := newBatch(checker, rpm, deb).Sign(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpm crashed")
	assert.Empty(t, rpm.calls)
}

func TestBatchSignerTrustFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.rpm"), "x")
	checker := &mapChecker{}
	b := newBatch(checker, &recordingResigner{}, &recordingResigner{})
	b.Trust = &countingTruster{err: errors.New("no key")}

	_, err := b.Sign(context.Background(), root)
	require.Error(t, err)
	assert.Empty(t, checker.checked)
}

func TestBatchSignerResignFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.rpm"), "x")
	rpm := &recordingResigner{err: errors.New("rpm --resign failed")}

	_, err := newBatch(&mapChecker{}, rpm, &recordingResigner{}).Sign(context.Background(), root)
	assert.Error(t, err)
}

func TestBatchSignerSecondRunResignsNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x86_64/Packages/a-1.0-1.x86_64.rpm"), "x")
	writeFile(t, filepath.Join(root, "x86_64/Packages/b-1.0-1.x86_64.rpm"), "x")
	writeFile(t, filepath.Join(root, "source/hello_1.0-1.dsc"), "x")
	checker := &mapChecker{signed: map[string]bool{}}
	rpm := &signingResigner{checker: checker}
	deb := &signingResigner{checker: checker}
	b := newBatch(checker, rpm, deb)

	first, err := b.Sign(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, first.Unsigned, 3)
	require.Len(t, rpm.calls, 1)
	require.Len(t, deb.calls, 1)

	second, err := b.Sign(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, second.Unsigned)
	assert.Len(t, second.Signed, 3)
	assert.Len(t, rpm.calls, 1)
	assert.Len(t, deb.calls, 1)
}

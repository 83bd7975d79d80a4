package signer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner/runnertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChecksig(t *testing.T) {
	const path = "/pool/a-1.0-1.x86_64.rpm"
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"signed", path + ": digests signatures OK\n", true},
		{"digests only", path + ": digests OK\n", false},
		{"unknown key", path + ": digests SIGNATURES NOT OK\n", false},
		{"legacy pgp", path + ": rsa sha1 (md5) pgp md5 OK\n", true},
		{"legacy unsigned", path + ": sha1 md5 OK\n", false},
		{"other prefix", "a.rpm: digests signatures OK", true},
		{"second line ignored", path + ": digests OK\n" + path + ": signatures OK\n", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseChecksig(path, tt.output))
		})
	}
}

func TestRPMToolChecker(t *testing.T) {
	fake := runnertest.New()
	fake.Handle("rpm", func(_ context.Context, cmd runner.Command) (*runner.Result, error) {
		file := cmd.Args[len(cmd.Args)-1]
		if filepath.Base(file) == "signed.rpm" {
			return &runner.Result{Stdout: file + ": digests signatures OK\n"}, nil
		}
		out := file + ": digests SIGNATURES NOT OK\n"
		return &runner.Result{Stdout: out, ExitCode: 1},
			&runner.ExitError{Command: cmd.String(), ExitCode: 1}
	})
	c := NewRPMToolChecker(fake)

	signed, err := c.IsSigned(context.Background(), models.Artifact{Path: "/p/signed.rpm", Type: models.ArtifactRPM})
	require.NoError(t, err)
	assert.True(t, signed)

	signed, err = c.IsSigned(context.Background(), models.Artifact{Path: "/p/other.rpm", Type: models.ArtifactRPM})
	require.NoError(t, err)
	assert.False(t, signed)

	calls := fake.CallsTo("rpm")
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"--checksig", "/p/signed.rpm"}, calls[0].Args)
}

func TestRPMToolCheckerMissingBinary(t *testing.T) {
	fake := runnertest.New()
	fake.Handle("rpm", func(context.Context, runner.Command) (*runner.Result, error) {
		return &runner.Result{ExitCode: -1}, errors.New("executable file not found")
	})

	_, err := NewRPMToolChecker(fake).IsSigned(context.Background(), models.Artifact{Path: "a.rpm", Type: models.ArtifactRPM})
	assert.Error(t, err)
}

func TestDebToolChecker(t *testing.T) {
	fake := runnertest.New()
	c := NewDebToolChecker(fake)
	a := models.Artifact{Path: "/p/hello_1.0.dsc", Type: models.ArtifactDsc}

	signed, err := c.IsSigned(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, signed)
	call := fake.CallsTo("gpg")[0]
	assert.Equal(t, []string{"--verify", a.Path}, call.Args)
	assert.Equal(t, "C", call.Env["LANG"])

	fake.Handle("gpg", runnertest.Fail(1, "gpg: no valid OpenPGP data found."))
	signed, err = c.IsSigned(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, signed)

	fake.Handle("gpg", func(context.Context, runner.Command) (*runner.Result, error) {
		return nil, errors.New("executable file not found")
	})
	_, err = c.IsSigned(context.Background(), a)
	assert.Error(t, err)
}

func TestTypedCheckerDispatch(t *testing.T) {
	rpm := &mapChecker{signed: map[string]bool{"a.rpm": true}}
	deb := &mapChecker{signed: map[string]bool{}}
	c := &TypedChecker{RPM: rpm, Deb: deb}

	signed, err := c.IsSigned(context.Background(), models.Artifact{Path: "a.rpm", Type: models.ArtifactRPM})
	require.NoError(t, err)
	assert.True(t, signed)

	signed, err = c.IsSigned(context.Background(), models.Artifact{Path: "a.changes", Type: models.ArtifactChanges})
	require.NoError(t, err)
	assert.False(t, signed)
	assert.Equal(t, []string{"a.changes"}, deb.checked)

	_, err = c.IsSigned(context.Background(), models.Artifact{Path: "a.deb", Type: models.ArtifactDeb})
	assert.Error(t, err)

	_, err = (&TypedChecker{}).IsSigned(context.Background(), models.Artifact{Path: "a.rpm", Type: models.ArtifactRPM})
	assert.Error(t, err)
}

func TestDebNativeChecker(t *testing.T) {
	key, stranger := testKeys(t)
	v, err := NewVerifier(publicKeyring(t, key))
	require.NoError(t, err)
	c := &DebNativeChecker{Verifier: v}
	dir := t.TempDir()

	const dsc = "Format: 3.0 (quilt)\nSource: hello\nVersion: 1.0-1\n"

	plain := filepath.Join(dir, "plain.dsc")
	writeFile(t, plain, dsc)
	signed, err := c.IsSigned(context.Background(), models.Artifact{Path: plain, Type: models.ArtifactDsc})
	require.NoError(t, err)
	assert.False(t, signed)

	body, err := NewKeySignerFromEntity(key).SignCleartext([]byte(dsc))
	require.NoError(t, err)
	good := filepath.Join(dir, "good.dsc")
	writeFile(t, good, string(body))
	signed, err = c.IsSigned(context.Background(), models.Artifact{Path: good, Type: models.ArtifactDsc})
	require.NoError(t, err)
	assert.True(t, signed)

	body, err = NewKeySignerFromEntity(stranger).SignCleartext([]byte(dsc))
	require.NoError(t, err)
	foreign := filepath.Join(dir, "foreign.dsc")
	writeFile(t, foreign, string(body))
	signed, err = c.IsSigned(context.Background(), models.Artifact{Path: foreign, Type: models.ArtifactDsc})
	require.NoError(t, err)
	assert.False(t, signed)

	_, err = c.IsSigned(context.Background(), models.Artifact{Path: filepath.Join(dir, "missing.dsc"), Type: models.ArtifactDsc})
	assert.Error(t, err)
}

func TestRPMNativeCheckerTreatsGarbageAsUnsigned(t *testing.T) {
	key, _ := testKeys(t)
	path := filepath.Join(t.TempDir(), "broken.rpm")
	writeFile(t, path, "not an rpm")

	c := &RPMNativeChecker{Keys: openpgp.EntityList{key}}
	signed, err := c.IsSigned(context.Background(), models.Artifact{Path: path, Type: models.ArtifactRPM})
	require.NoError(t, err)
	assert.False(t, signed)

	_, err = c.IsSigned(context.Background(), models.Artifact{Path: path + ".missing", Type: models.ArtifactRPM})
	assert.Error(t, err)
}

package signer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	releaseGPG = "Release.gpg"
	inRelease  = "InRelease"
)

func removeStale(paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove stale signature %s", p)
		}
	}
	return nil
}

// FileSigner signs manifests on disk with an in-process Signer.
type FileSigner struct {
	Signer Signer
}

// SignRelease implements ReleaseSigner
func (s *FileSigner) SignRelease(ctx context.Context, release string) error {
	dir := filepath.Dir(release)
	detached := filepath.Join(dir, releaseGPG)
	inline := filepath.Join(dir, inRelease)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := removeStale(detached, inline); err != nil {
		return err
	}

	data, err := os.ReadFile(release)
	if err != nil {
		return errors.Wrap(err, "failed to read Release")
	}

	sig, err := s.Signer.SignDetached(data)
	if err != nil {
		return errors.Wrap(err, "failed to sign Release")
	}
	if err := utils.WriteFileAtomic(detached, sig, 0o644); err != nil {
		return err
	}

	signed, err := s.Signer.SignCleartext(data)
	if err != nil {
		return errors.Wrap(err, "failed to create InRelease")
	}
	if err := utils.WriteFileAtomic(inline, signed, 0o644); err != nil {
		return err
	}

	logrus.Debugf("Signed %s", release)
	return nil
}

// SignDetachedFile implements ReleaseSigner
func (s *FileSigner) SignDetachedFile(ctx context.Context, path, sigPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := removeStale(sigPath); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	sig, err := s.Signer.SignDetached(data)
	if err != nil {
		return errors.Wrapf(err, "failed to sign %s", path)
	}
	return utils.WriteFileAtomic(sigPath, sig, 0o644)
}

// PublicKey implements ReleaseSigner
func (s *FileSigner) PublicKey(context.Context) ([]byte, error) {
	return s.Signer.GetPublicKey()
}

// GPGSigner signs manifests by running gpg with a key from the local
// keyring.
type GPGSigner struct {
	Runner runner.Runner
	KeyID  string
	Binary string
}

// NewGPGSigner creates a signer running gpg as keyID
func NewGPGSigner(r runner.Runner, keyID string) *GPGSigner {
	return &GPGSigner{Runner: r, KeyID: keyID, Binary: "gpg"}
}

func (s *GPGSigner) sign(ctx context.Context, mode, src, dst string) error {
	tmp := dst + ".tmp"
	if err := removeStale(tmp); err != nil {
		return err
	}
	args := []string{"--batch", "--yes", mode}
	if mode == "--detach-sign" {
		args = append(args, "--armor")
	}
	args = append(args, "--local-user", s.KeyID, "--output", tmp, src)
	if err := runToCompletion(ctx, s.Runner, runner.Command{Name: s.Binary, Args: args}); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to sign %s", src)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to install %s", dst)
	}
	return nil
}

// SignRelease implements ReleaseSigner
func (s *GPGSigner) SignRelease(ctx context.Context, release string) error {
	dir := filepath.Dir(release)
	detached := filepath.Join(dir, releaseGPG)
	inline := filepath.Join(dir, inRelease)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := removeStale(detached, inline); err != nil {
		return err
	}
	// Both signatures are produced once started.
	ctx = context.WithoutCancel(ctx)
	if err := s.sign(ctx, "--detach-sign", release, detached); err != nil {
		return err
	}
	return s.sign(ctx, "--clear-sign", release, inline)
}

// SignDetachedFile implements ReleaseSigner
func (s *GPGSigner) SignDetachedFile(ctx context.Context, path, sigPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := removeStale(sigPath); err != nil {
		return err
	}
	return s.sign(ctx, "--detach-sign", path, sigPath)
}

// PublicKey implements ReleaseSigner
func (s *GPGSigner) PublicKey(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.Runner.Run(ctx, runner.Command{
		Name:   s.Binary,
		Args:   []string{"--armor", "--export", s.KeyID},
		Stdout: &buf,
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to export key %s", s.KeyID)
	}
	if buf.Len() == 0 {
		return nil, errors.Newf("key %s is not in the gpg keyring", s.KeyID)
	}
	return buf.Bytes(), nil
}

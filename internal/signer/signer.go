// Package signer attaches and checks OpenPGP signatures on packages and
// repository manifests.
package signer

import (
	"context"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
)

// Signer signs repository metadata held in memory
type Signer interface {
	// SignCleartext creates a cleartext signature (for Debian InRelease)
	SignCleartext(data []byte) ([]byte, error)

	// SignDetached creates a detached signature (for Release.gpg, repomd.xml.asc)
	SignDetached(data []byte) ([]byte, error)

	// GetPublicKey returns the public key
	GetPublicKey() ([]byte, error)
}

// ReleaseSigner signs manifests on disk. Outputs are replaced atomically
// and stale signatures are removed before signing starts.
type ReleaseSigner interface {
	// SignRelease writes Release.gpg and InRelease next to release.
	SignRelease(ctx context.Context, release string) error

	// SignDetachedFile writes an armored detached signature of path to sigPath.
	SignDetachedFile(ctx context.Context, path, sigPath string) error

	// PublicKey returns the armored public key of the signing identity.
	PublicKey(ctx context.Context) ([]byte, error)
}

// Checker tells whether an artifact already carries a valid signature.
// A missing or invalid signature is reported as false, not as an error.
type Checker interface {
	IsSigned(ctx context.Context, artifact models.Artifact) (bool, error)
}

// Resigner signs a batch of artifacts of one family in a single tool
// invocation.
type Resigner interface {
	Resign(ctx context.Context, paths []string) error
}

// KeyTruster makes the signing key known to the package tooling.
type KeyTruster interface {
	EnsureTrusted(ctx context.Context) error
}

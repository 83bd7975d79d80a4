package models

// ArtifactType is the kind of signable file found in a pool.
type ArtifactType int

const (
	ArtifactUnknown ArtifactType = iota
	ArtifactRPM
	ArtifactDeb
	ArtifactDsc
	ArtifactChanges
)

// String returns the string representation of ArtifactType
func (t ArtifactType) String() string {
	switch t {
	case ArtifactRPM:
		return "rpm"
	case ArtifactDeb:
		return "deb"
	case ArtifactDsc:
		return "dsc"
	case ArtifactChanges:
		return "changes"
	default:
		return "unknown"
	}
}

// Signable reports whether the artifact carries its own signature.
// Binary .deb files are covered by the signed .changes/.dsc and the
// Release manifest instead.
func (t ArtifactType) Signable() bool {
	switch t {
	case ArtifactRPM, ArtifactDsc, ArtifactChanges:
		return true
	default:
		return false
	}
}

// Artifact is a single package file awaiting publication.
type Artifact struct {
	Path string
	Type ArtifactType
	Size int64

	// Signed is filled in by the signature checker.
	Signed *bool
}

// SigningIdentity references the GPG keys used for a repository.
type SigningIdentity struct {
	// KeyID is the primary key; it is the only one that signs.
	KeyID string
	// TrustedKeyIDs may co-exist in the local trust store.
	TrustedKeyIDs []string
}

// ShortKeyID returns the last 8 hex digits of the primary key id.
func (s SigningIdentity) ShortKeyID() string {
	return ShortKeyID(s.KeyID)
}

// ShortKeyID returns the last 8 characters of a fingerprint or key id.
func ShortKeyID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

package signer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/gopenpgp/v3/crypto"
	"github.com/cockroachdb/errors"
)

// ErrBadSignature is returned when no trusted key verifies a signature.
var ErrBadSignature = errors.New("signature not verified by a trusted key")

// Verifier checks signatures produced by the publisher against a set of
// trusted public keys.
type Verifier struct {
	pgp  *crypto.PGPHandle
	keys []*crypto.Key
}

// NewVerifier creates a verifier from an armored public keyring.
func NewVerifier(armored []byte) (*Verifier, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read public keys")
	}

	v := &Verifier{pgp: crypto.PGP()}
	for _, e := range entities {
		var buf bytes.Buffer
		if err := armorEntity(&buf, e); err != nil {
			return nil, errors.Wrap(err, "failed to serialize public key")
		}
		key, err := crypto.NewKeyFromArmored(buf.String())
		if err != nil {
			return nil, errors.Wrap(err, "failed to load public key")
		}
		v.keys = append(v.keys, key)
	}
	if len(v.keys) == 0 {
		return nil, errors.New("no public keys to verify with")
	}
	return v, nil
}

func armorEntity(w io.Writer, e *openpgp.Entity) error {
	aw, err := armor.Encode(w, openpgp.PublicKeyType, nil)
	if err != nil {
		return err
	}
	if err := e.Serialize(aw); err != nil {
		aw.Close()
		return err
	}
	return aw.Close()
}

// NewVerifierFromFile reads the keyring at path.
func NewVerifierFromFile(path string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read public key file")
	}
	return NewVerifier(data)
}

// KeyIDs returns the hex key ids the verifier trusts.
func (v *Verifier) KeyIDs() []string {
	ids := make([]string, 0, len(v.keys))
	for _, k := range v.keys {
		ids = append(ids, k.GetHexKeyID())
	}
	return ids
}

// VerifyCleartext checks an inline signed message.
func (v *Verifier) VerifyCleartext(signed []byte) error {
	var lastErr error
	for _, key := range v.keys {
		verifier, err := v.pgp.Verify().VerificationKey(key).New()
		if err != nil {
			return errors.Wrap(err, "failed to create verifier")
		}
		result, err := verifier.VerifyCleartext(signed)
		if err != nil {
			lastErr = err
			continue
		}
		if sigErr := result.SignatureError(); sigErr != nil {
			lastErr = sigErr
			continue
		}
		return nil
	}
	return errors.WithSecondaryError(ErrBadSignature, lastErr)
}

// VerifyDetached checks an armored detached signature over data.
func (v *Verifier) VerifyDetached(data, signature []byte) error {
	var lastErr error
	for _, key := range v.keys {
		verifier, err := v.pgp.Verify().VerificationKey(key).New()
		if err != nil {
			return errors.Wrap(err, "failed to create verifier")
		}
		result, err := verifier.VerifyDetached(data, signature, crypto.Armor)
		if err != nil {
			lastErr = err
			continue
		}
		if sigErr := result.SignatureError(); sigErr != nil {
			lastErr = sigErr
			continue
		}
		return nil
	}
	return errors.WithSecondaryError(ErrBadSignature, lastErr)
}

// VerifyFile checks the detached signature sigPath of path.
func (v *Verifier) VerifyFile(path, sigPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read signed file")
	}
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return errors.Wrap(err, "failed to read signature")
	}
	return errors.Wrapf(v.VerifyDetached(data, sig), "%s", sigPath)
}

// VerifyRelease checks Release.gpg and InRelease next to release.
func (v *Verifier) VerifyRelease(release string) error {
	dir := filepath.Dir(release)
	if err := v.VerifyFile(release, filepath.Join(dir, "Release.gpg")); err != nil {
		return err
	}
	inRelease := filepath.Join(dir, "InRelease")
	data, err := os.ReadFile(inRelease)
	if err != nil {
		return errors.Wrap(err, "failed to read InRelease")
	}
	return errors.Wrapf(v.VerifyCleartext(data), "%s", inRelease)
}

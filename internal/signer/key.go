package signer

import (
	"bytes"
	"crypto"
	"os"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/cockroachdb/errors"
)

// KeySigner implements Signer with an in-process private key
type KeySigner struct {
	entity *openpgp.Entity
	config *packet.Config
}

// NewKeySigner creates a signer from a private key file
func NewKeySigner(keyPath string, passphrase []byte) (*KeySigner, error) {
	if keyPath == "" {
		return nil, errors.New("key path is empty")
	}

	// Read private key file
	keyFile, err := os.Open(keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open key file")
	}
	defer keyFile.Close()

	// Try to parse as armored key first
	entityList, err := openpgp.ReadArmoredKeyRing(keyFile)
	if err != nil {
		// Try as binary key
		if _, serr := keyFile.Seek(0, 0); serr != nil {
			return nil, serr
		}
		entityList, err = openpgp.ReadKeyRing(keyFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read key")
		}
	}

	if len(entityList) == 0 {
		return nil, errors.New("no keys found in key file")
	}

	entity := entityList[0]
	if entity.PrivateKey == nil {
		return nil, errors.Newf("%s holds no private key", keyPath)
	}

	// Decrypt private key and subkeys if passphrase provided
	if len(passphrase) > 0 {
		if err := entity.DecryptPrivateKeys(passphrase); err != nil {
			return nil, errors.Wrap(err, "failed to decrypt private key")
		}
	}

	return NewKeySignerFromEntity(entity), nil
}

// NewKeySignerFromEntity wraps an already decrypted entity.
func NewKeySignerFromEntity(entity *openpgp.Entity) *KeySigner {
	return &KeySigner{
		entity: entity,
		config: &packet.Config{DefaultHash: crypto.SHA512},
	}
}

// KeyID returns the hex key id of the primary key.
func (s *KeySigner) KeyID() string {
	return s.entity.PrimaryKey.KeyIdString()
}

// SignCleartext creates a cleartext signature (for Debian InRelease)
func (s *KeySigner) SignCleartext(data []byte) ([]byte, error) {
	key, ok := s.entity.SigningKey(s.now())
	if !ok || key.PrivateKey == nil {
		return nil, errors.New("no usable signing key")
	}

	var buf bytes.Buffer
	w, err := clearsign.Encode(&buf, key.PrivateKey, s.config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start cleartext signature")
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to sign")
	}

	return buf.Bytes(), nil
}

// SignDetached creates a detached signature (for Release.gpg, repomd.xml.asc)
func (s *KeySigner) SignDetached(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	if err := openpgp.ArmoredDetachSign(&buf, s.entity, bytes.NewReader(data), s.config); err != nil {
		return nil, errors.Wrap(err, "failed to create detached signature")
	}

	return buf.Bytes(), nil
}

// GetPublicKey returns the public key in armored format
func (s *KeySigner) GetPublicKey() ([]byte, error) {
	var buf bytes.Buffer
	if err := armorEntity(&buf, s.entity); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *KeySigner) now() time.Time {
	if s.config.Time != nil {
		return s.config.Time()
	}
	return time.Now()
}

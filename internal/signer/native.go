package signer

import (
	"bytes"
	"context"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/sassoftware/go-rpmutils"
	"github.com/sirupsen/logrus"
)

// LoadKeyRing reads an armored public keyring.
func LoadKeyRing(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open keyring")
	}
	defer f.Close()

	keys, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read keyring %s", path)
	}
	if len(keys) == 0 {
		return nil, errors.Newf("keyring %s is empty", path)
	}
	return keys, nil
}

// RPMNativeChecker verifies RPM signatures in-process against a keyring
// instead of the rpm database.
type RPMNativeChecker struct {
	Keys openpgp.EntityList
}

// IsSigned implements Checker
func (c *RPMNativeChecker) IsSigned(ctx context.Context, a models.Artifact) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f, err := os.Open(a.Path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to open %s", a.Path)
	}
	defer f.Close()

	_, sigs, err := rpmutils.Verify(f, c.Keys)
	if err != nil {
		logrus.Debugf("%s: signature not verified: %v", a.Path, err)
		return false, nil
	}
	for _, sig := range sigs {
		if sig.Signer != nil {
			return true, nil
		}
	}
	return false, nil
}

var cleartextHeader = []byte("-----BEGIN PGP SIGNED MESSAGE-----")

// DebNativeChecker verifies inline signatures of .dsc and .changes files
// in-process.
type DebNativeChecker struct {
	Verifier *Verifier
}

// IsSigned implements Checker
func (c *DebNativeChecker) IsSigned(ctx context.Context, a models.Artifact) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", a.Path)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\r\n\t "), cleartextHeader) {
		return false, nil
	}
	if err := c.Verifier.VerifyCleartext(data); err != nil {
		logrus.Debugf("%s: signature not verified: %v", a.Path, err)
		return false, nil
	}
	return true, nil
}

package signer

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
	"github.com/sirupsen/logrus"
)

// RPMToolChecker asks `rpm --checksig` whether a package is signed by a
// key present in the rpm database.
type RPMToolChecker struct {
	Runner runner.Runner
	Binary string
}

// NewRPMToolChecker creates a checker running rpm
func NewRPMToolChecker(r runner.Runner) *RPMToolChecker {
	return &RPMToolChecker{Runner: r, Binary: "rpm"}
}

// IsSigned implements Checker
func (c *RPMToolChecker) IsSigned(ctx context.Context, a models.Artifact) (bool, error) {
	res, err := c.Runner.Run(ctx, runner.Command{
		Name: c.Binary,
		Args: []string{"--checksig", a.Path},
		Env:  map[string]string{"LANG": "C"},
	})
	if err != nil && !runner.IsExitError(err) {
		return false, errors.Wrapf(err, "failed to check signature of %s", a.Path)
	}
	var out string
	if res != nil {
		out = res.Stdout
	}
	signed := ParseChecksig(a.Path, out)
	logrus.Debugf("rpm --checksig %s: signed=%t", a.Path, signed)
	return signed, nil
}

// ParseChecksig interprets the first line of `rpm --checksig` output.
// rpm prints lowercase tokens for checks that passed and uppercase ones
// for checks that failed, so "digests signatures OK" is signed while
// "digests OK" and "digests SIGNATURES NOT OK" are not. Older releases
// report the signature as "pgp" or "gpg".
func ParseChecksig(path, output string) bool {
	line, _, _ := strings.Cut(output, "\n")
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, path+":"); ok {
		line = rest
	} else if i := strings.LastIndex(line, ": "); i >= 0 {
		line = line[i+2:]
	}

	tokens := strings.Fields(line)
	if len(tokens) < 2 || tokens[len(tokens)-1] != "OK" {
		return false
	}
	if tokens[len(tokens)-2] == "NOT" {
		return false
	}
	for _, t := range tokens[:len(tokens)-1] {
		switch t {
		case "signatures", "pgp", "gpg":
			return true
		}
	}
	return false
}

// DebToolChecker asks `gpg --verify` whether a .dsc or .changes file
// carries a valid inline signature.
type DebToolChecker struct {
	Runner runner.Runner
	Binary string
}

// NewDebToolChecker creates a checker running gpg
func NewDebToolChecker(r runner.Runner) *DebToolChecker {
	return &DebToolChecker{Runner: r, Binary: "gpg"}
}

// IsSigned implements Checker
func (c *DebToolChecker) IsSigned(ctx context.Context, a models.Artifact) (bool, error) {
	_, err := c.Runner.Run(ctx, runner.Command{
		Name: c.Binary,
		Args: []string{"--verify", a.Path},
		Env:  map[string]string{"LANG": "C"},
	})
	switch {
	case err == nil:
		return true, nil
	case runner.IsExitError(err):
		logrus.Debugf("gpg --verify %s: %v", a.Path, err)
		return false, nil
	default:
		return false, errors.Wrapf(err, "failed to check signature of %s", a.Path)
	}
}

// TypedChecker dispatches to a checker per artifact type.
type TypedChecker struct {
	RPM Checker
	Deb Checker
}

// IsSigned implements Checker
func (c *TypedChecker) IsSigned(ctx context.Context, a models.Artifact) (bool, error) {
	var checker Checker
	switch a.Type {
	case models.ArtifactRPM:
		checker = c.RPM
	case models.ArtifactDsc, models.ArtifactChanges:
		checker = c.Deb
	default:
		return false, errors.Newf("%s artifacts carry no signature: %s", a.Type, a.Path)
	}
	if checker == nil {
		return false, errors.Newf("no signature checker for %s artifacts", a.Type)
	}
	return checker.IsSigned(ctx, a)
}

package distmerge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
)

type recordingRunner func(name string, args []string)

func (r recordingRunner) Run(_ context.Context, cmd runner.Command) (*runner.Result, error) {
	r(cmd.Name, cmd.Args)
	return &runner.Result{}, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

package distmerge

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
)

// CommandMerger delegates the merge to an external program invoked as
// "<command...> <base> <incoming> <merged>".
type CommandMerger struct {
	Runner  runner.Runner
	Command string
}

// Merge implements the merge contract with the external program.
func (c *CommandMerger) Merge(ctx context.Context, base, incoming, merged string) error {
	if err := checkDistinct(base, incoming, merged); err != nil {
		return err
	}
	argv := strings.Fields(c.Command)
	if len(argv) == 0 {
		return errors.New("merge command is empty")
	}
	args := append(argv[1:], base, incoming, merged)
	if _, err := c.Runner.Run(ctx, runner.Command{Name: argv[0], Args: args}); err != nil {
		return errors.Wrap(err, "merge command failed")
	}
	return nil
}

// Package runnertest provides a scriptable runner.Runner for tests.
package runnertest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
)

// Handler produces the result of one fake invocation.
type Handler func(ctx context.Context, cmd runner.Command) (*runner.Result, error)

// Fake records every command and dispatches to handlers keyed by program
// name. Programs without a handler succeed with empty output.
type Fake struct {
	mu       sync.Mutex
	calls    []runner.Command
	handlers map[string]Handler
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// Handle registers h for program name.
func (f *Fake) Handle(name string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
}

// Run implements runner.Runner.
func (f *Fake) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	h := f.handlers[cmd.Name]
	f.mu.Unlock()

	if h == nil {
		return &runner.Result{}, nil
	}
	res, err := h(ctx, cmd)
	if res != nil && cmd.Stdout != nil && res.Stdout != "" {
		if _, werr := io.WriteString(cmd.Stdout, res.Stdout); werr != nil {
			return res, werr
		}
	}
	return res, err
}

// Calls returns a copy of the recorded commands.
func (f *Fake) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.calls...)
}

// CallsTo returns the recorded invocations of program name.
func (f *Fake) CallsTo(name string) []runner.Command {
	var out []runner.Command
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Fail returns a handler that exits with code and stderr.
func Fail(code int, stderr string) Handler {
	return func(_ context.Context, cmd runner.Command) (*runner.Result, error) {
		return &runner.Result{ExitCode: code, Stderr: stderr},
			&runner.ExitError{Command: cmd.String(), ExitCode: code, Stderr: stderr}
	}
}

// Output returns a handler that succeeds with stdout.
func Output(stdout string) Handler {
	return func(context.Context, runner.Command) (*runner.Result, error) {
		return &runner.Result{Stdout: stdout}, nil
	}
}

// HasArg reports whether cmd carries arg verbatim.
func HasArg(cmd runner.Command, arg string) bool {
	for _, a := range cmd.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// ArgWithPrefix returns the first argument starting with prefix.
func ArgWithPrefix(cmd runner.Command, prefix string) (string, bool) {
	for _, a := range cmd.Args {
		if strings.HasPrefix(a, prefix) {
			return a, true
		}
	}
	return "", false
}

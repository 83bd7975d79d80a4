// Package runner executes the external tools the publisher delegates to
// (rsync, gpg, rpm, debsign, apt-ftparchive, createrepo_c).
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Command describes one invocation of an external program.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the current environment.
	Env map[string]string
	// Stdout receives standard output instead of the captured buffer.
	Stdout io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds the outcome of a command execution
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExitError is returned when a command ran to completion but exited
// non-zero. Commands killed by a signal never yield an ExitError.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// IsExitError reports whether err means the command ran and failed, as
// opposed to not being startable at all.
func IsExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Console mirrors command output to the terminal.
	Console bool
}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner(console bool) *ExecRunner {
	return &ExecRunner{Console: console}
}

// Run implements Runner
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutWriters := []io.Writer{}
	if c.Stdout != nil {
		stdoutWriters = append(stdoutWriters, c.Stdout)
	} else {
		stdoutWriters = append(stdoutWriters, &stdoutBuf)
		if r.Console {
			stdoutWriters = append(stdoutWriters, os.Stdout)
		}
	}
	stderrWriters := []io.Writer{&stderrBuf}
	if r.Console {
		stderrWriters = append(stderrWriters, os.Stderr)
	}
	cmd.Stdout = io.MultiWriter(stdoutWriters...)
	cmd.Stderr = io.MultiWriter(stderrWriters...)

	logrus.Debugf("Running: %s", c)
	err := cmd.Run()

	result := &Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Command: c.String(), ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	// Killed by a signal or never started: there is no verdict.
	result.ExitCode = -1
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, errors.WithSecondaryError(errors.Wrapf(ctxErr, "%s interrupted", c.Name), err)
	}
	return result, errors.Wrapf(err, "failed to run %s", c.Name)
}

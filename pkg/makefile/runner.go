package makefile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrCommandNotFound is returned by a [CommandRunner] when the requested
// binary cannot be found on PATH.
var ErrCommandNotFound = errors.New("command not found")

// CommandRunner runs an external command to completion and returns its full
// standard output. It is the only place makegraph spawns processes.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExitError reports a command that ran but exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
	if first, _, _ := strings.Cut(strings.TrimSpace(e.Stderr), "\n"); first != "" {
		msg += ": " + first
	}
	return msg
}

// ExecRunner is the default CommandRunner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner creates a CommandRunner that spawns real processes.
func NewExecRunner() CommandRunner {
	return &ExecRunner{}
}

// Run executes name with args in dir and waits for it to exit. Standard
// output is returned even when the command exits non-zero, alongside an
// *ExitError carrying the status and standard error.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), &ExitError{Command: name, Code: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

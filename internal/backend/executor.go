package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// CommandRunner is the interface for running commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
	LookPath(name string) (string, error)
}

// ExecCommandRunner uses os/exec.
type ExecCommandRunner struct{}

// Run runs a command.
func (ExecCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// LookPath resolves a binary name or path.
func (ExecCommandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Executor runs one engine binary with a per-call timeout.
type Executor struct {
	runner     CommandRunner
	binaryPath string
	timeout    time.Duration
}

// NewExecutor creates an executor. The binary is resolved lazily so an
// adapter can exist before its engine is installed; Check reports whether
// it is present.
func NewExecutor(binaryPath string, timeout time.Duration) *Executor {
	return NewExecutorWithRunner(binaryPath, timeout, ExecCommandRunner{})
}

// NewExecutorWithRunner creates an executor with a custom runner.
func NewExecutorWithRunner(binaryPath string, timeout time.Duration, runner CommandRunner) *Executor {
	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     runner,
	}
}

// BinaryPath returns the configured binary.
func (e *Executor) BinaryPath() string {
	return e.binaryPath
}

// Check verifies the binary can be resolved.
func (e *Executor) Check() error {
	if _, err := e.runner.LookPath(e.binaryPath); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, e.binaryPath, err)
	}
	return nil
}

// Execute runs the command and returns output.
func (e *Executor) Execute(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	path, err := e.runner.LookPath(e.binaryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, e.binaryPath, err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	return e.runner.Run(ctx, path, args, stdin)
}

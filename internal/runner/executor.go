package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"
)

// Invocation describes a single process launch.
type Invocation struct {
	Dir    string
	Binary string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, inv Invocation) error

// Run calls f.
func (f ExecutorFunc) Run(ctx context.Context, inv Invocation) error {
	return f(ctx, inv)
}

// waitDelay bounds how long a killed child's output pipes may stay open.
const waitDelay = 5 * time.Second

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, inv Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...) //nolint:gosec
	cmd.Dir = inv.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr
	cmd.WaitDelay = waitDelay
	return cmd.Run()
}

const (
	exitGeneric     = 1
	exitTimedOut    = 124
	exitInterrupted = 130
)

// exitCodeFor maps a launch error to the status the CLI should exit with.
func exitCodeFor(ctx context.Context, err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return exitTimedOut
	case errors.Is(ctx.Err(), context.Canceled):
		return exitInterrupted
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code > 0 {
			return code
		}
	}
	return exitGeneric
}

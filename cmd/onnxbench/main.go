package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	cmd := newRootCommand()
	err := cmd.ExecuteContext(context.Background())
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode maps a command error to the process status. A failing step's own
// exit code is propagated; everything else is a generic failure.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "onnxbench: %v\n", err)
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}

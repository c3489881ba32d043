package runner

import (
	"errors"
	"fmt"
)

// ErrNoSteps is returned when a runner is constructed without steps.
var ErrNoSteps = errors.New("plan has no steps")

// StepError reports an external step that exited non-zero or could not be
// launched.
type StepError struct {
	Step string
	Code int
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("step %s failed with exit code %d", e.Step, e.Code)
	}
	return fmt.Sprintf("step %s failed with exit code %d: %v", e.Step, e.Code, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ExitCode is the status the process should exit with.
func (e *StepError) ExitCode() int {
	if e.Code <= 0 {
		return exitGeneric
	}
	return e.Code
}

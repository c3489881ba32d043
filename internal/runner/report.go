package runner

import "time"

// Status is the outcome of a single step.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusPlanned   Status = "planned"
)

// Result captures one step's outcome.
type Result struct {
	Step      string        `json:"step"`
	Argv      []string      `json:"argv"`
	Status    Status        `json:"status"`
	ExitCode  int           `json:"exit_code"`
	StartedAt time.Time     `json:"started_at,omitzero"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID      string    `json:"run_id"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ExitCode   int       `json:"exit_code"`
	Results    []Result  `json:"results"`
}

// Succeeded reports whether every step ran and exited zero.
func (r *Report) Succeeded() bool {
	if r == nil || r.ExitCode != 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Status != StatusSucceeded && res.Status != StatusPlanned {
			return false
		}
	}
	return true
}

// Failed returns the failing step's result, if any.
func (r *Report) Failed() (Result, bool) {
	if r == nil {
		return Result{}, false
	}
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return res, true
		}
	}
	return Result{}, false
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

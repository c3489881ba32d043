package history

import (
	"strings"
	"time"

	"onnxbench/internal/preflight"
	"onnxbench/internal/runner"
)

// Run is the persisted form of a runner.Report.
type Run struct {
	ID          string       `json:"id"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	ExitCode    int          `json:"exit_code"`
	FailedStep  string       `json:"failed_step,omitempty"`
	WorkDir     string       `json:"workdir,omitempty"`
	ConfigPath  string       `json:"config_path,omitempty"`
	Hostname    string       `json:"hostname,omitempty"`
	CPUBrand    string       `json:"cpu_brand,omitempty"`
	CPUCores    int          `json:"cpu_cores"`
	CPUThreads  int          `json:"cpu_threads"`
	CPUFeatures []string     `json:"cpu_features,omitempty"`
	Steps       []StepRecord `json:"steps,omitempty"`
}

// StepRecord is one step's outcome within a run.
type StepRecord struct {
	Position  int           `json:"position"`
	Step      string        `json:"step"`
	Status    runner.Status `json:"status"`
	ExitCode  int           `json:"exit_code"`
	Command   string        `json:"command"`
	StartedAt time.Time     `json:"started_at,omitzero"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// Succeeded reports whether the run exited zero.
func (r Run) Succeeded() bool {
	return r.ExitCode == 0
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Metadata describes where a run happened.
type Metadata struct {
	WorkDir    string
	ConfigPath string
	Hostname   string
	CPU        preflight.CPUInfo
}

// FromReport converts a runner report into a history record.
func FromReport(report *runner.Report, meta Metadata) Run {
	run := Run{
		WorkDir:     meta.WorkDir,
		ConfigPath:  meta.ConfigPath,
		Hostname:    meta.Hostname,
		CPUBrand:    meta.CPU.Brand,
		CPUCores:    meta.CPU.PhysicalCores,
		CPUThreads:  meta.CPU.LogicalCores,
		CPUFeatures: meta.CPU.Features(),
	}
	if report == nil {
		return run
	}
	run.ID = report.RunID
	run.StartedAt = report.StartedAt
	run.FinishedAt = report.FinishedAt
	run.ExitCode = report.ExitCode
	if failed, ok := report.Failed(); ok {
		run.FailedStep = failed.Step
	}
	run.Steps = make([]StepRecord, 0, len(report.Results))
	for idx, res := range report.Results {
		run.Steps = append(run.Steps, StepRecord{
			Position:  idx + 1,
			Step:      res.Step,
			Status:    res.Status,
			ExitCode:  res.ExitCode,
			Command:   strings.Join(res.Argv, " "),
			StartedAt: res.StartedAt,
			Duration:  res.Duration,
			Error:     res.Error,
		})
	}
	return run
}

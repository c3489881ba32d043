package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"onnxbench/internal/logging"
	"onnxbench/internal/steps"
)

// AnnounceFunc prints the status line shown before a step starts.
type AnnounceFunc func(index, total int, step steps.Step)

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput sets where child stdout/stderr and dry-run lines are written.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		if stdout != nil {
			r.stdout = stdout
		}
		if stderr != nil {
			r.stderr = stderr
		}
	}
}

// WithAnnouncer replaces the default "==> [i/n] ..." status line.
func WithAnnouncer(fn AnnounceFunc) Option {
	return func(r *Runner) {
		if fn != nil {
			r.announce = fn
		}
	}
}

// WithStepTimeout bounds each step. Zero or negative disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.stepTimeout = d
	}
}

// WithDryRun prints the plan instead of executing it.
func WithDryRun(dry bool) Option {
	return func(r *Runner) {
		r.dryRun = dry
	}
}

// WithRunID tags the report and log lines with a run identifier.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = strings.TrimSpace(id)
	}
}

// Runner executes a plan in order with fail-fast semantics.
type Runner struct {
	plan        *steps.Plan
	exec        Executor
	logger      *slog.Logger
	stdout      io.Writer
	stderr      io.Writer
	announce    AnnounceFunc
	stepTimeout time.Duration
	dryRun      bool
	runID       string
	now         func() time.Time
}

// New constructs a runner for the plan.
func New(plan *steps.Plan, opts ...Option) (*Runner, error) {
	if plan == nil || len(plan.Steps) == 0 {
		return nil, ErrNoSteps
	}
	r := &Runner{
		plan:   plan,
		exec:   commandExecutor{},
		logger: logging.NewNop(),
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.announce == nil {
		r.announce = r.defaultAnnounce
	}
	r.logger = logging.NewComponentLogger(r.logger, "runner")
	return r, nil
}

func (r *Runner) defaultAnnounce(index, total int, step steps.Step) {
	fmt.Fprintf(r.stdout, "==> [%d/%d] %s\n", index, total, step.Announcement)
}

// EnsureDirectories creates the plan's directories under the work directory.
// Existing directories are left alone.
func (r *Runner) EnsureDirectories() error {
	for _, dir := range r.plan.Directories {
		path := r.resolve(dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", path, err)
		}
	}
	return nil
}

func (r *Runner) resolve(path string) string {
	if filepath.IsAbs(path) || r.plan.WorkDir == "" {
		return path
	}
	return filepath.Join(r.plan.WorkDir, path)
}

// Run creates the directories and executes every step in order. It returns at
// the first failing step with a *StepError; later steps are reported as
// skipped and never launched.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ctx = logging.WithRunID(ctx, r.runID)
	logger := logging.WithContext(ctx, r.logger)

	report := &Report{
		RunID:     r.runID,
		DryRun:    r.dryRun,
		StartedAt: r.now().UTC(),
		Results:   make([]Result, 0, len(r.plan.Steps)),
	}
	defer func() {
		report.FinishedAt = r.now().UTC()
	}()

	if r.dryRun {
		r.printDryRun(report)
		return report, nil
	}

	if err := r.EnsureDirectories(); err != nil {
		report.ExitCode = exitGeneric
		return report, err
	}
	logger.Debug("directories ready",
		logging.String(logging.FieldEventType, "directories_ready"),
		logging.Strings("directories", r.plan.Directories),
	)

	total := len(r.plan.Steps)
	for idx, step := range r.plan.Steps {
		result, err := r.runStep(ctx, idx+1, total, step)
		report.Results = append(report.Results, result)
		if err == nil {
			continue
		}
		report.ExitCode = result.ExitCode
		for _, rest := range r.plan.Steps[idx+1:] {
			report.Results = append(report.Results, Result{Step: rest.Name, Argv: rest.Argv(), Status: StatusSkipped})
		}
		return report, err
	}

	logger.Info("all steps completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("steps", total),
	)
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, index, total int, step steps.Step) (Result, error) {
	stepCtx := logging.WithStep(ctx, step.Name)
	logger := logging.WithContext(stepCtx, r.logger)

	result := Result{Step: step.Name, Argv: step.Argv()}

	r.announce(index, total, step)
	logger.Info("step started",
		logging.String(logging.FieldEventType, "step_start"),
		logging.String("command", step.CommandLine()),
	)

	if err := ctx.Err(); err != nil {
		result.Status = StatusFailed
		result.ExitCode = exitCodeFor(ctx, err)
		result.Error = err.Error()
		return result, &StepError{Step: step.Name, Code: result.ExitCode, Err: err}
	}

	execCtx := stepCtx
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(stepCtx, r.stepTimeout)
		defer cancel()
	}

	result.StartedAt = r.now().UTC()
	err := r.exec.Run(execCtx, Invocation{
		Dir:    r.plan.WorkDir,
		Binary: step.Binary,
		Args:   append([]string(nil), step.Args...),
		Stdout: r.stdout,
		Stderr: r.stderr,
	})
	result.Duration = r.now().Sub(result.StartedAt)

	if err != nil {
		result.Status = StatusFailed
		result.ExitCode = exitCodeFor(execCtx, err)
		result.Error = err.Error()
		logger.Error("step failed",
			logging.String(logging.FieldEventType, "step_failure"),
			logging.Int("exit_code", result.ExitCode),
			logging.Duration("duration", result.Duration),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the step output above; later steps were not run"),
		)
		return result, &StepError{Step: step.Name, Code: result.ExitCode, Err: err}
	}

	result.Status = StatusSucceeded
	logger.Info("step completed",
		logging.String(logging.FieldEventType, "step_complete"),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (r *Runner) printDryRun(report *Report) {
	dirs := make([]string, 0, len(r.plan.Directories))
	for _, dir := range r.plan.Directories {
		dirs = append(dirs, r.resolve(dir))
	}
	fmt.Fprintf(r.stdout, "+ mkdir -p %s\n", strings.Join(dirs, " "))
	total := len(r.plan.Steps)
	for idx, step := range r.plan.Steps {
		r.announce(idx+1, total, step)
		fmt.Fprintf(r.stdout, "+ %s\n", step.CommandLine())
		report.Results = append(report.Results, Result{Step: step.Name, Argv: step.Argv(), Status: StatusPlanned})
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"onnxbench/internal/config"
	"onnxbench/internal/history"
	"onnxbench/internal/logging"
	"onnxbench/internal/preflight"
	"onnxbench/internal/runner"
	"onnxbench/internal/steps"
)

type runOptions struct {
	dryRun bool
}

func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Print the commands without creating directories or running steps")
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run export, pipeline, evaluation and latency steps in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, ctx, opts)
		},
	}
	bindRunFlags(cmd, &opts)
	return cmd
}

func runWorkflow(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	plan := steps.Build(cfg)
	if err := plan.Validate(); err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	announce := newAnnouncer(stdout)

	if opts.dryRun {
		r, err := runner.New(plan,
			runner.WithDryRun(true),
			runner.WithOutput(stdout, stderr),
			runner.WithAnnouncer(announce),
		)
		if err != nil {
			return err
		}
		_, err = r.Run(cmd.Context())
		return err
	}

	if err := cfg.EnsureStateDirectories(); err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another onnxbench run is in progress (lock held at %s)", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	runID := uuid.NewString()
	logger, closeLog, err := logging.NewForRun(cfg, ctx.logLevel(), runID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = closeLog() }()
	logging.PruneRunLogs(logger, cfg.LogDir(), cfg.Logging.RetentionDays, logging.RunLogPath(cfg, runID))

	logger.Info("run starting",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String(logging.FieldRunID, runID),
		logging.String("config_path", ctx.configPath),
		logging.Bool("config_exists", ctx.configExists),
		logging.String("workdir", cfg.Paths.WorkDir),
		logging.String("log_path", logging.RunLogPath(cfg, runID)),
	)

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := runner.New(plan,
		runner.WithLogger(logger),
		runner.WithRunID(runID),
		runner.WithOutput(stdout, stderr),
		runner.WithAnnouncer(announce),
		runner.WithStepTimeout(time.Duration(cfg.Workflow.StepTimeout)*time.Second),
	)
	if err != nil {
		return err
	}
	report, runErr := r.Run(sigCtx)

	recordHistory(cfg, logger, report, ctx.configPath)
	printRunSummary(stdout, report, runErr)
	return runErr
}

func newAnnouncer(out io.Writer) runner.AnnounceFunc {
	colorize := shouldColorize(out)
	return func(index, total int, step steps.Step) {
		fmt.Fprintln(out, renderAnnouncement(index, total, step.Announcement, colorize))
	}
}

// recordHistory persists the report. Failures are logged and never change the
// run's outcome.
func recordHistory(cfg *config.Config, logger *slog.Logger, report *runner.Report, configPath string) {
	if !cfg.Workflow.History || report == nil {
		return
	}
	store, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable; run not recorded", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the history database or set workflow.history = false"),
			logging.String(logging.FieldImpact, "this run will not appear in `onnxbench history`"),
		)
		return
	}
	defer store.Close()

	host, _ := os.Hostname()
	run := history.FromReport(report, history.Metadata{
		WorkDir:    cfg.Paths.WorkDir,
		ConfigPath: configPath,
		Hostname:   host,
		CPU:        preflight.DetectCPU(),
	})
	if err := store.Record(context.Background(), run); err != nil {
		logging.WarnWithContext(logger, "run history write failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldRunID, run.ID),
			logging.String(logging.FieldImpact, "this run will not appear in `onnxbench history`"),
		)
		return
	}
	logger.Debug("run recorded",
		logging.String(logging.FieldEventType, "history_recorded"),
		logging.String("path", store.Path()),
	)
}

func printRunSummary(out io.Writer, report *runner.Report, runErr error) {
	if report == nil {
		return
	}
	colorize := shouldColorize(out)
	label := "Run " + shortID(report.RunID)
	var stepErr *runner.StepError
	switch {
	case runErr == nil:
		fmt.Fprintln(out, renderStatusLine(label, statusOK, "completed in "+formatDuration(report.Duration()), colorize))
	case errors.As(runErr, &stepErr):
		fmt.Fprintln(out, renderStatusLine(label, statusError,
			fmt.Sprintf("%s failed with exit code %d", stepLabel(stepErr.Step), stepErr.ExitCode()), colorize))
	default:
		fmt.Fprintln(out, renderStatusLine(label, statusError, runErr.Error(), colorize))
	}
}

// Package logging assembles structured slog loggers and formatting helpers used
// across onnxbench.
//
// It owns the console and JSON handlers, a fan-out handler that tees records
// to the terminal and the per-run log file, and context-aware helpers so the
// runner can tag log lines with the run ID and the step in progress. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail, plus retention pruning for old run logs.
package logging

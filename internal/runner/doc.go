// Package runner executes a benchmark plan: it creates the generated
// directories, then launches each step in order and stops at the first step
// that exits non-zero.
//
// Execution is strictly sequential. Each step blocks until its process exits;
// no step runs unless every earlier step succeeded, and nothing is retried.
// The failing step's exit code is surfaced through StepError so the CLI can
// exit with the same status. Process launching sits behind the Executor
// interface so tests can substitute stubs.
package runner

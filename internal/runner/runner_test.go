package runner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"onnxbench/internal/runner"
	"onnxbench/internal/steps"
	"onnxbench/internal/testsupport"
)

type recordingExecutor struct {
	mu    sync.Mutex
	calls []runner.Invocation
	fail  map[string]int
}

type codeError int

func (c codeError) Error() string { return fmt.Sprintf("exit status %d", int(c)) }
func (c codeError) ExitCode() int { return int(c) }

func (r *recordingExecutor) Run(_ context.Context, inv runner.Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)
	if len(inv.Args) > 0 {
		if code, ok := r.fail[inv.Args[0]]; ok {
			return codeError(code)
		}
	}
	return nil
}

func (r *recordingExecutor) scripts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, call := range r.calls {
		out = append(out, call.Args[0])
	}
	return out
}

func newRunner(t *testing.T, plan *steps.Plan, exec runner.Executor, opts ...runner.Option) (*runner.Runner, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	all := append([]runner.Option{runner.WithExecutor(exec), runner.WithOutput(&stdout, &stdout)}, opts...)
	r, err := runner.New(plan, all...)
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	return r, &stdout
}

func TestNewRejectsEmptyPlan(t *testing.T) {
	if _, err := runner.New(nil); !errors.Is(err, runner.ErrNoSteps) {
		t.Fatalf("expected ErrNoSteps for nil plan, got %v", err)
	}
	if _, err := runner.New(&steps.Plan{}); !errors.Is(err, runner.ErrNoSteps) {
		t.Fatalf("expected ErrNoSteps for empty plan, got %v", err)
	}
}

func TestRunExecutesAllStepsInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	plan := steps.Build(cfg)
	exec := &recordingExecutor{}
	r, stdout := newRunner(t, plan, exec, runner.WithRunID("run-1"))

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ExitCode != 0 || !report.Succeeded() {
		t.Fatalf("expected success, got exit %d", report.ExitCode)
	}
	if report.RunID != "run-1" {
		t.Fatalf("unexpected run id %q", report.RunID)
	}

	want := []string{cfg.Export.Script, cfg.Pipeline.Script, cfg.Evaluate.Script, cfg.Latency.Script}
	if got := exec.scripts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected step order: %v", got)
	}
	for _, dir := range []string{cfg.Paths.ModelsDir, cfg.Paths.OutDir} {
		info, err := os.Stat(filepath.Join(cfg.Paths.WorkDir, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist: %v", dir, err)
		}
	}
	for _, call := range exec.calls {
		if call.Dir != cfg.Paths.WorkDir {
			t.Fatalf("expected step to run in %s, got %s", cfg.Paths.WorkDir, call.Dir)
		}
		if call.Binary != cfg.Runtime.Python {
			t.Fatalf("unexpected binary %s", call.Binary)
		}
	}

	out := stdout.String()
	for _, line := range []string{
		"==> [1/4] Exporting and quantizing model",
		"==> [2/4] Running correction pipeline",
		"==> [3/4] Evaluating accuracy",
		"==> [4/4] Measuring latency",
	} {
		if !strings.Contains(out, line) {
			t.Fatalf("missing announcement %q in output:\n%s", line, out)
		}
	}
}

func TestRunPassesFlagsVerbatim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Export.Model = "prajjwal1/bert-tiny"
	cfg.Export.MaxLength = 128
	cfg.Export.QuantOut = "models/../models/tiny.int8.onnx"
	cfg.Latency.Runs = 7
	cfg.Latency.Warmup = 0
	exec := &recordingExecutor{}
	r, _ := newRunner(t, steps.Build(cfg), exec)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := [][]string{
		{cfg.Export.Script, "--model", "prajjwal1/bert-tiny", "--max_length", "128", "--out", cfg.Export.Out, "--quant_out", "models/../models/tiny.int8.onnx"},
		{cfg.Pipeline.Script, "--onnx", "models/../models/tiny.int8.onnx"},
		{cfg.Evaluate.Script, "--pred", "out/corrected.jsonl", "--gold", "data/gold.jsonl", "--names", "data/names_lexicon.txt"},
		{cfg.Latency.Script, "--onnx", "models/../models/tiny.int8.onnx", "--runs", "7", "--warmup", "0"},
	}
	if len(exec.calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(exec.calls))
	}
	for i, call := range exec.calls {
		if !reflect.DeepEqual(call.Args, want[i]) {
			t.Fatalf("call %d args mismatch\nwant %v\ngot  %v", i, want[i], call.Args)
		}
	}
}

func TestRunIsIdempotentForDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	plan := steps.Build(cfg)
	if err := os.MkdirAll(filepath.Join(cfg.Paths.WorkDir, cfg.Paths.ModelsDir), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	marker := filepath.Join(cfg.Paths.WorkDir, cfg.Paths.ModelsDir, "keep.onnx")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	for i := 0; i < 2; i++ {
		r, _ := newRunner(t, plan, &recordingExecutor{})
		if _, err := r.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("existing directory contents were disturbed: %v", err)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &recordingExecutor{fail: map[string]int{cfg.Pipeline.Script: 3}}
	r, stdout := newRunner(t, steps.Build(cfg), exec)

	report, err := r.Run(context.Background())
	var stepErr *runner.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Step != steps.NamePipeline || stepErr.ExitCode() != 3 {
		t.Fatalf("unexpected step error: %+v", stepErr)
	}
	if report.ExitCode != 3 {
		t.Fatalf("expected report exit 3, got %d", report.ExitCode)
	}

	want := []string{cfg.Export.Script, cfg.Pipeline.Script}
	if got := exec.scripts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("later steps should not run, got %v", got)
	}

	statuses := map[string]runner.Status{}
	for _, res := range report.Results {
		statuses[res.Step] = res.Status
	}
	expected := map[string]runner.Status{
		steps.NameExport:   runner.StatusSucceeded,
		steps.NamePipeline: runner.StatusFailed,
		steps.NameEvaluate: runner.StatusSkipped,
		steps.NameLatency:  runner.StatusSkipped,
	}
	if !reflect.DeepEqual(statuses, expected) {
		t.Fatalf("unexpected statuses: %v", statuses)
	}
	failed, ok := report.Failed()
	if !ok || failed.Step != steps.NamePipeline {
		t.Fatalf("expected failed pipeline result, got %+v", failed)
	}

	out := stdout.String()
	if strings.Contains(out, "Evaluating accuracy") {
		t.Fatalf("evaluation should not be announced after failure:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if last := lines[len(lines)-1]; !strings.Contains(last, "Running correction pipeline") {
		t.Fatalf("last announcement should name the failing phase, got %q", last)
	}
}

func TestStepErrorDefaultsToGenericCode(t *testing.T) {
	err := &runner.StepError{Step: steps.NameExport, Err: errors.New("boom")}
	if err.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", err.ExitCode())
	}
	if !strings.Contains(err.Error(), "export") {
		t.Fatalf("error should name the step: %s", err.Error())
	}
}

func TestDryRunCreatesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &recordingExecutor{}
	r, stdout := newRunner(t, steps.Build(cfg), exec, runner.WithDryRun(true))

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("dry run should not execute, got %d calls", len(exec.calls))
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkDir, cfg.Paths.ModelsDir)); !os.IsNotExist(err) {
		t.Fatalf("dry run should not create directories: %v", err)
	}
	if !report.DryRun || len(report.Results) != 4 {
		t.Fatalf("unexpected dry-run report: %+v", report)
	}
	out := stdout.String()
	if !strings.Contains(out, "+ mkdir -p ") {
		t.Fatalf("expected mkdir line, got:\n%s", out)
	}
	if !strings.Contains(out, "+ "+cfg.Runtime.Python+" "+cfg.Export.Script+" --model distilbert-base-uncased") {
		t.Fatalf("expected export command line, got:\n%s", out)
	}
}

func TestCustomAnnouncer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var seen []string
	announcer := func(index, total int, step steps.Step) {
		seen = append(seen, step.Name)
	}
	r, _ := newRunner(t, steps.Build(cfg), &recordingExecutor{}, runner.WithAnnouncer(announcer))
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(seen, []string{"export", "pipeline", "evaluate", "latency"}) {
		t.Fatalf("unexpected announcements: %v", seen)
	}
}

func TestRunWithRealProcesses(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRecordingInterpreter("src/eval_accuracy.py", 7))
	r, err := runner.New(steps.Build(cfg), runner.WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}

	report, err := r.Run(context.Background())
	var stepErr *runner.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Step != steps.NameEvaluate || stepErr.ExitCode() != 7 || report.ExitCode != 7 {
		t.Fatalf("expected evaluate to fail with 7, got %+v (report %d)", stepErr, report.ExitCode)
	}

	lines := testsupport.InvocationLog(t, cfg)
	if len(lines) != 3 {
		t.Fatalf("expected three invocations, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "src/export_onnx.py --model distilbert-base-uncased --max_length 64") {
		t.Fatalf("unexpected export invocation %q", lines[0])
	}
	if lines[1] != "src/postprocess_pipeline.py --onnx models/distilbert-base-uncased.int8.onnx" {
		t.Fatalf("unexpected pipeline invocation %q", lines[1])
	}
}

func TestMissingBinaryFailsWithGenericCode(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPython("clearly-not-present-python"))
	r, err := runner.New(steps.Build(cfg), runner.WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	_, err = r.Run(context.Background())
	var stepErr *runner.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Step != steps.NameExport || stepErr.ExitCode() != 1 {
		t.Fatalf("unexpected step error %+v", stepErr)
	}
}

func TestStepTimeoutReports124(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	plan := &steps.Plan{
		WorkDir:     cfg.Paths.WorkDir,
		Directories: []string{"models", "out"},
		Steps:       []steps.Step{{Name: "slow", Announcement: "Sleeping", Binary: "sh", Args: []string{"-c", "exec sleep 5"}}},
	}
	r, err := runner.New(plan,
		runner.WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
		runner.WithStepTimeout(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	start := time.Now()
	_, err = r.Run(context.Background())
	var stepErr *runner.StepError
	if !errors.As(err, &stepErr) || stepErr.ExitCode() != 124 {
		t.Fatalf("expected timeout exit 124, got %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("timeout did not stop the child promptly")
	}
}

func TestCanceledContextStopsBeforeLaunch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &recordingExecutor{}
	r, _ := newRunner(t, steps.Build(cfg), exec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	var stepErr *runner.StepError
	if !errors.As(err, &stepErr) || stepErr.ExitCode() != 130 {
		t.Fatalf("expected interrupted exit 130, got %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("no step should launch after cancellation")
	}
}

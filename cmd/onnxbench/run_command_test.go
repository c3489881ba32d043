package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"onnxbench/internal/runner"
	"onnxbench/internal/testsupport"
)

func TestRunExecutesAllSteps(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRecordingInterpreter("", 0))

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "==> [1/4] Exporting and quantizing model")
	requireContains(t, out, "==> [4/4] Measuring latency")
	requireContains(t, out, "completed in")

	lines := testsupport.InvocationLog(t, env.cfg)
	if len(lines) != 4 {
		t.Fatalf("expected 4 invocations, got %v", lines)
	}
	want := []string{
		"src/export_onnx.py --model distilbert-base-uncased --max_length 64 --out models/distilbert-base-uncased.onnx --quant_out models/distilbert-base-uncased.int8.onnx",
		"src/postprocess_pipeline.py --onnx models/distilbert-base-uncased.int8.onnx",
		"src/eval_accuracy.py --pred out/corrected.jsonl --gold data/gold.jsonl --names data/names_lexicon.txt",
		"src/measure_latency.py --onnx models/distilbert-base-uncased.int8.onnx --runs 100 --warmup 10",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("invocation %d mismatch\nwant %q\ngot  %q", i, want[i], lines[i])
		}
	}
	for _, dir := range []string{"models", "out"} {
		if info, err := os.Stat(filepath.Join(env.cfg.Paths.WorkDir, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory: %v", dir, err)
		}
	}

	logs, err := filepath.Glob(filepath.Join(env.cfg.LogDir(), "onnxbench-*.log"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one run log, got %v (%v)", logs, err)
	}
	data, err := os.ReadFile(logs[0])
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	requireContains(t, string(data), `"event_type":"step_complete"`)

	// A second run must not trip over the existing directories.
	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestRunPropagatesStepExitCode(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRecordingInterpreter("src/postprocess_pipeline.py", 4))

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	var stepErr *runner.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected step error, got %v", err)
	}
	if code := exitCode(err, io.Discard); code != 4 {
		t.Fatalf("expected exit code 4, got %d", code)
	}
	requireContains(t, out, "Running correction pipeline")
	requireNotContains(t, out, "Evaluating accuracy")
	requireNotContains(t, out, "Measuring latency")
	requireContains(t, out, "Pipeline failed with exit code 4")

	if lines := testsupport.InvocationLog(t, env.cfg); len(lines) != 2 {
		t.Fatalf("expected export and pipeline only, got %v", lines)
	}

	jsonOut, _, err := runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []struct {
		ID         string `json:"id"`
		ExitCode   int    `json:"exit_code"`
		FailedStep string `json:"failed_step"`
	}
	if err := json.Unmarshal([]byte(jsonOut), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, jsonOut)
	}
	if len(runs) != 1 || runs[0].ExitCode != 4 || runs[0].FailedStep != "pipeline" {
		t.Fatalf("unexpected history: %+v", runs)
	}

	showOut, _, err := runCLI(t, []string{"history", "show", runs[0].ID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, showOut, "failed at Pipeline")
	requireContains(t, showOut, "skipped")
}

func TestDefaultCommandDryRun(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRecordingInterpreter("", 0))

	out, _, err := runCLI(t, []string{"--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	requireContains(t, out, "+ mkdir -p ")
	requireContains(t, out, "src/measure_latency.py --onnx models/distilbert-base-uncased.int8.onnx --runs 100 --warmup 10")
	if lines := testsupport.InvocationLog(t, env.cfg); len(lines) != 0 {
		t.Fatalf("dry run executed steps: %v", lines)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.WorkDir, "models")); !os.IsNotExist(err) {
		t.Fatalf("dry run created models/: %v", err)
	}
	if _, err := os.Stat(env.cfg.HistoryPath()); !os.IsNotExist(err) {
		t.Fatalf("dry run should not touch history: %v", err)
	}
}

func TestRunAcceptsPrebuiltLatencyModel(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRecordingInterpreter("", 0))
	env.cfg.Latency.ONNX = "models/prebuilt.int8.onnx"
	writeTestConfig(t, env.configPath, env.cfg)

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := testsupport.InvocationLog(t, env.cfg)
	if len(lines) != 4 {
		t.Fatalf("expected 4 invocations, got %v", lines)
	}
	requireContains(t, lines[3], "--onnx models/prebuilt.int8.onnx --runs 100")

	if _, _, err := runCLI(t, []string{"plan"}, env.configPath); err == nil {
		t.Fatal("expected plan to flag the unproduced model")
	}
}

func TestRunHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRecordingInterpreter("", 0), testsupport.WithHistory(false))

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(env.cfg.HistoryPath()); !os.IsNotExist(err) {
		t.Fatalf("history database should not exist: %v", err)
	}
}

func TestRunRefusesWhenLocked(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRecordingInterpreter("", 0))
	if err := env.cfg.EnsureStateDirectories(); err != nil {
		t.Fatalf("ensure state: %v", err)
	}
	lock := flock.New(env.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: %v", err)
	}
	defer lock.Unlock()

	_, _, err = runCLI(t, []string{"run"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "in progress") {
		t.Fatalf("expected lock error, got %v", err)
	}
	if lines := testsupport.InvocationLog(t, env.cfg); len(lines) != 0 {
		t.Fatalf("locked run executed steps: %v", lines)
	}
}

func TestExitCodeMapping(t *testing.T) {
	if code := exitCode(nil, io.Discard); code != 0 {
		t.Fatalf("nil error should exit 0, got %d", code)
	}
	if code := exitCode(errors.New("bad config"), io.Discard); code != 1 {
		t.Fatalf("generic error should exit 1, got %d", code)
	}
	wrapped := &runner.StepError{Step: "latency", Code: 9}
	if code := exitCode(wrapped, io.Discard); code != 9 {
		t.Fatalf("step error should exit 9, got %d", code)
	}
}

package preflight_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"onnxbench/internal/preflight"
	"onnxbench/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := preflight.CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "gold.jsonl")
	if err := os.WriteFile(f, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckFile("gold", f); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := preflight.CheckFile("dir", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := preflight.CheckFile("missing", filepath.Join(dir, "nope")); result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("expected missing-file failure, got %+v", result)
	}
}

func TestRunAll_SeededWorkspacePasses(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	testsupport.SeedWorkspace(t, cfg)

	results := preflight.RunAll(cfg)
	if preflight.Failed(results) {
		for _, r := range results {
			t.Logf("%s passed=%v optional=%v %s", r.Name, r.Passed, r.Optional, r.Detail)
		}
		t.Fatal("expected all required checks to pass")
	}
	var sawCPU bool
	for _, r := range results {
		if r.Name == "CPU" {
			sawCPU = true
			if !r.Optional {
				t.Fatal("CPU check should be advisory")
			}
		}
	}
	if !sawCPU {
		t.Fatal("expected CPU check in results")
	}
}

func TestRunAll_MissingDataFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	testsupport.SeedWorkspace(t, cfg)
	if err := os.Remove(cfg.WorkPath(cfg.Evaluate.Gold)); err != nil {
		t.Fatal(err)
	}

	results := preflight.RunAll(cfg)
	if !preflight.Failed(results) {
		t.Fatal("expected failure when gold labels are missing")
	}
	for _, r := range results {
		if r.Name == "Gold labels" && r.Passed {
			t.Fatal("gold labels check should fail")
		}
	}
}

func TestRunAll_MissingInterpreterFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPython("clearly-not-present-python"))
	testsupport.SeedWorkspace(t, cfg)

	results := preflight.RunAll(cfg)
	if !preflight.Failed(results) {
		t.Fatal("expected failure without interpreter")
	}
	if results[0].Passed {
		t.Fatalf("expected interpreter check first and failing, got %+v", results[0])
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if preflight.RunAll(nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestCPUInfoSummary(t *testing.T) {
	info := preflight.CPUInfo{Brand: "Test CPU", PhysicalCores: 4, LogicalCores: 8, AVX2: true, AVX512VNNI: true}
	if got := info.Features(); len(got) != 2 || got[0] != "AVX2" || got[1] != "AVX512_VNNI" {
		t.Fatalf("unexpected features: %v", got)
	}
	if !strings.Contains(info.Summary(), "Test CPU (4 cores, 8 threads; AVX2 AVX512_VNNI)") {
		t.Fatalf("unexpected summary: %s", info.Summary())
	}
	if result := preflight.CheckCPU(info); !result.Passed {
		t.Fatalf("expected VNNI host to pass, got %+v", result)
	}
	if result := preflight.CheckCPU(preflight.CPUInfo{}); result.Passed || !strings.Contains(result.Detail, "unknown CPU") {
		t.Fatalf("expected advisory failure for featureless CPU, got %+v", result)
	}
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"onnxbench/internal/config"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SeedWorkspace creates the step scripts and the pre-existing data files
// referenced by cfg inside its work directory.
func SeedWorkspace(t testing.TB, cfg *config.Config) {
	t.Helper()

	for _, script := range []string{cfg.Export.Script, cfg.Pipeline.Script, cfg.Evaluate.Script, cfg.Latency.Script} {
		WriteFile(t, cfg.WorkPath(script), "# stub\n")
	}
	WriteFile(t, cfg.WorkPath(cfg.Evaluate.Gold), "{\"text\":\"hello\",\"label\":\"hello\"}\n")
	WriteFile(t, cfg.WorkPath(cfg.Evaluate.Names), "Alice\nBob\n")
}

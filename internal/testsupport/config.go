package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"onnxbench/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The work directory and state directory live under the same temp root.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Runtime.Python = "python"
	cfgVal.Logging.Level = "debug"
	if err := os.MkdirAll(cfgVal.Paths.WorkDir, 0o755); err != nil {
		t.Fatalf("mkdir workdir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPython overrides the interpreter command.
func WithPython(python string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Runtime.Python = python
	}
}

// WithHistory toggles run history persistence.
func WithHistory(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.History = enabled
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the configured interpreter is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Runtime.Python}
		}
		binDir := b.binDir()
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.prependPath(binDir)
	}
}

// WithRecordingInterpreter installs a stub interpreter that appends each
// invocation's arguments to InvocationLog. When failScript matches the
// first argument the stub exits with failCode.
func WithRecordingInterpreter(failScript string, failCode int) ConfigOption {
	return func(b *configBuilder) {
		binDir := b.binDir()
		logPath := invocationLogPath(b.baseDir)
		var sb strings.Builder
		sb.WriteString("#!/bin/sh\n")
		fmt.Fprintf(&sb, "echo \"$*\" >> %q\n", logPath)
		if failScript != "" {
			fmt.Fprintf(&sb, "if [ \"$1\" = %q ]; then\n  exit %d\nfi\n", failScript, failCode)
		}
		sb.WriteString("exit 0\n")

		name := "onnxbench-python-stub"
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, []byte(sb.String()), 0o755); err != nil {
			b.t.Fatalf("write interpreter stub: %v", err)
		}
		b.cfg.Runtime.Python = target
	}
}

// InvocationLog returns the argument lines recorded by the stub interpreter.
func InvocationLog(t testing.TB, cfg *config.Config) []string {
	t.Helper()

	data, err := os.ReadFile(invocationLogPath(BaseDir(cfg)))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}

func invocationLogPath(base string) string {
	return filepath.Join(base, "invocations.log")
}

func (b *configBuilder) binDir() string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	return binDir
}

func (b *configBuilder) prependPath(dir string) {
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		b.t.Fatalf("set PATH: %v", err)
	}
	b.t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

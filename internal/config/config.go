package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the workspace and state directory layout.
type Paths struct {
	WorkDir   string `toml:"workdir"`
	ModelsDir string `toml:"models_dir"`
	OutDir    string `toml:"out_dir"`
	DataDir   string `toml:"data_dir"`
	StateDir  string `toml:"state_dir"`
}

// Runtime contains the interpreter used to launch every step script.
type Runtime struct {
	Python string `toml:"python"`
}

// Export configures the export/quantization step.
type Export struct {
	Script    string `toml:"script"`
	Model     string `toml:"model"`
	MaxLength int    `toml:"max_length"`
	Out       string `toml:"out"`
	QuantOut  string `toml:"quant_out"`
}

// Pipeline configures the batch inference step.
type Pipeline struct {
	Script string `toml:"script"`
	// ONNX defaults to export.quant_out when empty.
	ONNX string `toml:"onnx"`
	// Predictions is where the pipeline writes its output. It is not passed to
	// the pipeline; the evaluation step reads it.
	Predictions string `toml:"predictions"`
}

// Evaluate configures the accuracy evaluation step.
type Evaluate struct {
	Script string `toml:"script"`
	Pred   string `toml:"pred"`
	Gold   string `toml:"gold"`
	Names  string `toml:"names"`
}

// Latency configures the latency measurement step.
type Latency struct {
	Script string `toml:"script"`
	ONNX   string `toml:"onnx"`
	Runs   int    `toml:"runs"`
	Warmup int    `toml:"warmup"`
}

// Workflow contains runner behaviour knobs.
type Workflow struct {
	// StepTimeout bounds each step in seconds. Zero disables the timeout.
	StepTimeout int  `toml:"step_timeout"`
	History     bool `toml:"history"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for onnxbench.
//
// Configuration sections by subsystem:
//   - Paths: work directory, generated directories, state directory
//   - Runtime: interpreter for the step scripts
//   - Export, Pipeline, Evaluate, Latency: per-step scripts and flag values
//   - Workflow: step timeout and run history
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Runtime  Runtime  `toml:"runtime"`
	Export   Export   `toml:"export"`
	Pipeline Pipeline `toml:"pipeline"`
	Evaluate Evaluate `toml:"evaluate"`
	Latency  Latency  `toml:"latency"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has
// directory fields expanded; step arguments are only trimmed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureStateDirectories creates the state and log directories used for
// history, locking, and per-run log files. The generated workspace
// directories are the runner's concern and are not created here.
func (c *Config) EnsureStateDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir returns the directory holding per-run log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.StateDir, "logs")
}

// HistoryPath returns the SQLite run history location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "onnxbench.lock")
}

// WorkPath resolves a workspace-relative path against the work directory.
// Absolute paths are returned unchanged.
func (c *Config) WorkPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Paths.WorkDir, rel)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "onnxbench")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/state/onnxbench"
	}
	return filepath.Join(home, ".local", "state", "onnxbench")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// PipelineModel returns the model passed to the pipeline step, falling back
// to the quantized export output.
func (c *Config) PipelineModel() string {
	if v := strings.TrimSpace(c.Pipeline.ONNX); v != "" {
		return v
	}
	return c.Export.QuantOut
}

// PythonCommand returns the interpreter used for every step: runtime.python
// when set, otherwise $ONNXBENCH_PYTHON, otherwise "python".
func (c *Config) PythonCommand() string {
	if v := strings.TrimSpace(c.Runtime.Python); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(pythonEnvVar)); v != "" {
		return v
	}
	return defaultPython
}

// LatencyModel returns the model passed to the latency step, falling back to
// the quantized export output.
func (c *Config) LatencyModel() string {
	if v := strings.TrimSpace(c.Latency.ONNX); v != "" {
		return v
	}
	return c.Export.QuantOut
}

// PredictionsPath returns the predictions file handed to the evaluation step.
func (c *Config) PredictionsPath() string {
	if v := strings.TrimSpace(c.Evaluate.Pred); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.Pipeline.Predictions); v != "" {
		return v
	}
	return defaultPredictions
}

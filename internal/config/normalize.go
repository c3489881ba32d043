package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRuntime()
	c.normalizeSteps()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.workdir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.ModelsDir = strings.TrimSpace(c.Paths.ModelsDir)
	c.Paths.OutDir = strings.TrimSpace(c.Paths.OutDir)
	c.Paths.DataDir = strings.TrimSpace(c.Paths.DataDir)
	return nil
}

func (c *Config) normalizeRuntime() {
	c.Runtime.Python = c.PythonCommand()
}

// normalizeSteps trims step values and fills the cross-step defaults. Paths
// are deliberately left unexpanded; the external programs receive them as
// written.
func (c *Config) normalizeSteps() {
	c.Export.Script = strings.TrimSpace(c.Export.Script)
	c.Export.Model = strings.TrimSpace(c.Export.Model)
	c.Export.Out = strings.TrimSpace(c.Export.Out)
	c.Export.QuantOut = strings.TrimSpace(c.Export.QuantOut)

	c.Pipeline.Script = strings.TrimSpace(c.Pipeline.Script)
	c.Pipeline.ONNX = strings.TrimSpace(c.Pipeline.ONNX)
	if c.Pipeline.ONNX == "" {
		c.Pipeline.ONNX = c.Export.QuantOut
	}
	c.Pipeline.Predictions = strings.TrimSpace(c.Pipeline.Predictions)
	if c.Pipeline.Predictions == "" {
		c.Pipeline.Predictions = defaultPredictions
	}

	c.Evaluate.Script = strings.TrimSpace(c.Evaluate.Script)
	c.Evaluate.Pred = strings.TrimSpace(c.Evaluate.Pred)
	if c.Evaluate.Pred == "" {
		c.Evaluate.Pred = c.Pipeline.Predictions
	}
	c.Evaluate.Gold = strings.TrimSpace(c.Evaluate.Gold)
	c.Evaluate.Names = strings.TrimSpace(c.Evaluate.Names)

	c.Latency.Script = strings.TrimSpace(c.Latency.Script)
	c.Latency.ONNX = strings.TrimSpace(c.Latency.ONNX)
	if c.Latency.ONNX == "" {
		c.Latency.ONNX = c.Export.QuantOut
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

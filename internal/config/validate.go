package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEvaluate(); err != nil {
		return err
	}
	if err := c.validateLatency(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if err := ensureSet(
		setting{"paths.workdir", c.Paths.WorkDir},
		setting{"paths.models_dir", c.Paths.ModelsDir},
		setting{"paths.out_dir", c.Paths.OutDir},
		setting{"paths.state_dir", c.Paths.StateDir},
	); err != nil {
		return err
	}
	if c.Paths.ModelsDir == c.Paths.OutDir {
		return errors.New("paths.models_dir and paths.out_dir must differ")
	}
	return nil
}

func (c *Config) validateExport() error {
	if err := ensureSet(
		setting{"export.script", c.Export.Script},
		setting{"export.model", c.Export.Model},
		setting{"export.out", c.Export.Out},
		setting{"export.quant_out", c.Export.QuantOut},
	); err != nil {
		return err
	}
	if c.Export.MaxLength <= 0 {
		return errors.New("export.max_length must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	return ensureSet(
		setting{"pipeline.script", c.Pipeline.Script},
		setting{"pipeline.onnx", c.Pipeline.ONNX},
		setting{"pipeline.predictions", c.Pipeline.Predictions},
	)
}

func (c *Config) validateEvaluate() error {
	return ensureSet(
		setting{"evaluate.script", c.Evaluate.Script},
		setting{"evaluate.pred", c.Evaluate.Pred},
		setting{"evaluate.gold", c.Evaluate.Gold},
		setting{"evaluate.names", c.Evaluate.Names},
	)
}

func (c *Config) validateLatency() error {
	if err := ensureSet(
		setting{"latency.script", c.Latency.Script},
		setting{"latency.onnx", c.Latency.ONNX},
	); err != nil {
		return err
	}
	if c.Latency.Runs <= 0 {
		return errors.New("latency.runs must be positive")
	}
	if c.Latency.Warmup < 0 {
		return errors.New("latency.warmup must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.StepTimeout < 0 {
		return errors.New("workflow.step_timeout must be >= 0 (0 disables the timeout)")
	}
	return nil
}

type setting struct {
	key   string
	value string
}

// ensureSet reports the first blank setting in declaration order.
func ensureSet(settings ...setting) error {
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			return fmt.Errorf("%s must be set", s.key)
		}
	}
	return nil
}

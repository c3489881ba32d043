package config

const (
	defaultConfigPath     = "~/.config/onnxbench/config.toml"
	projectConfigName     = "onnxbench.toml"
	defaultWorkDir        = "."
	defaultModelsDir      = "models"
	defaultOutDir         = "out"
	defaultDataDir        = "data"
	defaultPython         = "python"
	pythonEnvVar          = "ONNXBENCH_PYTHON"
	defaultExportScript   = "src/export_onnx.py"
	defaultModelName      = "distilbert-base-uncased"
	defaultMaxLength      = 64
	defaultExportOut      = "models/distilbert-base-uncased.onnx"
	defaultQuantOut       = "models/distilbert-base-uncased.int8.onnx"
	defaultPipelineScript = "src/postprocess_pipeline.py"
	defaultPredictions    = "out/corrected.jsonl"
	defaultEvalScript     = "src/eval_accuracy.py"
	defaultGoldPath       = "data/gold.jsonl"
	defaultNamesPath      = "data/names_lexicon.txt"
	defaultLatencyScript  = "src/measure_latency.py"
	defaultLatencyRuns    = 100
	defaultLatencyWarmup  = 10
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultRetentionDays  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			ModelsDir: defaultModelsDir,
			OutDir:    defaultOutDir,
			DataDir:   defaultDataDir,
			StateDir:  defaultStateDir(),
		},
		Export: Export{
			Script:    defaultExportScript,
			Model:     defaultModelName,
			MaxLength: defaultMaxLength,
			Out:       defaultExportOut,
			QuantOut:  defaultQuantOut,
		},
		Pipeline: Pipeline{
			Script:      defaultPipelineScript,
			Predictions: defaultPredictions,
		},
		Evaluate: Evaluate{
			Script: defaultEvalScript,
			Gold:   defaultGoldPath,
			Names:  defaultNamesPath,
		},
		Latency: Latency{
			Script: defaultLatencyScript,
			Runs:   defaultLatencyRuns,
			Warmup: defaultLatencyWarmup,
		},
		Workflow: Workflow{
			History: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}

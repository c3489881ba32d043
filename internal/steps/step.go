package steps

import (
	"strconv"
	"strings"

	"onnxbench/internal/config"
)

// Step names, in execution order.
const (
	NameExport   = "export"
	NamePipeline = "pipeline"
	NameEvaluate = "evaluate"
	NameLatency  = "latency"
)

// Step is one external invocation.
type Step struct {
	Name         string
	Announcement string
	Binary       string
	// Args is the script path followed by the step's flags.
	Args []string
	// Inputs and Outputs are artifact paths, used for plan validation only.
	Inputs  []string
	Outputs []string
}

// Argv returns the full command line.
func (s Step) Argv() []string {
	return append([]string{s.Binary}, s.Args...)
}

// CommandLine renders the invocation for display.
func (s Step) CommandLine() string {
	return strings.Join(s.Argv(), " ")
}

// Flags returns Args without the leading script path.
func (s Step) Flags() []string {
	if len(s.Args) == 0 {
		return nil
	}
	return s.Args[1:]
}

// ExportFlags builds `--model <name> --max_length <int> --out <path> --quant_out <path>`.
func ExportFlags(model string, maxLength int, out, quantOut string) []string {
	return []string{
		"--model", model,
		"--max_length", strconv.Itoa(maxLength),
		"--out", out,
		"--quant_out", quantOut,
	}
}

// PipelineFlags builds `--onnx <path>`.
func PipelineFlags(onnx string) []string {
	return []string{"--onnx", onnx}
}

// EvaluateFlags builds `--pred <path> --gold <path> --names <path>`.
func EvaluateFlags(pred, gold, names string) []string {
	return []string{"--pred", pred, "--gold", gold, "--names", names}
}

// LatencyFlags builds `--onnx <path> --runs <int> --warmup <int>`.
func LatencyFlags(onnx string, runs, warmup int) []string {
	return []string{
		"--onnx", onnx,
		"--runs", strconv.Itoa(runs),
		"--warmup", strconv.Itoa(warmup),
	}
}

// Build assembles the four steps from configuration.
func Build(cfg *config.Config) *Plan {
	python := cfg.PythonCommand()
	exportStep := Step{
		Name:         NameExport,
		Announcement: "Exporting and quantizing model",
		Binary:       python,
		Args:         append([]string{cfg.Export.Script}, ExportFlags(cfg.Export.Model, cfg.Export.MaxLength, cfg.Export.Out, cfg.Export.QuantOut)...),
		Outputs:      []string{cfg.Export.Out, cfg.Export.QuantOut},
	}
	pipelineStep := Step{
		Name:         NamePipeline,
		Announcement: "Running correction pipeline",
		Binary:       python,
		Args:         append([]string{cfg.Pipeline.Script}, PipelineFlags(cfg.PipelineModel())...),
		Inputs:       []string{cfg.PipelineModel()},
		Outputs:      []string{cfg.Pipeline.Predictions},
	}
	evaluateStep := Step{
		Name:         NameEvaluate,
		Announcement: "Evaluating accuracy",
		Binary:       python,
		Args:         append([]string{cfg.Evaluate.Script}, EvaluateFlags(cfg.PredictionsPath(), cfg.Evaluate.Gold, cfg.Evaluate.Names)...),
		Inputs:       []string{cfg.PredictionsPath(), cfg.Evaluate.Gold, cfg.Evaluate.Names},
	}
	latencyStep := Step{
		Name:         NameLatency,
		Announcement: "Measuring latency",
		Binary:       python,
		Args:         append([]string{cfg.Latency.Script}, LatencyFlags(cfg.LatencyModel(), cfg.Latency.Runs, cfg.Latency.Warmup)...),
		Inputs:       []string{cfg.LatencyModel()},
	}

	return &Plan{
		WorkDir:     cfg.Paths.WorkDir,
		Directories: []string{cfg.Paths.ModelsDir, cfg.Paths.OutDir},
		Steps:       []Step{exportStep, pipelineStep, evaluateStep, latencyStep},
	}
}

package preflight

import (
	"onnxbench/internal/config"
	"onnxbench/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every workspace check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, fromDependency(status))
	}

	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))

	scripts := []struct {
		name string
		path string
	}{
		{"Export script", cfg.Export.Script},
		{"Pipeline script", cfg.Pipeline.Script},
		{"Evaluation script", cfg.Evaluate.Script},
		{"Latency script", cfg.Latency.Script},
	}
	for _, s := range scripts {
		results = append(results, CheckFile(s.name, cfg.WorkPath(s.path)))
	}

	results = append(results, CheckFile("Gold labels", cfg.WorkPath(cfg.Evaluate.Gold)))
	results = append(results, CheckFile("Names lexicon", cfg.WorkPath(cfg.Evaluate.Names)))

	results = append(results, CheckCPU(DetectCPU()))

	return results
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}

func fromDependency(status deps.Status) Result {
	result := Result{
		Name:     status.Name,
		Passed:   status.Available,
		Optional: status.Optional,
		Detail:   status.Detail,
	}
	if status.Available {
		result.Detail = status.Path
	}
	return result
}

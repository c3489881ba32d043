// Package preflight provides readiness checks for a benchmark workspace.
//
// The checks back the "onnxbench check" command only. A run never consults
// them: steps are launched with whatever paths are configured and any missing
// input surfaces as that step's own failure.
package preflight

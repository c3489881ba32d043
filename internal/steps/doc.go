// Package steps defines the four benchmark steps and the ordered plan the
// runner executes.
//
// Build turns configuration into invocations whose flags follow the external
// programs' command-line contracts verbatim: export/quantize, pipeline,
// evaluate, latency. Values are passed through as configured; nothing here
// expands, cleans, or checks paths.
//
// The plan also records which artifacts each step consumes and produces so it
// can be validated (no step reads an artifact that only a later step writes)
// and rendered as a Graphviz graph.
package steps

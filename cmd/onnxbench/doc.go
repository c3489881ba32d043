// Package main hosts the onnxbench CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration once, builds the
// four-step benchmark plan, and hands it to the runner. Supporting commands
// render the plan, run workspace checks, browse run history, and scaffold
// configuration. Behaviour lives in the internal packages; commands here only
// wire flags, output, and exit codes.
package main

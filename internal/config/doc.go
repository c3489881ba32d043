// Package config loads, normalizes, and validates onnxbench configuration data.
//
// It supplies the benchmark defaults (model, sequence length, artifact paths,
// latency sampling counts), expands user paths for the work and state
// directories, reads TOML files, and honours the ONNXBENCH_PYTHON environment
// fallback. Step arguments are kept exactly as written so the external
// programs receive the configured values without transformation.
//
// Always obtain settings through this package so downstream code receives
// trimmed values, canonical log formats, and clear validation errors.
package config

// Package history persists benchmark runs in a SQLite database under the
// state directory.
//
// Each run stores one row in `runs` and one row per step in `run_steps`,
// along with the CPU the run executed on so latency figures from different
// hosts can be told apart. The schema is embedded and versioned; a version
// mismatch is reported as ErrSchemaMismatch rather than migrated.
package history

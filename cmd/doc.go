// Package cmd implements the command-line interface of tally. It provides a
// hierarchical command structure for working with persistent maps directly and
// for running the deduplicating signal counter.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for persistent map operations (get, set, keys, perf, etc.)
//   - ingest: Counts signal ids from stdin, suppressing repetitions within a window
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See tally -help for a list of all commands.
package cmd

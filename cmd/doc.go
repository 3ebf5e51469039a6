// Package cmd implements the command-line interface of wbKV. It provides a
// hierarchical command structure for running the server, talking to it as a
// client and diagnosing a local installation.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the HTTP server in front of the save service
//   - kv: Client commands (set, get, del, has, flush, stats, perf)
//   - diag: Self checks against a locally opened save service
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See wbkv -help for a list of all commands.
package cmd

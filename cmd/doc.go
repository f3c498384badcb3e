// Package cmd implements the command-line interface of the ftlsim flash
// translation layer simulator.
//
// The package is organized into several subpackages:
//
//   - simulate: Runs a synthetic workload against a simulated SSD and prints
//     latencies, write amplification and GC statistics
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See ftlsim -help for a list of all commands.
package cmd

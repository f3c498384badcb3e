// Package workload generates synthetic host traffic and measures how a device
// responds to it.
//
// Three access patterns are supported:
//   - sequential: each stream walks its LPN window in order and wraps around
//   - uniform: LPNs are drawn uniformly from the window
//   - hotspot: a small hot fraction of the window receives most of the accesses
//
// Run drives one stream per dispatcher queue and records the simulated latency
// of every request in a DDSketch per operation, so quantiles stay accurate
// without keeping every sample.
package workload

// Package ftl defines the shared contract of the flash translation layer
// simulator. It contains no device logic itself; the implementation lives in
// the ssd package and its building blocks (nand, mapping, alloc and cache).
//
// Key Components:
//
//   - Config: The bootstrap configuration of a device (geometry, NAND timing,
//     GC thresholds, allocation strategy and metadata cache sizes). Config.Params
//     derives the totals that all packages share; both are immutable once a
//     device is built.
//
//   - PPA: A physical page address packed into a single uint64 with channel,
//     die, plane, block and page fields. The all-ones value marks an unmapped
//     LPN.
//
//   - Request: A read, write or flush over a contiguous LPN range with a
//     simulated issue time. Writes may carry a PlacementKey that selects a
//     reclaim group and a placement handle.
//
//   - Device: The interface every simulated device satisfies. Submit returns
//     the simulated latency in nanoseconds; GC entry points, consistency
//     checking, Stats and Info complete the surface.
//
//   - Error: Request level failures carry a RetCode (unsupported operation,
//     invalid placement key, out of range LPNs). Broken invariants are not
//     errors; they panic.
//
// Simulated time is an int64 nanosecond count chosen by the caller. The device
// never reads the wall clock.
package ftl

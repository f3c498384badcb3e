// Package testing provides standardised tests and benchmarks for devices that
// satisfy the ftl.Device interface.
//
// The package contains:
//   - testing: a conformance suite for the request path, garbage collection and
//     the accounting invariants checked by Device.CheckConsistency
//   - benchmark: throughput of the FTL itself (simulated latencies are not
//     measured here, see the workload package for that)
//
// Every allocation strategy runs the same suite, so a new strategy only needs a
// factory:
//
//	factory := func() ftl.Device {
//		dev, _ := ssd.New(cfg)
//		return dev
//	}
//
//	ftltesting.RunDeviceTests(t, "Line", factory)
//	ftltesting.RunDeviceBenchmarks(b, "Line", factory)
//
// The factory must return a device with at least a few units of headroom; the
// suite keeps its live data below an eighth of one reclaim group.
package testing

// Package ssd ties the FTL components together into one simulated device.
//
// An SSD owns every piece of state: the NAND timing model and page array, the
// flat mapping store with its reverse map, the metadata cache hierarchy and the
// allocation strategy. All operations run against this single context object;
// there are no globals.
//
// Request path:
//
//   - Read looks up each LPN through the cache hierarchy and charges a page
//     read on the die that holds it. The request latency is the slowest page.
//   - Write first runs forced GC while the target reclaim group is at or below
//     the high threshold, then invalidates the previous mapping of each LPN
//     and programs the page the strategy hands out.
//
// Garbage collection picks the unit with the fewest valid pages, relocates the
// valid pages through the strategy's GC stream, erases every block of the unit
// and returns it to the free pool. Under the placement strategy every pass
// reports the longest run of relocated LPNs as a ReallocEvent.
//
// Counters are kept in a VictoriaMetrics set and can be scraped with
// WritePrometheus. CheckConsistency verifies the cross structure invariants and
// is cheap enough to run after every step of a test.
package ssd

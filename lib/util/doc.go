// Package util provides the generic containers shared by the FTL packages.
//
// The package contains:
//   - mapheap: a min-heap with a key to position map, used to order reclaimable units by valid page count
//   - lru: an index based, hash chained LRU cache with dirty tracking and an eviction callback
//   - lockfreempsc: a lock-free Multi-Producer Single-Consumer queue feeding the dispatcher worker
//   - statistics: summary and evenness metrics for counters such as erase counts
//
// None of the single-consumer containers are thread-safe; they are owned by the one
// worker that mutates device state.
package util

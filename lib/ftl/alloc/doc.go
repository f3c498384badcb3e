// Package alloc hands out physical pages for host and GC writes and keeps the
// per-unit bookkeeping the garbage collector selects victims from.
//
// A unit is the erase granularity of the simulator: the block with the same
// index on every plane of every die of a reclaim group. Each reclaim group owns
// a pool of units with a free FIFO, a victim heap ordered by valid page count
// and a set of completely valid units. Two strategies implement Strategy:
//
//   - LineStrategy: a single reclaim group spanning all dies. Host writes and
//     GC relocation share one cursor.
//   - PlacementStrategy: reclaim groups of ReclaimGroupDegree dies. Host writes
//     pick a cursor by placement key; GC writes go to the group's GC cursor or,
//     for persistently isolated handles, back to the handle's own cursor.
//
// Cursors stripe channel, die, plane and page in that order so consecutive
// writes land on different dies.
//
// Thread-safety: none. The strategy is owned by the device worker.
package alloc

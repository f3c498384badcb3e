// Package cache implements the two level metadata cache of the mapping table.
//
// The entry cache holds single LPN to PPA mappings, the page cache holds whole
// translation pages of EntriesPerTranslationPage mappings. The global
// translation directory (GTD) records for every translation page whether it is
// resident, dirty and where its last version sits on the translation log.
// Evicted dirty translation pages are appended to the log, which runs its own
// greedy garbage collection when it runs out of free blocks.
//
// The cache is the authoritative view of the mapping; the flat table in the
// mapping package is only written back on eviction. Lookup and Set count cache
// hits and misses as well as translation page reads and writes; they do not
// charge NAND time.
package cache

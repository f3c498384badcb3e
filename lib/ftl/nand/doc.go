// Package nand models the flash media below the FTL.
//
// Timing keeps a "free at" timestamp per die and, when channel transfers are
// modeled, per channel. Advance turns a (page, command) pair into the latency
// the issuer observes: the command starts at max(issue time, resource free
// time) and occupies the resource for its configured latency.
//
// Array keeps the page states (free, valid, invalid) and per-block valid and
// invalid page counters plus erase counts. Illegal transitions panic.
package nand

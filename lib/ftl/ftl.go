package ftl

import "fmt"

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// OpCode is the kind of a request reaching the device
type OpCode uint8

const (
	OpRead OpCode = iota + 1
	OpWrite
	// OpNoOp completes immediately with zero latency (flush, dataset management)
	OpNoOp
)

func (o OpCode) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpNoOp:
		return "noop"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// PlacementKey selects the open unit a write goes to under the placement strategy
type PlacementKey struct {
	Group  int // reclaim group id
	Handle int // placement handle within the group
}

// Request is one decoded host command. Times are simulated nanoseconds.
type Request struct {
	Op        OpCode
	StartLPN  uint64
	Count     uint64
	IssueTime int64
	Placement *PlacementKey // only honored by the placement strategy
}

// ReallocEvent reports the longest run of consecutive LPNs moved by one GC pass
// of the placement strategy.
type ReallocEvent struct {
	Group    int
	Handle   int
	StartLPN uint64
	Count    uint64
	Time     int64
}

// --------------------------------------------------------------------------
// Device
// --------------------------------------------------------------------------

// Device is the translation and reclamation engine of one simulated SSD.
// Every method returns latencies in simulated nanoseconds.
//
// Thread-safety: a Device has exactly one owner. Concurrent submitters go
// through the dispatch package, which serializes requests onto one worker.
type Device interface {
	// Submit executes a request of any kind. Unknown op codes return RetCUnsupportedOperation.
	Submit(req Request) (latency int64, err error)
	// Read looks up count pages starting at startLPN; unmapped pages cost nothing.
	Read(startLPN, count uint64, issueTime int64) (latency int64, err error)
	// Write maps count pages starting at startLPN onto fresh physical pages.
	// key selects the reclaim group and handle under the placement strategy, a nil
	// key writes through handle 0 of group 0. The line strategy ignores it.
	Write(startLPN, count uint64, issueTime int64, key *PlacementKey) (latency int64, err error)
	// BackgroundGC runs a single non-forced collection pass where free space is low.
	BackgroundGC(now int64)
	// CollectGarbage runs one collection pass per reclaim group and returns the number of units reclaimed.
	CollectGarbage(force bool, now int64) int
	// CheckConsistency verifies the mapping, cache and allocator invariants.
	CheckConsistency() error
	// Stats returns the current counters.
	Stats() Stats
	// Info returns a snapshot of the device state.
	Info() DeviceInfo
	// Close releases the device; it must not be used afterwards.
	Close()
}

// Stats holds the counters of a device
type Stats struct {
	HostPagesRead         uint64  `json:"host_pages_read"`
	HostPagesWritten      uint64  `json:"host_pages_written"`
	GCPagesWritten        uint64  `json:"gc_pages_written"`
	ForcedGCPasses        uint64  `json:"forced_gc_passes"`
	BackgroundGCPasses    uint64  `json:"background_gc_passes"`
	BlocksErased          uint64  `json:"blocks_erased"`
	EntryCacheHits        uint64  `json:"entry_cache_hits"`
	EntryCacheMisses      uint64  `json:"entry_cache_misses"`
	PageCacheHits         uint64  `json:"page_cache_hits"`
	PageCacheMisses       uint64  `json:"page_cache_misses"`
	TranslationPageReads  uint64  `json:"translation_page_reads"`
	TranslationPageWrites uint64  `json:"translation_page_writes"`
	TranslationLogGCs     uint64  `json:"translation_log_gcs"`
	WriteAmplification    float64 `json:"write_amplification"`
}

func (s Stats) String() string {
	return fmt.Sprintf("host writes %d, gc writes %d, waf %.3f, erases %d, gc passes %d forced / %d background",
		s.HostPagesWritten, s.GCPagesWritten, s.WriteAmplification, s.BlocksErased, s.ForcedGCPasses, s.BackgroundGCPasses)
}

// WAF computes write amplification from host and GC page writes
func WAF(host, gc uint64) float64 {
	if host == 0 {
		return 0
	}
	return float64(host+gc) / float64(host)
}

// DeviceInfo is a snapshot of device state
type DeviceInfo struct {
	Name           string            `json:"name"`
	Strategy       StrategyKind      `json:"strategy"`
	TotalPages     int               `json:"total_pages"`
	Units          int               `json:"units"`
	PagesPerUnit   int               `json:"pages_per_unit"`
	FreeUnits      []int             `json:"free_units"` // per reclaim group
	VictimUnits    int               `json:"victim_units"`
	FullUnits      int               `json:"full_units"`
	MappedPages    int               `json:"mapped_pages"`
	EraseCounts    DistributionInfo  `json:"erase_counts"`
	GCEndTime      int64             `json:"gc_end_time"` // latest simulated time a die finished GC work
	EntryCacheSize int               `json:"entry_cache_size"`
	PageCacheSize  int               `json:"page_cache_size"`
	Metadata       map[string]string `json:"metadata"`
}

// DistributionInfo summarizes per-block counters
type DistributionInfo struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Quality float64 `json:"quality"`
}

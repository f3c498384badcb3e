package ssd

import (
	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/ftl/alloc"
	"github.com/ValentinKolb/ftlsim/lib/ftl/cache"
	"github.com/ValentinKolb/ftlsim/lib/ftl/mapping"
	"github.com/ValentinKolb/ftlsim/lib/ftl/nand"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	log   = logger.GetLogger("ftl")
	gcLog = logger.GetLogger("gc")
)

// maxEvents is the number of reallocation events kept for Events
const maxEvents = 64

// --------------------------------------------------------------------------
// SSD
// --------------------------------------------------------------------------

// SSD is the complete state of one simulated device: timing model, flash
// array, flat mapping store, metadata cache and allocation strategy. It is
// the single context object every operation runs against.
//
// Thread-safety: an SSD is not safe for concurrent use; it must be owned by a
// single worker (see the dispatch package).
type SSD struct {
	cfg      ftl.Config
	params   ftl.Params
	timing   *nand.Timing
	array    *nand.Array
	table    *mapping.Table
	cache    *cache.Cache
	strategy alloc.Strategy
	metrics  *deviceMetrics

	events    []ftl.ReallocEvent
	onRealloc func(ftl.ReallocEvent)
	closed    bool
}

// New validates cfg and creates an empty device
func New(cfg ftl.Config) (*SSD, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy, err := alloc.New(&cfg)
	if err != nil {
		return nil, err
	}

	p := cfg.Params()
	s := &SSD{
		cfg:      cfg,
		params:   p,
		timing:   nand.NewTiming(&cfg),
		array:    nand.NewArray(p),
		table:    mapping.New(p),
		strategy: strategy,
	}
	s.cache = cache.New(&cfg, s.table)
	s.metrics = newDeviceMetrics(s)

	normal, high := strategy.Thresholds()
	log.Infof("device %s ready: %d pages, %d units of %d pages, %s strategy, gc at %d/%d free units",
		cfg.Name, p.TotalPages, strategy.Units(), strategy.PagesPerUnit(), cfg.Strategy, normal, high)
	return s, nil
}

// SetReallocHandler registers fn to receive every reallocation event
func (s *SSD) SetReallocHandler(fn func(ftl.ReallocEvent)) {
	s.onRealloc = fn
}

// Config returns the configuration the device was created with
func (s *SSD) Config() ftl.Config { return s.cfg }

// Strategy exposes the allocation strategy
func (s *SSD) Strategy() alloc.Strategy { return s.strategy }

// Cache exposes the metadata cache hierarchy
func (s *SSD) Cache() *cache.Cache { return s.cache }

// Array exposes the flash array state
func (s *SSD) Array() *nand.Array { return s.array }

// Table exposes the flat mapping store
func (s *SSD) Table() *mapping.Table { return s.table }

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// Submit executes req and returns its latency
func (s *SSD) Submit(req ftl.Request) (int64, error) {
	switch req.Op {
	case ftl.OpRead:
		return s.Read(req.StartLPN, req.Count, req.IssueTime)
	case ftl.OpWrite:
		return s.Write(req.StartLPN, req.Count, req.IssueTime, req.Placement)
	case ftl.OpNoOp:
		return 0, nil
	default:
		return 0, ftl.NewError(ftl.RetCUnsupportedOperation, "unsupported operation %s", req.Op)
	}
}

// Read charges one page read per mapped LPN in range and returns the slowest
func (s *SSD) Read(startLPN, count uint64, issueTime int64) (int64, error) {
	if err := s.check(startLPN, count); err != nil {
		return 0, err
	}

	var maxLat int64
	for lpn := startLPN; lpn < startLPN+count; lpn++ {
		ppa := s.cache.Lookup(lpn)
		if !ppa.IsMapped() {
			continue
		}
		if !s.params.InBounds(ppa) {
			log.Warningf("read of lpn %d skipped: %s is out of bounds", lpn, ppa)
			continue
		}
		lat := s.timing.Advance(ppa, nand.OpRead, issueTime)
		maxLat = max(maxLat, lat)
		s.metrics.hostPagesRead.Inc()
	}
	return maxLat, nil
}

// Write maps every LPN in range to a fresh page and returns the slowest program.
// Before every page, forced GC runs while the target group is short of free
// units, so a request longer than the free space can still complete.
func (s *SSD) Write(startLPN, count uint64, issueTime int64, key *ftl.PlacementKey) (int64, error) {
	if err := s.check(startLPN, count); err != nil {
		return 0, err
	}
	stream, err := s.strategy.HostStream(key)
	if err != nil {
		return 0, err
	}

	var maxLat int64
	for lpn := startLPN; lpn < startLPN+count; lpn++ {
		s.forceGC(stream.Group, issueTime)
		if old := s.cache.Lookup(lpn); old.IsMapped() {
			s.invalidate(lpn, old)
		}
		ppa := s.program(lpn, stream)
		lat := s.timing.Advance(ppa, nand.OpWrite, issueTime)
		maxLat = max(maxLat, lat)
		s.metrics.hostPagesWritten.Inc()
	}
	return maxLat, nil
}

// forceGC reclaims units of group until it is above the high threshold or no
// victim is left
func (s *SSD) forceGC(group int, now int64) {
	_, high := s.strategy.Thresholds()
	for s.strategy.FreeUnits(group) <= high {
		if !s.collect(group, true, now) {
			return
		}
	}
}

// program allocates the next page of stream for lpn and installs the mapping
func (s *SSD) program(lpn uint64, stream alloc.Stream) ftl.PPA {
	ppa := s.strategy.Allocate(stream)
	s.cache.Set(lpn, ppa)
	s.table.SetOwner(ppa, lpn)
	s.array.MarkValid(ppa)
	s.strategy.MarkValid(ppa)
	s.strategy.Advance(stream)
	return ppa
}

// invalidate retires the page previously holding lpn
func (s *SSD) invalidate(lpn uint64, old ftl.PPA) {
	if !s.params.InBounds(old) {
		log.Warningf("write of lpn %d: previous mapping %s is out of bounds, not invalidated", lpn, old)
		return
	}
	s.array.MarkInvalid(old)
	s.strategy.MarkInvalid(old)
	s.table.ClearOwner(old)
}

// check rejects requests on a closed device or outside the logical space
func (s *SSD) check(startLPN, count uint64) error {
	if s.closed {
		return ftl.NewError(ftl.RetCInvalidOperation, "device %s is closed", s.cfg.Name)
	}
	total := uint64(s.params.TotalPages)
	if count > total || startLPN > total-count {
		return ftl.NewError(ftl.RetCOutOfRange, "lpn range [%d, %d) exceeds device capacity of %d pages",
			startLPN, startLPN+count, total)
	}
	return nil
}

// Events returns the most recent reallocation events, oldest first
func (s *SSD) Events() []ftl.ReallocEvent {
	out := make([]ftl.ReallocEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Close marks the device unusable
func (s *SSD) Close() {
	if s.closed {
		return
	}
	s.closed = true
	log.Infof("device %s closed: %s", s.cfg.Name, s.Stats().String())
}

var _ ftl.Device = (*SSD)(nil)

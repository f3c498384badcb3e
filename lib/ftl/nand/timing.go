package nand

import (
	"github.com/ValentinKolb/ftlsim/lib/ftl"
)

// Op is a NAND command
type Op uint8

const (
	OpRead Op = iota
	OpWrite
	OpErase
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpErase:
		return "erase"
	default:
		return "unknown"
	}
}

// Timing tracks when each die (and optionally each channel) becomes free again.
// Operations issued to the same die serialize, different dies advance independently.
//
// Thread-safety: Timing is owned by the device worker and not safe for concurrent use.
type Timing struct {
	params      ftl.Params
	latency     [3]int64
	transfer    int64
	withChannel bool

	dieNext     []int64
	channelNext []int64
	gcEnd       []int64
}

// NewTiming creates the timing model for the configured geometry and latencies
func NewTiming(cfg *ftl.Config) *Timing {
	p := cfg.Params()
	t := &Timing{
		params:      p,
		transfer:    cfg.ChannelTransferLatency.Nanoseconds(),
		withChannel: cfg.ModelChannelTransfer,
		dieNext:     make([]int64, p.TotalDies),
		channelNext: make([]int64, p.Channels),
		gcEnd:       make([]int64, p.TotalDies),
	}
	t.latency[OpRead] = cfg.PageReadLatency.Nanoseconds()
	t.latency[OpWrite] = cfg.PageWriteLatency.Nanoseconds()
	t.latency[OpErase] = cfg.BlockEraseLatency.Nanoseconds()
	return t
}

// Advance books op on the resources addressed by ppa starting no earlier than
// start and returns the latency observed by the issuer (completion - start).
func (t *Timing) Advance(ppa ftl.PPA, op Op, start int64) int64 {
	die := t.params.DieIndex(ppa)
	lat := t.latency[op]

	if !t.withChannel || op == OpErase {
		begin := max(start, t.dieNext[die])
		t.dieNext[die] = begin + lat
		return t.dieNext[die] - start
	}

	ch := ppa.Channel()
	switch op {
	case OpRead:
		// array read on the die, then data out over the channel
		begin := max(start, t.dieNext[die])
		t.dieNext[die] = begin + lat
		xfer := max(t.dieNext[die], t.channelNext[ch])
		t.channelNext[ch] = xfer + t.transfer
		return t.channelNext[ch] - start
	default:
		// data in over the channel, then program on the die
		xfer := max(start, t.channelNext[ch])
		t.channelNext[ch] = xfer + t.transfer
		begin := max(t.channelNext[ch], t.dieNext[die])
		t.dieNext[die] = begin + lat
		return t.dieNext[die] - start
	}
}

// AdvanceGC is Advance for work issued by the garbage collector. It also records
// the time the die finishes GC work.
func (t *Timing) AdvanceGC(ppa ftl.PPA, op Op, start int64) int64 {
	lat := t.Advance(ppa, op, start)
	die := t.params.DieIndex(ppa)
	t.gcEnd[die] = max(t.gcEnd[die], start+lat)
	return lat
}

// DieAvailable returns the time the die addressed by ppa becomes idle
func (t *Timing) DieAvailable(ppa ftl.PPA) int64 {
	return t.dieNext[t.params.DieIndex(ppa)]
}

// GCEndTime returns the latest time any die finished GC work
func (t *Timing) GCEndTime() int64 {
	var end int64
	for _, v := range t.gcEnd {
		end = max(end, v)
	}
	return end
}

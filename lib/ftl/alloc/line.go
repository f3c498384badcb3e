package alloc

import (
	"github.com/ValentinKolb/ftlsim/lib/ftl"
)

// LineStrategy stripes writes over every die of the device. A line is block b
// of every plane of every die; host writes and GC relocation share one cursor.
type LineStrategy struct {
	*units
	cur *cursor
}

// NewLineStrategy creates the striped allocator with line 0 open
func NewLineStrategy(cfg *ftl.Config) *LineStrategy {
	p := cfg.Params()

	// channel varies fastest so consecutive pages land on different channels
	dies := make([]dieAddr, 0, p.TotalDies)
	for die := 0; die < p.DiesPerChannel; die++ {
		for ch := 0; ch < p.Channels; ch++ {
			dies = append(dies, dieAddr{ch: ch, die: die})
		}
	}

	s := &LineStrategy{}
	s.units = newUnits(cfg, [][]dieAddr{dies}, func(ppa ftl.PPA) int { return ppa.Block() })
	s.cur = s.open(0, noHandle)
	return s
}

func (s *LineStrategy) Kind() ftl.StrategyKind { return ftl.StrategyLine }

// HostStream ignores key, every write goes through the single cursor
func (s *LineStrategy) HostStream(*ftl.PlacementKey) (Stream, error) { return Stream{}, nil }

func (s *LineStrategy) GCStream(int) Stream { return Stream{} }

func (s *LineStrategy) Allocate(Stream) ftl.PPA { return s.ppa(s.cur) }

func (s *LineStrategy) Advance(Stream) { s.step(s.cur) }

// OpenUnit returns the id of the line currently written
func (s *LineStrategy) OpenUnit() int { return s.cur.unit }

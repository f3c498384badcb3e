package ssd

import (
	"slices"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/ftl/mapping"
	"github.com/ValentinKolb/ftlsim/lib/ftl/nand"
)

// BackgroundGC runs one non-forced pass in every group whose free unit count
// dropped to the normal threshold
func (s *SSD) BackgroundGC(now int64) {
	if s.closed {
		return
	}
	normal, _ := s.strategy.Thresholds()
	for g := 0; g < s.strategy.Groups(); g++ {
		if s.strategy.FreeUnits(g) <= normal {
			s.collect(g, false, now)
		}
	}
}

// CollectGarbage runs one pass in every group regardless of thresholds and
// returns the number of reclaimed units
func (s *SSD) CollectGarbage(force bool, now int64) int {
	if s.closed {
		return 0
	}
	n := 0
	for g := 0; g < s.strategy.Groups(); g++ {
		if s.collect(g, force, now) {
			n++
		}
	}
	return n
}

// collect reclaims the unit of group with the fewest valid pages: every valid
// page is read, rewritten through the strategy's GC stream and remapped, then
// every block is erased and the unit goes back to the free pool.
// NAND work is booked at now when GC delay is enabled.
func (s *SSD) collect(group int, force bool, now int64) bool {
	victim, ok := s.strategy.SelectVictim(group, force)
	if !ok {
		return false
	}
	unit := s.strategy.Unit(victim)
	stream := s.strategy.GCStream(victim)
	gcLog.Debugf("gc(force=%t) group %d: victim unit %d (vpc %d, ipc %d) -> %s, free %d, victims %d, full %d",
		force, group, victim, unit.VPC, unit.IPC, stream, s.strategy.FreeUnits(group),
		s.strategy.VictimUnits(), s.strategy.FullUnits())

	relocated := make([]uint64, 0, unit.VPC)
	for _, blk := range s.strategy.UnitBlocks(victim) {
		moved := 0
		for pg := 0; pg < s.params.PagesPerBlock; pg++ {
			old := blk.WithPage(pg)
			if s.array.State(old) != nand.PageValid {
				continue
			}
			lpn := s.table.Owner(old)
			if lpn == mapping.InvalidLPN {
				gcLog.Panicf("valid page %s has no owner", old)
			}
			if s.cfg.EnableGCDelay {
				s.timing.AdvanceGC(old, nand.OpRead, now)
			}

			ppa := s.program(lpn, stream)
			s.table.ClearOwner(old)
			if s.cfg.EnableGCDelay {
				s.timing.AdvanceGC(ppa, nand.OpWrite, now)
			}

			moved++
			relocated = append(relocated, lpn)
			s.metrics.gcPagesWritten.Inc()
		}

		if b := s.array.Block(blk); b.VPC != moved {
			gcLog.Panicf("block %s: vpc %d after relocating %d pages", blk, b.VPC, moved)
		}
		s.array.Erase(blk)
		if s.cfg.EnableGCDelay {
			s.timing.AdvanceGC(blk, nand.OpErase, now)
		}
		s.metrics.blocksErased.Inc()
	}

	if len(relocated) != unit.VPC {
		gcLog.Panicf("unit %d: vpc %d but %d pages relocated", victim, unit.VPC, len(relocated))
	}
	s.strategy.Release(victim)

	if force {
		s.metrics.forcedGC.Inc()
	} else {
		s.metrics.backgroundGC.Inc()
	}
	s.metrics.relocatedPerPass.Update(int64(len(relocated)))

	if s.cfg.Strategy == ftl.StrategyPlacement && len(relocated) > 0 {
		start, n := longestRun(relocated)
		s.emit(ftl.ReallocEvent{
			Group:    unit.Group,
			Handle:   unit.Handle,
			StartLPN: start,
			Count:    n,
			Time:     now,
		})
	}
	return true
}

// longestRun sorts lpns and returns the longest run of consecutive values.
// The earliest run wins ties.
func longestRun(lpns []uint64) (start, n uint64) {
	slices.Sort(lpns)
	runStart, runLen := lpns[0], uint64(1)
	start, n = runStart, runLen
	for i := 1; i < len(lpns); i++ {
		if lpns[i] == lpns[i-1]+1 {
			runLen++
		} else {
			runStart, runLen = lpns[i], 1
		}
		if runLen > n {
			start, n = runStart, runLen
		}
	}
	return start, n
}

func (s *SSD) emit(ev ftl.ReallocEvent) {
	gcLog.Debugf("media reallocated: group %d handle %d lpns [%d, %d)", ev.Group, ev.Handle, ev.StartLPN, ev.StartLPN+ev.Count)
	if len(s.events) == maxEvents {
		copy(s.events, s.events[1:])
		s.events = s.events[:maxEvents-1]
	}
	s.events = append(s.events, ev)
	s.metrics.reallocEvents.Inc()
	if s.onRealloc != nil {
		s.onRealloc(ev)
	}
}

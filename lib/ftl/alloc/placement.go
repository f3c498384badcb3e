package alloc

import (
	"github.com/ValentinKolb/ftlsim/lib/ftl"
)

// PlacementStrategy splits the dies into reclaim groups of ReclaimGroupDegree
// dies. A reclaim unit is block b of every plane of every die in its group.
// Each group keeps one open unit per placement handle plus one unit reserved
// for data the collector relocates out of initially isolated handles.
type PlacementStrategy struct {
	*units
	degree     int
	channels   int
	isolation  ftl.IsolationKind
	handles    [][]*cursor // [group][handle]
	gcCursors  []*cursor   // [group]
	numHandles int
}

// NewPlacementStrategy creates the placement aware allocator with every handle
// and every GC cursor open
func NewPlacementStrategy(cfg *ftl.Config) *PlacementStrategy {
	p := cfg.Params()
	deg := cfg.ReclaimGroupDegree
	groups := p.TotalDies / deg

	// die k (channel fastest) belongs to group k / degree
	groupDies := make([][]dieAddr, groups)
	for k := 0; k < p.TotalDies; k++ {
		d := dieAddr{ch: k % p.Channels, die: k / p.Channels}
		groupDies[k/deg] = append(groupDies[k/deg], d)
	}

	s := &PlacementStrategy{
		degree:     deg,
		channels:   p.Channels,
		isolation:  cfg.Isolation,
		handles:    make([][]*cursor, groups),
		gcCursors:  make([]*cursor, groups),
		numHandles: cfg.PlacementHandles,
	}
	s.units = newUnits(cfg, groupDies, s.unitOf)

	for g := 0; g < groups; g++ {
		s.handles[g] = make([]*cursor, cfg.PlacementHandles)
		for h := range s.handles[g] {
			s.handles[g][h] = s.open(g, h)
		}
		s.gcCursors[g] = s.open(g, noHandle)
	}
	return s
}

func (s *PlacementStrategy) unitOf(ppa ftl.PPA) int {
	k := ppa.Die()*s.channels + ppa.Channel()
	return (k/s.degree)*s.params.BlocksPerPlane + ppa.Block()
}

func (s *PlacementStrategy) Kind() ftl.StrategyKind { return ftl.StrategyPlacement }

// Handles returns the number of placement handles per group
func (s *PlacementStrategy) Handles() int { return s.numHandles }

// HostStream validates key; a nil key writes through handle 0 of group 0
func (s *PlacementStrategy) HostStream(key *ftl.PlacementKey) (Stream, error) {
	if key == nil {
		return Stream{}, nil
	}
	if key.Group < 0 || key.Group >= len(s.handles) {
		return Stream{}, ftl.NewError(ftl.RetCInvalidOperation, "reclaim group %d out of range [0, %d)", key.Group, len(s.handles))
	}
	if key.Handle < 0 || key.Handle >= s.numHandles {
		return Stream{}, ftl.NewError(ftl.RetCInvalidOperation, "placement handle %d out of range [0, %d)", key.Handle, s.numHandles)
	}
	return Stream{Group: key.Group, Handle: key.Handle}, nil
}

// GCStream sends data of persistently isolated handles back to their own unit
// and everything else to the group's GC unit
func (s *PlacementStrategy) GCStream(victim int) Stream {
	unit := s.units.units[victim]
	if s.isolation == ftl.IsolationPersistent && unit.Handle != noHandle {
		return Stream{Group: unit.Group, Handle: unit.Handle}
	}
	return Stream{Group: unit.Group, GC: true}
}

func (s *PlacementStrategy) cursor(st Stream) *cursor {
	if st.GC {
		return s.gcCursors[st.Group]
	}
	return s.handles[st.Group][st.Handle]
}

func (s *PlacementStrategy) Allocate(st Stream) ftl.PPA { return s.ppa(s.cursor(st)) }

func (s *PlacementStrategy) Advance(st Stream) { s.step(s.cursor(st)) }

// OpenUnit returns the unit currently written by st
func (s *PlacementStrategy) OpenUnit(st Stream) int { return s.cursor(st).unit }

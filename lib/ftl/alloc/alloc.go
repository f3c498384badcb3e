package alloc

import (
	"fmt"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("alloc")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Stream identifies a write cursor. The line strategy has a single cursor and
// ignores the fields; the placement strategy has one cursor per (group, handle)
// plus one GC cursor per group.
type Stream struct {
	Group  int
	Handle int
	GC     bool
}

func (s Stream) String() string {
	if s.GC {
		return fmt.Sprintf("rg%d/gc", s.Group)
	}
	return fmt.Sprintf("rg%d/ph%d", s.Group, s.Handle)
}

// Strategy hands out physical pages and tracks reclaimable units.
//
// Allocate never moves the cursor, Advance does and closes the open unit when
// its last page was handed out. A closed unit is full if every page is still
// valid and a GC candidate otherwise. Advance panics if a new unit is needed
// and the free pool of the group is empty.
//
// Thread-safety: implementations are owned by the device worker and not safe for concurrent use.
type Strategy interface {
	Kind() ftl.StrategyKind
	// Groups returns the number of reclaim groups (1 for lines)
	Groups() int
	// HostStream resolves the cursor used for host writes
	HostStream(key *ftl.PlacementKey) (Stream, error)
	// GCStream returns the cursor that receives pages relocated out of victim
	GCStream(victim int) Stream

	Allocate(s Stream) ftl.PPA
	Advance(s Stream)
	MarkValid(ppa ftl.PPA)
	MarkInvalid(ppa ftl.PPA)

	// SelectVictim removes and returns the unit with the fewest valid pages.
	// Without force, units with less than 1/8 invalid pages are not worth reclaiming.
	SelectVictim(group int, force bool) (unit int, ok bool)
	// Release returns a drained and erased unit to the free pool
	Release(unit int)

	UnitOf(ppa ftl.PPA) int
	// UnitBlocks returns page 0 of every block of the unit
	UnitBlocks(unit int) []ftl.PPA
	Unit(unit int) Unit
	Units() int
	PagesPerUnit() int

	FreeUnits(group int) int
	VictimUnits() int
	FullUnits() int
	// Thresholds returns the free unit counts at which background (normal)
	// and forced (high) GC start, per group
	Thresholds() (normal, high int)
}

// New creates the strategy selected by cfg
func New(cfg *ftl.Config) (Strategy, error) {
	switch cfg.Strategy {
	case ftl.StrategyLine:
		return NewLineStrategy(cfg), nil
	case ftl.StrategyPlacement:
		return NewPlacementStrategy(cfg), nil
	default:
		return nil, fmt.Errorf("unknown allocation strategy %q", cfg.Strategy)
	}
}

// --------------------------------------------------------------------------
// Units
// --------------------------------------------------------------------------

// UnitState is the lifecycle position of a unit
type UnitState uint8

const (
	UnitFree UnitState = iota
	UnitOpen
	UnitVictim
	UnitFull
	UnitDraining
)

func (s UnitState) String() string {
	switch s {
	case UnitFree:
		return "free"
	case UnitOpen:
		return "open"
	case UnitVictim:
		return "victim"
	case UnitFull:
		return "full"
	case UnitDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// noHandle marks units written by a GC cursor (or any unit of the line strategy)
const noHandle = -1

// Unit is a reclamation granule: one block per die (and plane) of its group
type Unit struct {
	ID     int
	Group  int
	Block  int // block number inside each plane
	VPC    int
	IPC    int
	State  UnitState
	Handle int // handle that opened the unit, noHandle for GC cursors
}

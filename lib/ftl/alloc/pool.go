package alloc

import (
	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/util"
	mapset "github.com/deckarep/golang-set/v2"
)

// dieAddr addresses one die of the device
type dieAddr struct {
	ch  int
	die int
}

// pool holds the units of one reclaim group that are not open
type pool struct {
	free    []int // FIFO
	victims *util.MapHeap[int]
	full    mapset.Set[int]
}

func newPool() *pool {
	return &pool{
		victims: util.NewMapHeap[int](),
		full:    mapset.NewThreadUnsafeSet[int](),
	}
}

// cursor is a write pointer striping over the dies of a group
type cursor struct {
	unit  int
	die   int
	plane int
	page  int
}

// --------------------------------------------------------------------------
// Shared unit bookkeeping
// --------------------------------------------------------------------------

// units implements everything both strategies have in common: unit counters,
// the free/victim/full pools per group and cursor movement. The concrete
// strategies decide how units map onto dies and which cursor a stream uses.
type units struct {
	params       ftl.Params
	units        []Unit
	pools        []*pool
	groupDies    [][]dieAddr
	pagesPerUnit int
	normal, high int
	unitOf       func(ppa ftl.PPA) int
}

func newUnits(cfg *ftl.Config, groupDies [][]dieAddr, unitOf func(ftl.PPA) int) *units {
	p := cfg.Params()
	u := &units{
		params:       p,
		units:        make([]Unit, len(groupDies)*p.BlocksPerPlane),
		pools:        make([]*pool, len(groupDies)),
		groupDies:    groupDies,
		pagesPerUnit: len(groupDies[0]) * p.PlanesPerDie * p.PagesPerBlock,
		unitOf:       unitOf,
	}
	u.normal, u.high = cfg.GCThresholds(p.BlocksPerPlane)

	for g := range groupDies {
		u.pools[g] = newPool()
		for blk := 0; blk < p.BlocksPerPlane; blk++ {
			id := g*p.BlocksPerPlane + blk
			u.units[id] = Unit{ID: id, Group: g, Block: blk, State: UnitFree, Handle: noHandle}
			u.pools[g].free = append(u.pools[g].free, id)
		}
	}
	return u
}

func (u *units) UnitOf(ppa ftl.PPA) int { return u.unitOf(ppa) }
func (u *units) Unit(id int) Unit       { return u.units[id] }
func (u *units) Units() int             { return len(u.units) }
func (u *units) PagesPerUnit() int      { return u.pagesPerUnit }
func (u *units) Groups() int            { return len(u.pools) }
func (u *units) Thresholds() (int, int) { return u.normal, u.high }

func (u *units) FreeUnits(group int) int { return len(u.pools[group].free) }

func (u *units) VictimUnits() int {
	n := 0
	for _, p := range u.pools {
		n += p.victims.Len()
	}
	return n
}

func (u *units) FullUnits() int {
	n := 0
	for _, p := range u.pools {
		n += p.full.Cardinality()
	}
	return n
}

func (u *units) UnitBlocks(id int) []ftl.PPA {
	unit := &u.units[id]
	dies := u.groupDies[unit.Group]
	out := make([]ftl.PPA, 0, len(dies)*u.params.PlanesPerDie)
	for _, d := range dies {
		for pl := 0; pl < u.params.PlanesPerDie; pl++ {
			out = append(out, ftl.NewPPA(d.ch, d.die, pl, unit.Block, 0))
		}
	}
	return out
}

// MarkValid accounts a newly programmed page to its (open) unit
func (u *units) MarkValid(ppa ftl.PPA) {
	unit := &u.units[u.unitOf(ppa)]
	if unit.State != UnitOpen {
		log.Panicf("mark valid: %s belongs to unit %d in state %s", ppa, unit.ID, unit.State)
	}
	unit.VPC++
	if unit.VPC+unit.IPC > u.pagesPerUnit {
		log.Panicf("mark valid: unit %d over capacity (vpc %d, ipc %d)", unit.ID, unit.VPC, unit.IPC)
	}
}

// MarkInvalid accounts an overwritten page. A full unit becomes a GC candidate,
// a candidate moves up in the victim heap.
func (u *units) MarkInvalid(ppa ftl.PPA) {
	unit := &u.units[u.unitOf(ppa)]
	if unit.VPC <= 0 {
		log.Panicf("mark invalid: unit %d has no valid pages (%s)", unit.ID, ppa)
	}
	p := u.pools[unit.Group]

	unit.VPC--
	unit.IPC++

	switch unit.State {
	case UnitOpen:
	case UnitFull:
		p.full.Remove(unit.ID)
		unit.State = UnitVictim
		p.victims.Push(unit.ID, uint64(unit.VPC))
	case UnitVictim:
		p.victims.Update(unit.ID, uint64(unit.VPC))
	default:
		log.Panicf("mark invalid: %s belongs to unit %d in state %s", ppa, unit.ID, unit.State)
	}
}

func (u *units) SelectVictim(group int, force bool) (int, bool) {
	p := u.pools[group]
	head, ok := p.victims.Peek()
	if !ok {
		return 0, false
	}
	if !force && u.units[head.Key].IPC < u.pagesPerUnit/8 {
		return 0, false
	}
	id, _, _ := p.victims.Pop()
	u.units[id].State = UnitDraining
	return id, true
}

func (u *units) Release(id int) {
	unit := &u.units[id]
	if unit.State != UnitDraining {
		log.Panicf("release: unit %d is %s, expected draining", id, unit.State)
	}
	unit.VPC = 0
	unit.IPC = 0
	unit.State = UnitFree
	unit.Handle = noHandle
	p := u.pools[unit.Group]
	p.free = append(p.free, id)
}

// --------------------------------------------------------------------------
// Cursor movement
// --------------------------------------------------------------------------

// open draws the next free unit of the group for a cursor
func (u *units) open(group, handle int) *cursor {
	p := u.pools[group]
	if len(p.free) == 0 {
		log.Panicf("reclaim group %d has no free units left (victims %d, full %d)",
			group, p.victims.Len(), p.full.Cardinality())
	}
	id := p.free[0]
	p.free = p.free[1:]

	unit := &u.units[id]
	unit.State = UnitOpen
	unit.Handle = handle
	return &cursor{unit: id}
}

// close classifies a unit whose pages have all been handed out
func (u *units) close(id int) {
	unit := &u.units[id]
	p := u.pools[unit.Group]
	if unit.VPC == u.pagesPerUnit {
		unit.State = UnitFull
		p.full.Add(id)
		return
	}
	unit.State = UnitVictim
	p.victims.Push(id, uint64(unit.VPC))
}

// ppa returns the page the cursor points at
func (u *units) ppa(c *cursor) ftl.PPA {
	unit := &u.units[c.unit]
	d := u.groupDies[unit.Group][c.die]
	return ftl.NewPPA(d.ch, d.die, c.plane, unit.Block, c.page)
}

// step moves c along die -> plane -> page. When the unit is exhausted it is
// closed and c continues on a fresh unit.
func (u *units) step(c *cursor) {
	unit := &u.units[c.unit]
	c.die++
	if c.die < len(u.groupDies[unit.Group]) {
		return
	}
	c.die = 0
	c.plane++
	if c.plane < u.params.PlanesPerDie {
		return
	}
	c.plane = 0
	c.page++
	if c.page < u.params.PagesPerBlock {
		return
	}

	log.Debugf("unit %d exhausted (vpc %d, ipc %d)", unit.ID, unit.VPC, unit.IPC)
	u.close(unit.ID)
	*c = *u.open(unit.Group, unit.Handle)
}

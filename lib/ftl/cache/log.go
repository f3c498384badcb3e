package cache

import (
	"fmt"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
)

// Slot is the position of a translation page on the translation log
type Slot int32

// NoSlot marks a translation page that was never written to the log
const NoSlot Slot = -1

const (
	slotFree  int64 = -1
	slotStale int64 = -2
)

// logBlock is one erase unit of the translation log
type logBlock struct {
	writePtr int
	valid    int
	invalid  int
	full     bool
}

// RelocateFunc is called for every translation page the log GC moves
type RelocateFunc func(tvpn uint64, to Slot)

// LogStats are the counters of a translation log
type LogStats struct {
	Reads     uint64
	Writes    uint64
	GCs       uint64
	Relocated uint64
}

// Log is the on-flash append log holding evicted translation pages. Blocks are
// filled one at a time; at least one empty block is always held in reserve so
// the log's own collector has somewhere to move valid pages to.
//
// Thread-safety: Log is not safe for concurrent use.
type Log struct {
	blocks        []logBlock
	owners        []int64 // tvpn per slot, slotFree or slotStale
	data          [][]ftl.PPA
	pagesPerBlock int
	active        int
	relocate      RelocateFunc
	stats         LogStats
}

// NewLog creates an empty log of blocks x pagesPerBlock slots
func NewLog(blocks, pagesPerBlock int, relocate RelocateFunc) *Log {
	l := &Log{
		blocks:        make([]logBlock, blocks),
		owners:        make([]int64, blocks*pagesPerBlock),
		data:          make([][]ftl.PPA, blocks*pagesPerBlock),
		pagesPerBlock: pagesPerBlock,
		relocate:      relocate,
	}
	for i := range l.owners {
		l.owners[i] = slotFree
	}
	return l
}

// Read returns a copy of the translation page at slot
func (l *Log) Read(slot Slot) []ftl.PPA {
	if l.owners[slot] < 0 {
		log.Panicf("translation log: read of slot %d which holds no valid page", slot)
	}
	l.stats.Reads++
	out := make([]ftl.PPA, len(l.data[slot]))
	copy(out, l.data[slot])
	return out
}

// peek returns the stored page without copying or counting
func (l *Log) peek(slot Slot) []ftl.PPA {
	return l.data[slot]
}

// Owner returns the tvpn stored at slot
func (l *Log) Owner(slot Slot) (uint64, bool) {
	o := l.owners[slot]
	if o < 0 {
		return 0, false
	}
	return uint64(o), true
}

// Write stores entries as the newest version of tvpn and invalidates old
func (l *Log) Write(tvpn uint64, entries []ftl.PPA, old Slot) Slot {
	if old != NoSlot {
		l.invalidate(old)
	}
	slot := l.alloc()
	l.store(slot, tvpn, entries)
	l.stats.Writes++
	return slot
}

// CollectGarbage runs one collection pass and reports whether a block was reclaimed.
// The block with the fewest valid pages among the full blocks is the victim.
func (l *Log) CollectGarbage() bool {
	return l.collect()
}

// Stats returns the log counters
func (l *Log) Stats() LogStats { return l.stats }

// ValidPages returns the number of valid translation pages
func (l *Log) ValidPages() int {
	n := 0
	for i := range l.blocks {
		n += l.blocks[i].valid
	}
	return n
}

// BlockCounts returns the valid and invalid page counts of block b
func (l *Log) BlockCounts(b int) (valid, invalid int) {
	return l.blocks[b].valid, l.blocks[b].invalid
}

// BlockOf returns the log block containing slot
func (l *Log) BlockOf(slot Slot) int {
	return int(slot) / l.pagesPerBlock
}

// Blocks returns the number of log blocks
func (l *Log) Blocks() int { return len(l.blocks) }

func (l *Log) String() string {
	return fmt.Sprintf("Log{blocks: %d, active: %d, valid: %d, empty: %d}",
		len(l.blocks), l.active, l.ValidPages(), l.emptyBlocks())
}

// ----------------------------------------------------------------------------
// internals
// ----------------------------------------------------------------------------

func (l *Log) invalidate(slot Slot) {
	if l.owners[slot] < 0 {
		log.Panicf("translation log: invalidating slot %d which holds no valid page", slot)
	}
	l.owners[slot] = slotStale
	b := &l.blocks[l.BlockOf(slot)]
	b.valid--
	b.invalid++
}

func (l *Log) store(slot Slot, tvpn uint64, entries []ftl.PPA) {
	if cap(l.data[slot]) < len(entries) {
		l.data[slot] = make([]ftl.PPA, len(entries))
	}
	l.data[slot] = l.data[slot][:len(entries)]
	copy(l.data[slot], entries)
	l.owners[slot] = int64(tvpn)
	l.blocks[l.BlockOf(slot)].valid++
}

// alloc returns the next free slot of the active block, rotating to a fresh
// block when it is full. Rotation collects garbage once only the reserve is left.
func (l *Log) alloc() Slot {
	if l.blocks[l.active].full {
		if l.emptyBlocks() <= 1 {
			if !l.collect() {
				log.Panicf("translation log exhausted: %s", l)
			}
		} else {
			l.active = l.nextEmpty(l.active)
		}
		if l.blocks[l.active].full {
			log.Panicf("translation log exhausted after gc: %s", l)
		}
	}

	b := &l.blocks[l.active]
	slot := Slot(l.active*l.pagesPerBlock + b.writePtr)
	b.writePtr++
	if b.writePtr == l.pagesPerBlock {
		b.full = true
	}
	return slot
}

// collect reclaims the full block with the fewest valid pages. Valid pages are
// copied into an empty block, which then becomes the active block.
func (l *Log) collect() bool {
	victim := -1
	for i := range l.blocks {
		b := &l.blocks[i]
		if !b.full {
			continue
		}
		if victim < 0 || b.valid < l.blocks[victim].valid {
			victim = i
		}
	}
	if victim < 0 {
		return false
	}
	vb := &l.blocks[victim]
	if vb.valid == l.pagesPerBlock {
		return false
	}

	if vb.valid == 0 {
		l.erase(victim)
		l.stats.GCs++
		if l.blocks[l.active].full {
			l.active = victim
		}
		log.Debugf("translation log gc: erased block %d without copying", victim)
		return true
	}

	dest := l.nextEmpty(victim)
	if dest < 0 {
		return false
	}

	moved := 0
	first := victim * l.pagesPerBlock
	for s := first; s < first+l.pagesPerBlock; s++ {
		if l.owners[s] < 0 {
			continue
		}
		tvpn := uint64(l.owners[s])
		db := &l.blocks[dest]
		to := Slot(dest*l.pagesPerBlock + db.writePtr)
		db.writePtr++
		l.store(to, tvpn, l.data[s])
		l.relocate(tvpn, to)
		moved++
	}
	l.erase(victim)

	// the old active block is sealed, only one block is ever partially written
	if a := &l.blocks[l.active]; l.active != dest && !a.full && a.writePtr > 0 {
		a.full = true
	}
	l.active = dest
	if l.blocks[dest].writePtr == l.pagesPerBlock {
		l.blocks[dest].full = true
	}

	l.stats.GCs++
	l.stats.Relocated += uint64(moved)
	log.Debugf("translation log gc: moved %d pages from block %d to block %d", moved, victim, dest)
	return true
}

func (l *Log) erase(b int) {
	first := b * l.pagesPerBlock
	for s := first; s < first+l.pagesPerBlock; s++ {
		l.owners[s] = slotFree
	}
	l.blocks[b] = logBlock{}
}

func (l *Log) emptyBlocks() int {
	n := 0
	for i := range l.blocks {
		if l.blocks[i].writePtr == 0 {
			n++
		}
	}
	return n
}

// nextEmpty returns the first empty block after from (round robin), or -1
func (l *Log) nextEmpty(from int) int {
	for i := 1; i <= len(l.blocks); i++ {
		b := (from + i) % len(l.blocks)
		if b != from && l.blocks[b].writePtr == 0 {
			return b
		}
	}
	return -1
}

package nand

import (
	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("nand")

// PageState is the state of a single flash page
type PageState uint8

const (
	PageFree PageState = iota
	PageValid
	PageInvalid
)

func (s PageState) String() string {
	switch s {
	case PageFree:
		return "free"
	case PageValid:
		return "valid"
	case PageInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Block holds the per-block counters
type Block struct {
	VPC        int
	IPC        int
	EraseCount uint32
}

// Array is the state of every page and block of the flash. It only does
// bookkeeping; the data itself is never stored.
//
// Thread-safety: Array is owned by the device worker and not safe for concurrent use.
type Array struct {
	params ftl.Params
	pages  []PageState
	blocks []Block
}

// NewArray creates an erased flash array
func NewArray(p ftl.Params) *Array {
	return &Array{
		params: p,
		pages:  make([]PageState, p.TotalPages),
		blocks: make([]Block, p.TotalBlocks),
	}
}

// State returns the state of the page at ppa
func (a *Array) State(ppa ftl.PPA) PageState {
	return a.pages[a.params.PageIndex(ppa)]
}

// Block returns a copy of the counters of the block containing ppa
func (a *Array) Block(ppa ftl.PPA) Block {
	return a.blocks[a.params.BlockIndex(ppa)]
}

// MarkValid programs a free page
func (a *Array) MarkValid(ppa ftl.PPA) {
	idx := a.params.PageIndex(ppa)
	if a.pages[idx] != PageFree {
		log.Panicf("mark valid: %s is %s, expected free", ppa, a.pages[idx])
	}
	a.pages[idx] = PageValid

	blk := &a.blocks[a.params.BlockIndex(ppa)]
	blk.VPC++
	if blk.VPC+blk.IPC > a.params.PagesPerBlock {
		log.Panicf("mark valid: block of %s over capacity (vpc %d, ipc %d)", ppa, blk.VPC, blk.IPC)
	}
}

// MarkInvalid retires a valid page
func (a *Array) MarkInvalid(ppa ftl.PPA) {
	idx := a.params.PageIndex(ppa)
	if a.pages[idx] != PageValid {
		log.Panicf("mark invalid: %s is %s, expected valid", ppa, a.pages[idx])
	}
	a.pages[idx] = PageInvalid

	blk := &a.blocks[a.params.BlockIndex(ppa)]
	blk.VPC--
	blk.IPC++
}

// Erase frees every page of the block containing ppa and bumps its erase counter
func (a *Array) Erase(ppa ftl.PPA) {
	bi := a.params.BlockIndex(ppa)
	first := bi * a.params.PagesPerBlock
	for i := first; i < first+a.params.PagesPerBlock; i++ {
		a.pages[i] = PageFree
	}
	blk := &a.blocks[bi]
	blk.VPC = 0
	blk.IPC = 0
	blk.EraseCount++
}

// EraseCounts returns the erase counter of every block
func (a *Array) EraseCounts() []uint32 {
	out := make([]uint32, len(a.blocks))
	for i := range a.blocks {
		out[i] = a.blocks[i].EraseCount
	}
	return out
}

// ValidPages counts valid pages over the whole array
func (a *Array) ValidPages() int {
	n := 0
	for i := range a.blocks {
		n += a.blocks[i].VPC
	}
	return n
}

// Package mapping holds the flat forward (LPN to PPA) and reverse (PPA to LPN) tables.
//
// The forward table is the write-back target of the metadata cache: it holds the
// current mapping of every LPN that is not dirty in a cache level. The reverse
// table is always current and is used by the garbage collector to find the
// owner of a valid page.
package mapping

import (
	"math"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
)

// InvalidLPN marks a physical page without an owner
const InvalidLPN uint64 = math.MaxUint64

// Table is the flat mapping store
//
// Thread-safety: Table is owned by the device worker and not safe for concurrent use.
type Table struct {
	params  ftl.Params
	forward []ftl.PPA
	reverse []uint64
}

// New creates a table with every LPN unmapped and every page unowned
func New(p ftl.Params) *Table {
	t := &Table{
		params:  p,
		forward: make([]ftl.PPA, p.TotalPages),
		reverse: make([]uint64, p.TotalPages),
	}
	for i := range t.forward {
		t.forward[i] = ftl.UnmappedPPA
		t.reverse[i] = InvalidLPN
	}
	return t
}

// Len returns the number of logical pages
func (t *Table) Len() uint64 { return uint64(len(t.forward)) }

// Get returns the flat forward mapping of lpn
func (t *Table) Get(lpn uint64) ftl.PPA {
	return t.forward[lpn]
}

// Set overwrites the flat forward mapping of lpn
func (t *Table) Set(lpn uint64, ppa ftl.PPA) {
	t.forward[lpn] = ppa
}

// Owner returns the LPN stored at ppa or InvalidLPN
func (t *Table) Owner(ppa ftl.PPA) uint64 {
	return t.reverse[t.params.PageIndex(ppa)]
}

// SetOwner records lpn as the owner of ppa
func (t *Table) SetOwner(ppa ftl.PPA, lpn uint64) {
	t.reverse[t.params.PageIndex(ppa)] = lpn
}

// ClearOwner removes the owner of ppa
func (t *Table) ClearOwner(ppa ftl.PPA) {
	t.reverse[t.params.PageIndex(ppa)] = InvalidLPN
}

// OwnedPages counts pages with an owner
func (t *Table) OwnedPages() int {
	n := 0
	for _, lpn := range t.reverse {
		if lpn != InvalidLPN {
			n++
		}
	}
	return n
}

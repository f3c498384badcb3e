package cache

import (
	"fmt"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/ftl/mapping"
	"github.com/ValentinKolb/ftlsim/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("cache")

// Directory is the GTD entry of one translation page
type Directory struct {
	Slot   Slot // newest copy on the translation log, NoSlot if never written there
	Cached bool // resident in the page cache
	Dirty  bool // modified since the last flush to the log
}

// Stats are the counters of the cache hierarchy
type Stats struct {
	EntryHits      uint64
	EntryMisses    uint64
	EntryEvictions uint64
	PageHits       uint64
	PageMisses     uint64
	PageEvictions  uint64
	WriteBacks     uint64 // dirty records flushed on eviction
	Log            LogStats
}

// Cache is the demand paged mapping table: an entry cache of single LPN
// mappings over a page cache of whole translation pages, backed by the
// translation log. The cache hierarchy is authoritative; the flat table
// receives every value a dirty record held when that record is flushed.
//
// Thread-safety: Cache is owned by the device worker and not safe for concurrent use.
type Cache struct {
	epp     uint64
	total   uint64
	flat    *mapping.Table
	entries *util.LRU[ftl.PPA]
	pages   *util.LRU[[]ftl.PPA]
	gtd     []Directory
	log     *Log
	stats   Stats
}

// New creates the cache hierarchy for cfg on top of the flat table
func New(cfg *ftl.Config, flat *mapping.Table) *Cache {
	p := cfg.Params()
	c := &Cache{
		epp:   uint64(p.EntriesPerTranslationPage),
		total: uint64(p.TotalPages),
		flat:  flat,
		gtd:   make([]Directory, p.TranslationPages),
	}
	for i := range c.gtd {
		c.gtd[i].Slot = NoSlot
	}
	c.entries = util.NewLRU[ftl.PPA](cfg.EntryCacheCapacity, cfg.EntryCacheBuckets, c.evictEntry)
	c.pages = util.NewLRU[[]ftl.PPA](cfg.PageCacheCapacity, cfg.PageCacheBuckets, c.evictPage)
	c.log = NewLog(cfg.TranslationLogBlocks, cfg.TranslationLogBlockPages, func(tvpn uint64, to Slot) {
		c.gtd[tvpn].Slot = to
	})
	return c
}

// --------------------------------------------------------------------------
// Lookup and update
// --------------------------------------------------------------------------

// Lookup resolves lpn through entry cache, page cache and translation log, in
// that order, filling the caches on the way. LPNs of translation pages that were
// never materialized are unmapped.
func (c *Cache) Lookup(lpn uint64) ftl.PPA {
	if ppa, ok := c.entries.Get(lpn); ok {
		c.stats.EntryHits++
		return ppa
	}
	c.stats.EntryMisses++

	tvpn, off := lpn/c.epp, lpn%c.epp
	d := &c.gtd[tvpn]

	var page []ftl.PPA
	switch {
	case d.Cached:
		p, ok := c.pages.Get(tvpn)
		if !ok {
			log.Panicf("gtd claims tvpn %d is cached but the page cache has no record", tvpn)
		}
		c.stats.PageHits++
		page = p
	case d.Slot != NoSlot:
		c.stats.PageMisses++
		page = c.log.Read(d.Slot)
		d.Cached = true
		c.pages.Put(tvpn, page, false)
	default:
		return ftl.UnmappedPPA
	}

	ppa := page[off]
	c.entries.Put(lpn, ppa, false)
	return ppa
}

// Set installs lpn -> ppa as the current mapping
func (c *Cache) Set(lpn uint64, ppa ftl.PPA) {
	tvpn, off := lpn/c.epp, lpn%c.epp
	d := &c.gtd[tvpn]

	switch {
	case d.Cached:
		// the page is the single current holder, drop any entry copy
		page, ok := c.pages.Get(tvpn)
		if !ok {
			log.Panicf("gtd claims tvpn %d is cached but the page cache has no record", tvpn)
		}
		page[off] = ppa
		c.pages.MarkDirty(tvpn)
		c.entries.Remove(lpn)
	case c.entries.Contains(lpn):
		c.entries.Put(lpn, ppa, true)
	default:
		var page []ftl.PPA
		if d.Slot != NoSlot {
			c.stats.PageMisses++
			page = c.log.Read(d.Slot)
		} else {
			page = c.newPage()
		}
		page[off] = ppa
		d.Cached = true
		c.pages.Put(tvpn, page, true)
	}
	d.Dirty = true
}

// Peek resolves lpn like Lookup without changing any cache state or counter
func (c *Cache) Peek(lpn uint64) ftl.PPA {
	if ppa, ok := c.entries.Peek(lpn); ok {
		return ppa
	}
	tvpn, off := lpn/c.epp, lpn%c.epp
	d := c.gtd[tvpn]
	if d.Cached {
		if page, ok := c.pages.Peek(tvpn); ok {
			return page[off]
		}
	}
	if d.Slot != NoSlot {
		return c.log.peek(d.Slot)[off]
	}
	return ftl.UnmappedPPA
}

// IsDirty reports whether a cache level may hold a value for lpn that the flat
// table has not seen yet
func (c *Cache) IsDirty(lpn uint64) bool {
	if c.entries.IsDirty(lpn) {
		return true
	}
	tvpn := lpn / c.epp
	return c.gtd[tvpn].Cached && c.pages.IsDirty(tvpn)
}

// --------------------------------------------------------------------------
// Eviction
// --------------------------------------------------------------------------

// evictEntry writes a dirty mapping back to its translation page, in place if
// the page is cached and by read-modify-write on the log otherwise
func (c *Cache) evictEntry(lpn uint64, ppa ftl.PPA, dirty bool) {
	c.stats.EntryEvictions++
	if !dirty {
		return
	}
	c.stats.WriteBacks++
	c.flat.Set(lpn, ppa)

	tvpn, off := lpn/c.epp, lpn%c.epp
	d := &c.gtd[tvpn]
	if d.Cached {
		page, _ := c.pages.Peek(tvpn)
		page[off] = ppa
		c.pages.MarkDirty(tvpn)
		d.Dirty = true
		return
	}
	if d.Slot == NoSlot {
		log.Panicf("dirty entry for lpn %d but tvpn %d was never materialized", lpn, tvpn)
	}
	page := c.log.Read(d.Slot)
	page[off] = ppa
	d.Slot = c.log.Write(tvpn, page, d.Slot)
}

// evictPage serializes a dirty translation page to the log and publishes its
// entries to the flat table
func (c *Cache) evictPage(tvpn uint64, page []ftl.PPA, dirty bool) {
	c.stats.PageEvictions++
	d := &c.gtd[tvpn]
	d.Cached = false
	if !dirty {
		return
	}
	c.stats.WriteBacks++
	d.Slot = c.log.Write(tvpn, page, d.Slot)
	d.Dirty = false

	base := tvpn * c.epp
	for i, ppa := range page {
		if lpn := base + uint64(i); lpn < c.total {
			c.flat.Set(lpn, ppa)
		}
	}
}

func (c *Cache) newPage() []ftl.PPA {
	page := make([]ftl.PPA, c.epp)
	for i := range page {
		page[i] = ftl.UnmappedPPA
	}
	return page
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// Directory returns the GTD entry of tvpn
func (c *Cache) Directory(tvpn uint64) Directory { return c.gtd[tvpn] }

// TranslationPages returns the number of GTD entries
func (c *Cache) TranslationPages() int { return len(c.gtd) }

// Log exposes the translation log
func (c *Cache) Log() *Log { return c.log }

// EntryLen and PageLen return the occupancy of the two cache levels
func (c *Cache) EntryLen() int { return c.entries.Len() }
func (c *Cache) PageLen() int  { return c.pages.Len() }

// EntryKeys and PageKeys list cached keys from most to least recently used
func (c *Cache) EntryKeys() []uint64 { return c.entries.Keys() }
func (c *Cache) PageKeys() []uint64  { return c.pages.Keys() }

// Stats returns the counters including the translation log
func (c *Cache) Stats() Stats {
	s := c.stats
	s.Log = c.log.Stats()
	return s
}

// Check verifies that the GTD agrees with the page cache and the log
func (c *Cache) Check() error {
	if c.entries.Len() > c.entries.Cap() || c.pages.Len() > c.pages.Cap() {
		return fmt.Errorf("cache over capacity: entries %d/%d, pages %d/%d",
			c.entries.Len(), c.entries.Cap(), c.pages.Len(), c.pages.Cap())
	}
	for tvpn := range c.gtd {
		d := c.gtd[tvpn]
		if d.Cached != c.pages.Contains(uint64(tvpn)) {
			return fmt.Errorf("tvpn %d: gtd cached=%t disagrees with page cache", tvpn, d.Cached)
		}
		if d.Slot == NoSlot {
			continue
		}
		owner, ok := c.log.Owner(d.Slot)
		if !ok || owner != uint64(tvpn) {
			return fmt.Errorf("tvpn %d: log slot %d holds tvpn %d (valid %t)", tvpn, d.Slot, owner, ok)
		}
	}
	if n := c.log.ValidPages(); n > len(c.gtd) {
		return fmt.Errorf("translation log holds %d valid pages for %d translation pages", n, len(c.gtd))
	}
	return nil
}

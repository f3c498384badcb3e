package ssd

import (
	"fmt"

	"github.com/ValentinKolb/ftlsim/lib/ftl/alloc"
	"github.com/ValentinKolb/ftlsim/lib/ftl/nand"
	"github.com/hashicorp/go-multierror"
)

// CheckConsistency walks the whole device and verifies that
//   - every LPN has at most one live mapping and no two LPNs share a page,
//   - the reverse map of every mapped page points back to its LPN,
//   - the flat table agrees with the cache for every LPN not dirty in a cache level,
//   - unit counters equal the sums of their block counters and fit the unit,
//   - the GTD agrees with the page cache and the translation log.
//
// It has no side effects and is meant for tests and debugging.
func (s *SSD) CheckConsistency() error {
	owned := make([]bool, s.params.TotalPages)
	mapped := 0

	for lpn := uint64(0); lpn < uint64(s.params.TotalPages); lpn++ {
		ppa := s.cache.Peek(lpn)
		if !ppa.IsMapped() {
			if !s.cache.IsDirty(lpn) && s.table.Get(lpn).IsMapped() {
				return fmt.Errorf("lpn %d: unmapped in cache but flat table holds %s", lpn, s.table.Get(lpn))
			}
			continue
		}
		if !s.params.InBounds(ppa) {
			return fmt.Errorf("lpn %d: %s is out of bounds", lpn, ppa)
		}
		idx := s.params.PageIndex(ppa)
		if owned[idx] {
			return fmt.Errorf("lpn %d: %s is mapped by another lpn", lpn, ppa)
		}
		owned[idx] = true
		if st := s.array.State(ppa); st != nand.PageValid {
			return fmt.Errorf("lpn %d: %s is %s", lpn, ppa, st)
		}
		if owner := s.table.Owner(ppa); owner != lpn {
			return fmt.Errorf("lpn %d: reverse map of %s points to %d", lpn, ppa, owner)
		}
		if !s.cache.IsDirty(lpn) && s.table.Get(lpn) != ppa {
			return fmt.Errorf("lpn %d: cache maps %s but clean flat table holds %s", lpn, ppa, s.table.Get(lpn))
		}
		mapped++
	}

	if valid := s.array.ValidPages(); valid != mapped {
		return fmt.Errorf("%d lpns mapped but %d pages valid", mapped, valid)
	}
	if owners := s.table.OwnedPages(); owners != mapped {
		return fmt.Errorf("%d lpns mapped but %d pages have an owner", mapped, owners)
	}

	// unit bookkeeping errors are collected so one report names every broken unit
	var errs *multierror.Error
	for id := 0; id < s.strategy.Units(); id++ {
		if err := s.checkUnit(s.strategy.Unit(id)); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := s.cache.Check(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func (s *SSD) checkUnit(u alloc.Unit) error {
	var vpc, ipc int
	for _, blk := range s.strategy.UnitBlocks(u.ID) {
		b := s.array.Block(blk)
		vpc += b.VPC
		ipc += b.IPC
	}
	if vpc != u.VPC || ipc != u.IPC {
		return fmt.Errorf("unit %d (%s): counters vpc %d ipc %d, blocks sum to vpc %d ipc %d",
			u.ID, u.State, u.VPC, u.IPC, vpc, ipc)
	}
	if u.VPC+u.IPC > s.strategy.PagesPerUnit() {
		return fmt.Errorf("unit %d: vpc %d + ipc %d exceed %d pages", u.ID, u.VPC, u.IPC, s.strategy.PagesPerUnit())
	}
	if u.State == alloc.UnitFree && u.VPC+u.IPC != 0 {
		return fmt.Errorf("free unit %d holds pages (vpc %d, ipc %d)", u.ID, u.VPC, u.IPC)
	}
	if u.State == alloc.UnitFull && u.VPC != s.strategy.PagesPerUnit() {
		return fmt.Errorf("full unit %d has only %d valid pages", u.ID, u.VPC)
	}
	return nil
}

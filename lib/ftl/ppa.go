package ftl

import (
	"fmt"
	"math"
)

// PPA is a packed physical page address.
//
// Layout (low to high bits): block 16 | page 16 | sector 8 | plane 8 | die 8 | channel 7 | reserved 1.
// The all-ones value is reserved for UnmappedPPA.
type PPA uint64

// UnmappedPPA denotes "no physical page"
const UnmappedPPA PPA = math.MaxUint64

const (
	blockBits   = 16
	pageBits    = 16
	sectorBits  = 8
	planeBits   = 8
	dieBits     = 8
	channelBits = 7

	pageShift    = blockBits
	sectorShift  = pageShift + pageBits
	planeShift   = sectorShift + sectorBits
	dieShift     = planeShift + planeBits
	channelShift = dieShift + dieBits

	// limits enforced by Config.Validate
	maxBlocks   = 1 << blockBits
	maxPages    = 1 << pageBits
	maxPlanes   = 1 << planeBits
	maxDies     = 1 << dieBits
	maxChannels = 1 << channelBits
)

// NewPPA packs a physical address. The sector is always 0, pages are the smallest mapped unit.
func NewPPA(ch, die, plane, block, page int) PPA {
	return PPA(uint64(block)&(maxBlocks-1) |
		(uint64(page)&(maxPages-1))<<pageShift |
		(uint64(plane)&(maxPlanes-1))<<planeShift |
		(uint64(die)&(maxDies-1))<<dieShift |
		(uint64(ch)&(maxChannels-1))<<channelShift)
}

func (p PPA) Block() int   { return int(uint64(p) & (maxBlocks - 1)) }
func (p PPA) Page() int    { return int(uint64(p) >> pageShift & (maxPages - 1)) }
func (p PPA) Sector() int  { return int(uint64(p) >> sectorShift & (1<<sectorBits - 1)) }
func (p PPA) Plane() int   { return int(uint64(p) >> planeShift & (maxPlanes - 1)) }
func (p PPA) Die() int     { return int(uint64(p) >> dieShift & (maxDies - 1)) }
func (p PPA) Channel() int { return int(uint64(p) >> channelShift & (maxChannels - 1)) }

// IsMapped reports whether p is a real address
func (p PPA) IsMapped() bool { return p != UnmappedPPA }

// WithPage returns p addressing page pg of the same block
func (p PPA) WithPage(pg int) PPA {
	return NewPPA(p.Channel(), p.Die(), p.Plane(), p.Block(), pg)
}

func (p PPA) String() string {
	if p == UnmappedPPA {
		return "PPA{unmapped}"
	}
	return fmt.Sprintf("PPA{ch:%d die:%d pl:%d blk:%d pg:%d}", p.Channel(), p.Die(), p.Plane(), p.Block(), p.Page())
}

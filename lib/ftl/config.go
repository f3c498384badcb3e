package ftl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Allocation strategies
// --------------------------------------------------------------------------

// StrategyKind selects the physical allocation strategy
type StrategyKind string

const (
	// StrategyLine stripes every unit across all dies of the device
	StrategyLine StrategyKind = "line"
	// StrategyPlacement scopes units to reclaim groups and selects them via placement keys
	StrategyPlacement StrategyKind = "placement"
)

// IsolationKind controls where GC moves data written through a placement handle
type IsolationKind string

const (
	// IsolationInitial relocates GC'd data into the reclaim group's shared GC unit
	IsolationInitial IsolationKind = "initial"
	// IsolationPersistent relocates GC'd data back into the handle's own open unit
	IsolationPersistent IsolationKind = "persistent"
)

// --------------------------------------------------------------------------
// Config
// --------------------------------------------------------------------------

// Config is the bootstrap configuration of a simulated device. It is supplied
// once and must not change afterwards; derived values are computed by Params.
type Config struct {
	Name string

	// geometry
	SectorSize     int
	SectorsPerPage int
	PagesPerBlock  int
	BlocksPerPlane int
	PlanesPerDie   int
	DiesPerChannel int
	Channels       int

	// timing
	PageReadLatency        time.Duration
	PageWriteLatency       time.Duration
	BlockEraseLatency      time.Duration
	ChannelTransferLatency time.Duration
	ModelChannelTransfer   bool // also serialize page transfers on the channel
	EnableGCDelay          bool // charge GC reads, writes and erases to the timing model

	// garbage collection, percent of used units
	GCThresholdPercent     float64
	GCThresholdPercentHigh float64

	// allocation
	Strategy           StrategyKind
	ReclaimGroupDegree int // dies per reclaim group
	PlacementHandles   int
	Isolation          IsolationKind

	// metadata cache
	EntryCacheCapacity        int
	EntryCacheBuckets         int
	PageCacheCapacity         int
	PageCacheBuckets          int
	EntriesPerTranslationPage int
	TranslationLogBlocks      int
	TranslationLogBlockPages  int
}

// DefaultConfig returns the configuration of a 16 GiB device with 8 channels of 8 dies
func DefaultConfig() Config {
	return Config{
		Name: "ftl-" + uuid.NewString()[:8],

		SectorSize:     512,
		SectorsPerPage: 8,
		PagesPerBlock:  256,
		BlocksPerPlane: 256,
		PlanesPerDie:   1,
		DiesPerChannel: 8,
		Channels:       8,

		PageReadLatency:        40 * time.Microsecond,
		PageWriteLatency:       200 * time.Microsecond,
		BlockEraseLatency:      2 * time.Millisecond,
		ChannelTransferLatency: 0,
		ModelChannelTransfer:   false,
		EnableGCDelay:          true,

		GCThresholdPercent:     75,
		GCThresholdPercentHigh: 95,

		Strategy:           StrategyLine,
		ReclaimGroupDegree: 8,
		PlacementHandles:   4,
		Isolation:          IsolationInitial,

		EntryCacheCapacity:        1024,
		EntryCacheBuckets:         10,
		PageCacheCapacity:         32,
		PageCacheBuckets:          5,
		EntriesPerTranslationPage: 512,
		TranslationLogBlocks:      64,
		TranslationLogBlockPages:  256,
	}
}

// Validate checks that the configuration describes a device the FTL can manage
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"sector size", c.SectorSize},
		{"sectors per page", c.SectorsPerPage},
		{"pages per block", c.PagesPerBlock},
		{"blocks per plane", c.BlocksPerPlane},
		{"planes per die", c.PlanesPerDie},
		{"dies per channel", c.DiesPerChannel},
		{"channels", c.Channels},
		{"entry cache capacity", c.EntryCacheCapacity},
		{"page cache capacity", c.PageCacheCapacity},
		{"entries per translation page", c.EntriesPerTranslationPage},
		{"translation log blocks", c.TranslationLogBlocks},
		{"translation log block pages", c.TranslationLogBlockPages},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %d", p.name, p.value)
		}
	}

	switch {
	case c.PagesPerBlock > maxPages:
		return fmt.Errorf("invalid config: pages per block exceeds %d", maxPages)
	case c.BlocksPerPlane > maxBlocks:
		return fmt.Errorf("invalid config: blocks per plane exceeds %d", maxBlocks)
	case c.PlanesPerDie > maxPlanes:
		return fmt.Errorf("invalid config: planes per die exceeds %d", maxPlanes)
	case c.DiesPerChannel > maxDies:
		return fmt.Errorf("invalid config: dies per channel exceeds %d", maxDies)
	case c.Channels >= maxChannels:
		return fmt.Errorf("invalid config: channels must be below %d", maxChannels)
	}

	if c.GCThresholdPercent <= 0 || c.GCThresholdPercent > 100 ||
		c.GCThresholdPercentHigh <= 0 || c.GCThresholdPercentHigh > 100 {
		return errors.New("invalid config: gc thresholds must be in (0, 100]")
	}
	if c.GCThresholdPercentHigh < c.GCThresholdPercent {
		return errors.New("invalid config: high gc threshold must not be below the normal threshold")
	}
	if c.PageReadLatency < 0 || c.PageWriteLatency < 0 || c.BlockEraseLatency < 0 || c.ChannelTransferLatency < 0 {
		return errors.New("invalid config: latencies must not be negative")
	}

	switch c.Strategy {
	case StrategyLine:
		if c.BlocksPerPlane < 2 {
			return errors.New("invalid config: line strategy needs at least two blocks per plane")
		}
	case StrategyPlacement:
		if c.ReclaimGroupDegree <= 0 || c.PlacementHandles <= 0 {
			return errors.New("invalid config: reclaim group degree and placement handles must be positive")
		}
		dies := c.Channels * c.DiesPerChannel
		if dies%c.ReclaimGroupDegree != 0 {
			return fmt.Errorf("invalid config: %d dies cannot be split into reclaim groups of %d", dies, c.ReclaimGroupDegree)
		}
		// every handle and the gc unit stay open, at least one unit must remain to rotate
		if c.BlocksPerPlane <= c.PlacementHandles+1 {
			return fmt.Errorf("invalid config: %d blocks per plane cannot back %d placement handles plus a gc unit",
				c.BlocksPerPlane, c.PlacementHandles)
		}
		if c.Isolation != IsolationInitial && c.Isolation != IsolationPersistent {
			return fmt.Errorf("invalid config: unknown isolation %q", c.Isolation)
		}
	default:
		return fmt.Errorf("invalid config: unknown strategy %q", c.Strategy)
	}

	// the translation log keeps one block in reserve for its own gc
	p := c.Params()
	logCapacity := (c.TranslationLogBlocks - 1) * c.TranslationLogBlockPages
	if c.TranslationLogBlocks < 2 || p.TranslationPages >= logCapacity {
		return fmt.Errorf("invalid config: translation log (%d blocks of %d pages) cannot hold %d translation pages",
			c.TranslationLogBlocks, c.TranslationLogBlockPages, p.TranslationPages)
	}
	return nil
}

// --------------------------------------------------------------------------
// Derived parameters
// --------------------------------------------------------------------------

// Params holds values derived from a Config
type Params struct {
	SectorsPerPage int
	PageSize       int
	PagesPerBlock  int
	BlocksPerPlane int
	PlanesPerDie   int
	DiesPerChannel int
	Channels       int

	PagesPerPlane   int
	PagesPerDie     int
	PagesPerChannel int
	TotalPages      int
	BlocksPerDie    int
	TotalBlocks     int
	TotalDies       int

	EntriesPerTranslationPage int
	TranslationPages          int
}

// Params derives totals from the configured geometry
func (c *Config) Params() Params {
	p := Params{
		SectorsPerPage:            c.SectorsPerPage,
		PageSize:                  c.SectorSize * c.SectorsPerPage,
		PagesPerBlock:             c.PagesPerBlock,
		BlocksPerPlane:            c.BlocksPerPlane,
		PlanesPerDie:              c.PlanesPerDie,
		DiesPerChannel:            c.DiesPerChannel,
		Channels:                  c.Channels,
		EntriesPerTranslationPage: c.EntriesPerTranslationPage,
	}
	p.PagesPerPlane = p.PagesPerBlock * p.BlocksPerPlane
	p.PagesPerDie = p.PagesPerPlane * p.PlanesPerDie
	p.PagesPerChannel = p.PagesPerDie * p.DiesPerChannel
	p.TotalPages = p.PagesPerChannel * p.Channels
	p.BlocksPerDie = p.BlocksPerPlane * p.PlanesPerDie
	p.TotalDies = p.DiesPerChannel * p.Channels
	p.TotalBlocks = p.BlocksPerDie * p.TotalDies
	if p.EntriesPerTranslationPage > 0 {
		p.TranslationPages = (p.TotalPages + p.EntriesPerTranslationPage - 1) / p.EntriesPerTranslationPage
	}
	return p
}

// DieIndex returns the flat index of the die addressed by ppa
func (p *Params) DieIndex(ppa PPA) int {
	return ppa.Channel()*p.DiesPerChannel + ppa.Die()
}

// BlockIndex returns the flat index of the block addressed by ppa
func (p *Params) BlockIndex(ppa PPA) int {
	return (p.DieIndex(ppa)*p.PlanesPerDie+ppa.Plane())*p.BlocksPerPlane + ppa.Block()
}

// PageIndex returns the flat index of the page addressed by ppa
func (p *Params) PageIndex(ppa PPA) int {
	return p.BlockIndex(ppa)*p.PagesPerBlock + ppa.Page()
}

// InBounds reports whether ppa addresses a page of this geometry
func (p *Params) InBounds(ppa PPA) bool {
	return ppa.IsMapped() &&
		ppa.Channel() < p.Channels &&
		ppa.Die() < p.DiesPerChannel &&
		ppa.Plane() < p.PlanesPerDie &&
		ppa.Block() < p.BlocksPerPlane &&
		ppa.Page() < p.PagesPerBlock
}

// GCThresholds converts the configured percentages into free unit counts for a pool
// of total units: GC runs when free units drop to or below the returned values.
func (c *Config) GCThresholds(total int) (normal, high int) {
	normal = int((1 - c.GCThresholdPercent/100) * float64(total))
	high = int((1 - c.GCThresholdPercentHigh/100) * float64(total))
	return normal, high
}

// String renders the configuration for humans
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	p := c.Params()

	addSection("Device")
	addField("Name", c.Name)
	addField("Capacity", fmt.Sprintf("%d pages (%d MiB)", p.TotalPages, int64(p.TotalPages)*int64(p.PageSize)>>20))
	addField("Page Size", fmt.Sprintf("%d B (%d sectors)", p.PageSize, c.SectorsPerPage))

	addSection("Geometry")
	addField("Channels", strconv.Itoa(c.Channels))
	addField("Dies/Channel", strconv.Itoa(c.DiesPerChannel))
	addField("Planes/Die", strconv.Itoa(c.PlanesPerDie))
	addField("Blocks/Plane", strconv.Itoa(c.BlocksPerPlane))
	addField("Pages/Block", strconv.Itoa(c.PagesPerBlock))

	addSection("Timing")
	addField("Page Read", c.PageReadLatency.String())
	addField("Page Write", c.PageWriteLatency.String())
	addField("Block Erase", c.BlockEraseLatency.String())
	addField("Channel Transfer", fmt.Sprintf("%s (modeled: %t)", c.ChannelTransferLatency, c.ModelChannelTransfer))
	addField("GC Delay", strconv.FormatBool(c.EnableGCDelay))

	addSection("Allocation")
	addField("Strategy", string(c.Strategy))
	if c.Strategy == StrategyPlacement {
		addField("Reclaim Group Degree", strconv.Itoa(c.ReclaimGroupDegree))
		addField("Placement Handles", strconv.Itoa(c.PlacementHandles))
		addField("Isolation", string(c.Isolation))
	}
	addField("GC Threshold", fmt.Sprintf("%.1f%% / %.1f%% (high)", c.GCThresholdPercent, c.GCThresholdPercentHigh))

	addSection("Metadata Cache")
	addField("Entry Cache", fmt.Sprintf("%d entries, %d buckets", c.EntryCacheCapacity, c.EntryCacheBuckets))
	addField("Page Cache", fmt.Sprintf("%d pages, %d buckets", c.PageCacheCapacity, c.PageCacheBuckets))
	addField("Entries/Page", strconv.Itoa(c.EntriesPerTranslationPage))
	addField("Translation Log", fmt.Sprintf("%d blocks x %d pages", c.TranslationLogBlocks, c.TranslationLogBlockPages))

	return sb.String()
}

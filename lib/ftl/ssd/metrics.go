package ssd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/util"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// deviceMetrics holds the counters of one device. Counters live in a private
// VictoriaMetrics set so several devices can coexist in one process; the
// distribution of relocated pages per GC pass is tracked in a go-metrics
// histogram.
type deviceMetrics struct {
	set *metrics.Set

	hostPagesRead    *metrics.Counter
	hostPagesWritten *metrics.Counter
	gcPagesWritten   *metrics.Counter
	forcedGC         *metrics.Counter
	backgroundGC     *metrics.Counter
	blocksErased     *metrics.Counter
	reallocEvents    *metrics.Counter

	registry         gometrics.Registry
	relocatedPerPass gometrics.Histogram
}

func newDeviceMetrics(s *SSD) *deviceMetrics {
	set := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`ftl_%s{device=%q}`, metric, s.cfg.Name)
	}

	m := &deviceMetrics{
		set:              set,
		hostPagesRead:    set.NewCounter(name("host_pages_read_total")),
		hostPagesWritten: set.NewCounter(name("host_pages_written_total")),
		gcPagesWritten:   set.NewCounter(name("gc_pages_written_total")),
		forcedGC:         set.NewCounter(name("gc_forced_passes_total")),
		backgroundGC:     set.NewCounter(name("gc_background_passes_total")),
		blocksErased:     set.NewCounter(name("blocks_erased_total")),
		reallocEvents:    set.NewCounter(name("realloc_events_total")),
		registry:         gometrics.NewRegistry(),
	}
	m.relocatedPerPass = gometrics.GetOrRegisterHistogram("gc.relocated_pages", m.registry,
		gometrics.NewExpDecaySample(1028, 0.015))

	set.NewGauge(name("write_amplification"), func() float64 {
		return ftl.WAF(m.hostPagesWritten.Get(), m.gcPagesWritten.Get())
	})
	set.NewGauge(name("victim_units"), func() float64 { return float64(s.strategy.VictimUnits()) })
	set.NewGauge(name("full_units"), func() float64 { return float64(s.strategy.FullUnits()) })
	for g := 0; g < s.strategy.Groups(); g++ {
		g := g
		set.NewGauge(fmt.Sprintf(`ftl_free_units{device=%q,group="%d"}`, s.cfg.Name, g), func() float64 {
			return float64(s.strategy.FreeUnits(g))
		})
	}
	set.NewGauge(name("entry_cache_hits_total"), func() float64 { return float64(s.cache.Stats().EntryHits) })
	set.NewGauge(name("entry_cache_misses_total"), func() float64 { return float64(s.cache.Stats().EntryMisses) })
	set.NewGauge(name("page_cache_hits_total"), func() float64 { return float64(s.cache.Stats().PageHits) })
	set.NewGauge(name("page_cache_misses_total"), func() float64 { return float64(s.cache.Stats().PageMisses) })
	set.NewGauge(name("entry_cache_evictions_total"), func() float64 { return float64(s.cache.Stats().EntryEvictions) })
	set.NewGauge(name("page_cache_evictions_total"), func() float64 { return float64(s.cache.Stats().PageEvictions) })
	set.NewGauge(name("translation_page_reads_total"), func() float64 { return float64(s.cache.Log().Stats().Reads) })
	set.NewGauge(name("translation_page_writes_total"), func() float64 { return float64(s.cache.Log().Stats().Writes) })
	set.NewGauge(name("translation_log_gcs_total"), func() float64 { return float64(s.cache.Log().Stats().GCs) })
	set.NewGauge(name("gc_end_time_ns"), func() float64 { return float64(s.timing.GCEndTime()) })
	return m
}

// WritePrometheus writes the device counters in Prometheus text format
func (s *SSD) WritePrometheus(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}

// WriteGCMetrics writes the GC registry (relocated pages per pass) as text, or
// as JSON when asJSON is set
func (s *SSD) WriteGCMetrics(w io.Writer, asJSON bool) {
	if asJSON {
		gometrics.WriteJSONOnce(s.metrics.registry, w)
		return
	}
	gometrics.WriteOnce(s.metrics.registry, w)
}

// RelocationHistogram returns the distribution of valid pages moved per GC pass
func (s *SSD) RelocationHistogram() gometrics.Histogram {
	return s.metrics.relocatedPerPass.Snapshot()
}

// Stats returns the current counters
func (s *SSD) Stats() ftl.Stats {
	m := s.metrics
	cs := s.cache.Stats()
	st := ftl.Stats{
		HostPagesRead:         m.hostPagesRead.Get(),
		HostPagesWritten:      m.hostPagesWritten.Get(),
		GCPagesWritten:        m.gcPagesWritten.Get(),
		ForcedGCPasses:        m.forcedGC.Get(),
		BackgroundGCPasses:    m.backgroundGC.Get(),
		BlocksErased:          m.blocksErased.Get(),
		EntryCacheHits:        cs.EntryHits,
		EntryCacheMisses:      cs.EntryMisses,
		PageCacheHits:         cs.PageHits,
		PageCacheMisses:       cs.PageMisses,
		TranslationPageReads:  cs.Log.Reads,
		TranslationPageWrites: cs.Log.Writes,
		TranslationLogGCs:     cs.Log.GCs,
	}
	st.WriteAmplification = ftl.WAF(st.HostPagesWritten, st.GCPagesWritten)
	return st
}

// Info returns a snapshot of the device state
func (s *SSD) Info() ftl.DeviceInfo {
	free := make([]int, s.strategy.Groups())
	for g := range free {
		free[g] = s.strategy.FreeUnits(g)
	}
	erase := util.NewDistributionStats(util.UintsToFloats(s.array.EraseCounts()))

	hist := s.metrics.relocatedPerPass.Snapshot()
	return ftl.DeviceInfo{
		Name:         s.cfg.Name,
		Strategy:     s.cfg.Strategy,
		TotalPages:   s.params.TotalPages,
		Units:        s.strategy.Units(),
		PagesPerUnit: s.strategy.PagesPerUnit(),
		FreeUnits:    free,
		VictimUnits:  s.strategy.VictimUnits(),
		FullUnits:    s.strategy.FullUnits(),
		MappedPages:  s.array.ValidPages(),
		EraseCounts: ftl.DistributionInfo{
			Min:     erase.Min,
			Max:     erase.Max,
			Mean:    erase.Mean,
			StdDev:  erase.StdDeviation,
			Quality: erase.DistributionQuality,
		},
		GCEndTime:      s.timing.GCEndTime(),
		EntryCacheSize: s.cache.EntryLen(),
		PageCacheSize:  s.cache.PageLen(),
		Metadata: map[string]string{
			"isolation":           string(s.cfg.Isolation),
			"translation_pages":   strconv.Itoa(s.cache.TranslationPages()),
			"translation_log":     s.cache.Log().String(),
			"gc_passes":           strconv.FormatInt(hist.Count(), 10),
			"gc_relocated_mean":   strconv.FormatFloat(hist.Mean(), 'f', 2, 64),
			"gc_relocated_p99":    strconv.FormatFloat(hist.Percentile(0.99), 'f', 0, 64),
			"realloc_events":      strconv.FormatUint(s.metrics.reallocEvents.Get(), 10),
			"write_amplification": strconv.FormatFloat(ftl.WAF(s.metrics.hostPagesWritten.Get(), s.metrics.gcPagesWritten.Get()), 'f', 3, 64),
		},
	}
}

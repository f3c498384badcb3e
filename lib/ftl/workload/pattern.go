package workload

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
)

// Pattern selects how LPNs are chosen
type Pattern string

const (
	PatternSequential Pattern = "sequential"
	PatternUniform    Pattern = "uniform"
	PatternHotspot    Pattern = "hotspot"
)

// Spec describes a synthetic workload
type Spec struct {
	Pattern Pattern
	// Requests is the total number of requests over all streams
	Requests int
	// Streams is the number of independent request streams, one per queue
	Streams int
	// Span is the number of LPNs the workload touches, starting at 0
	Span uint64
	// RequestPages is the length of every request in pages
	RequestPages uint64
	// ReadRatio is the fraction of requests that are reads
	ReadRatio float64
	// HotFraction of the span receives HotProbability of the accesses (hotspot only)
	HotFraction    float64
	HotProbability float64
	// InterArrival is the simulated time between two requests of one stream
	InterArrival time.Duration
	// Placement tags every write of stream i with handle i % PlacementHandles
	// of group (i / PlacementHandles) % PlacementGroups. Zero disables tagging.
	PlacementGroups  int
	PlacementHandles int
	Seed             int64
}

// DefaultSpec is a write heavy uniform workload
func DefaultSpec() Spec {
	return Spec{
		Pattern:        PatternUniform,
		Requests:       100_000,
		Streams:        1,
		Span:           1 << 16,
		RequestPages:   1,
		ReadRatio:      0.3,
		HotFraction:    0.1,
		HotProbability: 0.9,
		InterArrival:   20 * time.Microsecond,
		Seed:           1,
	}
}

// Validate checks the workload against a device of totalPages logical pages
func (s Spec) Validate(totalPages uint64) error {
	switch s.Pattern {
	case PatternSequential, PatternUniform, PatternHotspot:
	default:
		return fmt.Errorf("invalid workload: unknown pattern %q", s.Pattern)
	}
	if s.Requests < 0 || s.Streams < 1 {
		return fmt.Errorf("invalid workload: need requests >= 0 and streams >= 1, got %d and %d", s.Requests, s.Streams)
	}
	if s.RequestPages == 0 || s.Span < s.RequestPages {
		return fmt.Errorf("invalid workload: span %d must hold at least one request of %d pages", s.Span, s.RequestPages)
	}
	if s.Span > totalPages {
		return fmt.Errorf("invalid workload: span %d exceeds the device's %d pages", s.Span, totalPages)
	}
	if s.ReadRatio < 0 || s.ReadRatio > 1 {
		return fmt.Errorf("invalid workload: read ratio %f not in [0, 1]", s.ReadRatio)
	}
	if s.Pattern == PatternHotspot && (s.HotFraction <= 0 || s.HotFraction > 1 || s.HotProbability < 0 || s.HotProbability > 1) {
		return fmt.Errorf("invalid workload: hot fraction %f and probability %f must be in (0, 1] and [0, 1]", s.HotFraction, s.HotProbability)
	}
	if (s.PlacementGroups == 0) != (s.PlacementHandles == 0) {
		return fmt.Errorf("invalid workload: placement groups and handles must be set together")
	}
	return nil
}

// Generator produces the requests of one stream
type Generator struct {
	spec   Spec
	rng    *rand.Rand
	key    *ftl.PlacementKey
	slots  uint64 // number of request aligned start positions in the span
	next   uint64
	now    int64
	stream int
}

// NewGenerator creates the generator of stream i
func NewGenerator(spec Spec, stream int) *Generator {
	g := &Generator{
		spec:   spec,
		rng:    rand.New(rand.NewSource(spec.Seed + int64(stream))),
		slots:  spec.Span / spec.RequestPages,
		stream: stream,
	}
	if spec.PlacementHandles > 0 {
		g.key = &ftl.PlacementKey{
			Group:  (stream / spec.PlacementHandles) % spec.PlacementGroups,
			Handle: stream % spec.PlacementHandles,
		}
	}
	// sequential streams start spread over the span
	g.next = uint64(stream) * g.slots / uint64(spec.Streams)
	return g
}

// Next returns the next request of the stream
func (g *Generator) Next() ftl.Request {
	req := ftl.Request{
		Op:        ftl.OpWrite,
		StartLPN:  g.slot() * g.spec.RequestPages,
		Count:     g.spec.RequestPages,
		IssueTime: g.now,
	}
	if g.rng.Float64() < g.spec.ReadRatio {
		req.Op = ftl.OpRead
	} else {
		req.Placement = g.key
	}
	g.now += g.spec.InterArrival.Nanoseconds()
	return req
}

func (g *Generator) slot() uint64 {
	switch g.spec.Pattern {
	case PatternSequential:
		s := g.next
		g.next = (g.next + 1) % g.slots
		return s
	case PatternHotspot:
		hot := max(uint64(float64(g.slots)*g.spec.HotFraction), 1)
		if hot >= g.slots || g.rng.Float64() < g.spec.HotProbability {
			return uint64(g.rng.Int63n(int64(hot)))
		}
		return hot + uint64(g.rng.Int63n(int64(g.slots-hot)))
	default:
		return uint64(g.rng.Int63n(int64(g.slots)))
	}
}

package workload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("workload")

// sketchAccuracy is the relative accuracy of the latency quantiles
const sketchAccuracy = 0.01

// Submitter executes a request on one of its inbound queues and returns the
// simulated latency
type Submitter interface {
	Submit(ctx context.Context, queue int, req ftl.Request) (int64, error)
}

// Direct returns a Submitter that runs requests on dev itself, one at a time,
// with a background GC pass after each. The queue argument is ignored.
func Direct(dev ftl.Device) Submitter {
	return &directSubmitter{dev: dev}
}

type directSubmitter struct {
	mu  sync.Mutex
	dev ftl.Device
}

func (d *directSubmitter) Submit(_ context.Context, _ int, req ftl.Request) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	lat, err := d.dev.Submit(req)
	if err == nil {
		d.dev.BackgroundGC(req.IssueTime + lat)
	}
	return lat, err
}

// --------------------------------------------------------------------------
// Report
// --------------------------------------------------------------------------

// OpReport summarizes the simulated latencies of one operation kind
type OpReport struct {
	Count uint64
	Mean  time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Report is the outcome of one workload run
type Report struct {
	Spec   Spec
	Reads  OpReport
	Writes OpReport
	Errors uint64
	// SimulatedTime is the completion time of the last request
	SimulatedTime time.Duration
	// WallTime is how long the simulation took to run
	WallTime time.Duration
}

// Requests returns the number of completed requests
func (r *Report) Requests() uint64 { return r.Reads.Count + r.Writes.Count }

func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s workload, %d requests of %d pages over %d streams (span %d lpns, %.0f%% reads)\n",
		r.Spec.Pattern, r.Requests(), r.Spec.RequestPages, r.Spec.Streams, r.Spec.Span, r.Spec.ReadRatio*100)
	fmt.Fprintf(&sb, "%-8s%10s%12s%12s%12s%12s%12s\n", "op", "count", "mean", "p50", "p90", "p99", "max")
	for _, row := range []struct {
		name string
		op   OpReport
	}{{"read", r.Reads}, {"write", r.Writes}} {
		fmt.Fprintf(&sb, "%-8s%10d%12s%12s%12s%12s%12s\n", row.name, row.op.Count,
			row.op.Mean, row.op.P50, row.op.P90, row.op.P99, row.op.Max)
	}
	fmt.Fprintf(&sb, "errors: %d, simulated time: %s, wall time: %s", r.Errors, r.SimulatedTime, r.WallTime)
	return sb.String()
}

// recorder collects latencies of all streams
type recorder struct {
	mu     sync.Mutex
	reads  *ddsketch.DDSketch
	writes *ddsketch.DDSketch
	errors uint64
	end    int64
}

func newRecorder() (*recorder, error) {
	reads, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		return nil, err
	}
	writes, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		return nil, err
	}
	return &recorder{reads: reads, writes: writes}, nil
}

func (r *recorder) record(req ftl.Request, lat int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors++
		return
	}
	r.end = max(r.end, req.IssueTime+lat)
	r.observe(req.Op, float64(lat))
}

// observe adds a latency to the sketch of op; a value the sketch rejects is
// counted as an error. r.mu must be held.
func (r *recorder) observe(op ftl.OpCode, lat float64) {
	sketch := r.writes
	if op == ftl.OpRead {
		sketch = r.reads
	}
	if err := sketch.Add(lat); err != nil {
		log.Warningf("%s latency %v not recorded: %v", op, lat, err)
		r.errors++
	}
}

func summarize(s *ddsketch.DDSketch) OpReport {
	if s.IsEmpty() {
		return OpReport{}
	}
	rep := OpReport{
		Count: uint64(s.GetCount()),
		Mean:  time.Duration(s.GetSum() / s.GetCount()),
	}
	if qs, err := s.GetValuesAtQuantiles([]float64{0.5, 0.9, 0.99}); err == nil {
		rep.P50, rep.P90, rep.P99 = time.Duration(qs[0]), time.Duration(qs[1]), time.Duration(qs[2])
	}
	if m, err := s.GetMaxValue(); err == nil {
		rep.Max = time.Duration(m)
	}
	return rep
}

// --------------------------------------------------------------------------
// Runner
// --------------------------------------------------------------------------

// Run issues spec.Requests requests through sub, one goroutine per stream, and
// reports the observed latencies. Stream i submits to queue i. A request error
// is counted and the run continues; a canceled context stops the run.
func Run(ctx context.Context, sub Submitter, spec Spec) (*Report, error) {
	if spec.Streams < 1 || spec.RequestPages == 0 || spec.Span < spec.RequestPages {
		return nil, fmt.Errorf("invalid workload: streams %d, span %d, request pages %d", spec.Streams, spec.Span, spec.RequestPages)
	}
	rec, err := newRecorder()
	if err != nil {
		return nil, err
	}

	log.Infof("starting %s workload: %d requests on %d streams", spec.Pattern, spec.Requests, spec.Streams)
	start := time.Now()

	var wg sync.WaitGroup
	for stream := 0; stream < spec.Streams; stream++ {
		n := spec.Requests / spec.Streams
		if stream < spec.Requests%spec.Streams {
			n++
		}
		wg.Add(1)
		go func(stream, n int) {
			defer wg.Done()
			gen := NewGenerator(spec, stream)
			for i := 0; i < n; i++ {
				if ctx.Err() != nil {
					return
				}
				req := gen.Next()
				lat, err := sub.Submit(ctx, stream, req)
				if err != nil && ctx.Err() != nil {
					return
				}
				if err != nil {
					log.Warningf("stream %d: %s [%d, +%d) failed: %v", stream, req.Op, req.StartLPN, req.Count, err)
				}
				rec.record(req, lat, err)
			}
		}(stream, n)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &Report{
		Spec:          spec,
		Reads:         summarize(rec.reads),
		Writes:        summarize(rec.writes),
		Errors:        rec.errors,
		SimulatedTime: time.Duration(rec.end),
		WallTime:      time.Since(start),
	}
	log.Infof("workload finished after %s: %d requests, %d errors", rep.WallTime, rep.Requests(), rep.Errors)
	return rep, nil
}

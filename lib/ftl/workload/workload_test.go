package workload

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ValentinKolb/ftlsim/lib/dispatch"
	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/ftl/ssd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec(p Pattern) Spec {
	spec := DefaultSpec()
	spec.Pattern = p
	spec.Requests = 2000
	spec.Span = 64
	spec.ReadRatio = 0
	spec.InterArrival = time.Millisecond
	return spec
}

func testDevice(t *testing.T) *ssd.SSD {
	t.Helper()
	cfg := ftl.DefaultConfig()
	cfg.Channels, cfg.DiesPerChannel, cfg.BlocksPerPlane, cfg.PagesPerBlock = 2, 2, 16, 16
	cfg.ReclaimGroupDegree = 2
	cfg.PlacementHandles = 2
	dev, err := ssd.New(cfg)
	require.NoError(t, err)
	t.Cleanup(dev.Close)
	return dev
}

func TestSpec_Validate(t *testing.T) {
	assert.NoError(t, testSpec(PatternHotspot).Validate(1024))

	bad := testSpec(PatternUniform)
	bad.Span = 2048
	assert.Error(t, bad.Validate(1024))

	bad = testSpec("zipf")
	assert.Error(t, bad.Validate(1024))

	bad = testSpec(PatternUniform)
	bad.RequestPages = 128
	assert.Error(t, bad.Validate(1024))

	bad = testSpec(PatternUniform)
	bad.ReadRatio = 1.5
	assert.Error(t, bad.Validate(1024))

	bad = testSpec(PatternUniform)
	bad.PlacementGroups = 2
	assert.Error(t, bad.Validate(1024))
}

func TestGenerator_Sequential(t *testing.T) {
	spec := testSpec(PatternSequential)
	spec.Span = 8
	spec.RequestPages = 2
	gen := NewGenerator(spec, 0)

	var starts []uint64
	for i := 0; i < 6; i++ {
		req := gen.Next()
		assert.Equal(t, ftl.OpWrite, req.Op)
		assert.Equal(t, uint64(2), req.Count)
		assert.Equal(t, int64(i)*int64(time.Millisecond), req.IssueTime)
		starts = append(starts, req.StartLPN)
	}
	assert.Equal(t, []uint64{0, 2, 4, 6, 0, 2}, starts)
}

func TestGenerator_SequentialStreamsStartApart(t *testing.T) {
	spec := testSpec(PatternSequential)
	spec.Streams = 4
	assert.Equal(t, uint64(0), NewGenerator(spec, 0).Next().StartLPN)
	assert.Equal(t, uint64(32), NewGenerator(spec, 2).Next().StartLPN)
}

func TestGenerator_UniformStaysInSpan(t *testing.T) {
	spec := testSpec(PatternUniform)
	spec.RequestPages = 4
	gen := NewGenerator(spec, 3)
	for i := 0; i < 1000; i++ {
		req := gen.Next()
		assert.LessOrEqual(t, req.StartLPN+req.Count, spec.Span)
		assert.Zero(t, req.StartLPN%4)
	}
}

func TestGenerator_HotspotConcentrates(t *testing.T) {
	spec := testSpec(PatternHotspot)
	spec.Span = 1000
	gen := NewGenerator(spec, 0)

	hot := 0
	const n = 10_000
	for i := 0; i < n; i++ {
		if gen.Next().StartLPN < 100 {
			hot++
		}
	}
	// 90% hot plus the cold draws that never land there
	assert.InDelta(t, 0.9, float64(hot)/n, 0.02)
}

func TestGenerator_ReadRatioAndPlacement(t *testing.T) {
	spec := testSpec(PatternUniform)
	spec.ReadRatio = 0.25
	spec.PlacementGroups = 2
	spec.PlacementHandles = 2
	gen := NewGenerator(spec, 3)

	reads := 0
	const n = 4000
	for i := 0; i < n; i++ {
		req := gen.Next()
		if req.Op == ftl.OpRead {
			reads++
			assert.Nil(t, req.Placement)
			continue
		}
		require.NotNil(t, req.Placement)
		assert.Equal(t, ftl.PlacementKey{Group: 1, Handle: 1}, *req.Placement)
	}
	assert.InDelta(t, 0.25, float64(reads)/n, 0.03)
}

func TestRun_Direct(t *testing.T) {
	dev := testDevice(t)
	spec := testSpec(PatternUniform)

	rep, err := Run(context.Background(), Direct(dev), spec)
	require.NoError(t, err)

	assert.Equal(t, uint64(2000), rep.Writes.Count)
	assert.Equal(t, uint64(0), rep.Reads.Count)
	assert.Equal(t, uint64(0), rep.Errors)
	// requests are far enough apart that most writes never wait for their die
	assert.InEpsilon(t, float64(200*time.Microsecond), float64(rep.Writes.P50), 0.02)
	assert.GreaterOrEqual(t, rep.SimulatedTime, 1999*time.Millisecond)
	assert.Contains(t, rep.String(), "uniform workload, 2000 requests")

	st := dev.Stats()
	assert.Equal(t, uint64(2000), st.HostPagesWritten)
	assert.Greater(t, st.BlocksErased, uint64(0))
	assert.NoError(t, dev.CheckConsistency())
}

func TestRun_ThroughDispatcher(t *testing.T) {
	dev := testDevice(t)
	spec := testSpec(PatternHotspot)
	spec.Streams = 3
	spec.ReadRatio = 0.3

	d, err := dispatch.New(dev, dispatch.Config{Queues: spec.Streams})
	require.NoError(t, err)
	d.Start()

	rep, err := Run(context.Background(), d, spec)
	require.NoError(t, err)
	d.Close()

	assert.Equal(t, uint64(2000), rep.Requests())
	assert.Equal(t, uint64(2000), d.Processed())
	assert.Equal(t, dev.Stats().HostPagesWritten, rep.Writes.Count)
	assert.NoError(t, dev.CheckConsistency())
}

func TestRun_PlacementStreams(t *testing.T) {
	cfg := ftl.DefaultConfig()
	cfg.Channels, cfg.DiesPerChannel, cfg.BlocksPerPlane, cfg.PagesPerBlock = 2, 2, 16, 16
	cfg.Strategy = ftl.StrategyPlacement
	cfg.ReclaimGroupDegree = 2
	cfg.PlacementHandles = 2
	dev, err := ssd.New(cfg)
	require.NoError(t, err)
	defer dev.Close()

	spec := testSpec(PatternUniform)
	spec.Span = 256
	spec.Streams = 4
	spec.PlacementGroups = 2
	spec.PlacementHandles = 2

	rep, err := Run(context.Background(), Direct(dev), spec)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rep.Errors)
	assert.NotEmpty(t, dev.Events())
	assert.NoError(t, dev.CheckConsistency())
}

func TestRun_Canceled(t *testing.T) {
	dev := testDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Direct(dev), testSpec(PatternUniform))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorder_RejectedLatencyCountsAsError(t *testing.T) {
	rec, err := newRecorder()
	require.NoError(t, err)

	rec.record(ftl.Request{Op: ftl.OpWrite, IssueTime: 10, Count: 1}, 200, nil)
	rec.mu.Lock()
	rec.observe(ftl.OpWrite, math.Inf(1))
	rec.mu.Unlock()

	assert.Equal(t, uint64(1), rec.errors)
	assert.Equal(t, uint64(1), summarize(rec.writes).Count)
	assert.True(t, rec.reads.IsEmpty())
}

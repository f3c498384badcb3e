package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/ftl/ssd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDevice remembers the order of submitted requests
type recordingDevice struct {
	mu          sync.Mutex
	order       []uint64
	backgroundN int
	block       chan struct{}
}

func (r *recordingDevice) Submit(req ftl.Request) (int64, error) {
	if r.block != nil {
		<-r.block
	}
	if req.Op != ftl.OpRead && req.Op != ftl.OpWrite && req.Op != ftl.OpNoOp {
		return 0, ftl.NewError(ftl.RetCUnsupportedOperation, "op %s", req.Op)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, req.StartLPN)
	return int64(req.Count) * 100, nil
}

func (r *recordingDevice) Read(uint64, uint64, int64) (int64, error) { return 0, nil }
func (r *recordingDevice) Write(uint64, uint64, int64, *ftl.PlacementKey) (int64, error) {
	return 0, nil
}
func (r *recordingDevice) BackgroundGC(int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backgroundN++
}
func (r *recordingDevice) CollectGarbage(bool, int64) int { return 0 }
func (r *recordingDevice) CheckConsistency() error        { return nil }
func (r *recordingDevice) Stats() ftl.Stats               { return ftl.Stats{} }
func (r *recordingDevice) Info() ftl.DeviceInfo           { return ftl.DeviceInfo{} }
func (r *recordingDevice) Close()                         {}

func TestNew_RejectsZeroQueues(t *testing.T) {
	_, err := New(&recordingDevice{}, Config{})
	assert.True(t, ftl.IsCode(err, ftl.RetCInvalidOperation))
}

func TestDispatcher_RoundRobin(t *testing.T) {
	dev := &recordingDevice{}
	d, err := New(dev, Config{Queues: 3})
	require.NoError(t, err)

	// fill the queues before the worker runs
	push := func(q int, lpns ...uint64) {
		for _, lpn := range lpns {
			d.queues[q].Push(&job{id: lpn + 1000, req: ftl.Request{Op: ftl.OpNoOp, StartLPN: lpn}})
		}
	}
	push(0, 0, 1, 2)
	push(1, 10, 11)
	push(2, 20)

	d.Start()
	d.Close()

	assert.Equal(t, []uint64{0, 10, 20, 1, 11, 2}, dev.order)
	assert.Equal(t, uint64(6), d.Processed())
	assert.Equal(t, 6, dev.backgroundN)
}

func TestDispatcher_SubmitReturnsLatency(t *testing.T) {
	dev := &recordingDevice{}
	d, err := New(dev, Config{Queues: 2})
	require.NoError(t, err)
	d.Start()
	defer d.Close()

	lat, err := d.Submit(context.Background(), 1, ftl.Request{Op: ftl.OpWrite, StartLPN: 5, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(300), lat)

	_, err = d.Submit(context.Background(), 0, ftl.Request{Op: ftl.OpCode(99)})
	assert.True(t, ftl.IsCode(err, ftl.RetCUnsupportedOperation), "got %v", err)

	_, err = d.Submit(context.Background(), 2, ftl.Request{Op: ftl.OpNoOp})
	assert.True(t, ftl.IsCode(err, ftl.RetCInvalidOperation), "got %v", err)
}

func TestDispatcher_BackgroundGCCanBeDisabled(t *testing.T) {
	dev := &recordingDevice{}
	d, err := New(dev, Config{Queues: 1, DisableBackgroundGC: true})
	require.NoError(t, err)
	d.Start()

	_, err = d.Submit(context.Background(), 0, ftl.Request{Op: ftl.OpNoOp})
	require.NoError(t, err)
	d.Close()
	assert.Equal(t, 0, dev.backgroundN)
}

func TestDispatcher_ContextCanceled(t *testing.T) {
	dev := &recordingDevice{block: make(chan struct{})}
	d, err := New(dev, Config{Queues: 1})
	require.NoError(t, err)
	d.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Submit(ctx, 0, ftl.Request{Op: ftl.OpNoOp})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the abandoned request still runs once the device is unblocked
	close(dev.block)
	d.Close()
	assert.Equal(t, uint64(1), d.Processed())
}

func TestDispatcher_SubmitAfterClose(t *testing.T) {
	d, err := New(&recordingDevice{}, Config{Queues: 1})
	require.NoError(t, err)
	d.Close()
	d.Close()

	_, err = d.Submit(context.Background(), 0, ftl.Request{Op: ftl.OpNoOp})
	assert.True(t, ftl.IsCode(err, ftl.RetCInvalidOperation), "got %v", err)
}

func TestDispatcher_ConcurrentProducers(t *testing.T) {
	cfg := ftl.DefaultConfig()
	cfg.Channels, cfg.DiesPerChannel, cfg.BlocksPerPlane, cfg.PagesPerBlock = 2, 2, 16, 4
	dev, err := ssd.New(cfg)
	require.NoError(t, err)
	defer dev.Close()

	d, err := New(dev, Config{Queues: 4})
	require.NoError(t, err)
	d.Start()

	const perProducer = 200
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				op := ftl.OpWrite
				if i%3 == 0 {
					op = ftl.OpRead
				}
				req := ftl.Request{
					Op:        op,
					StartLPN:  uint64(p*8 + i%8),
					Count:     1,
					IssueTime: int64(i) * 10_000,
				}
				if _, err := d.Submit(context.Background(), p, req); err != nil {
					t.Errorf("producer %d request %d: %v", p, i, err)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	d.Close()

	assert.Equal(t, uint64(4*perProducer), d.Processed())
	assert.Equal(t, 32, dev.Info().MappedPages)
	assert.NoError(t, dev.CheckConsistency())
}

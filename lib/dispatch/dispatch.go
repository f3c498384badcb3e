package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/ValentinKolb/ftlsim/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("dispatch")

// Config controls the dispatcher
type Config struct {
	// Queues is the number of inbound queues (at least 1)
	Queues int
	// DisableBackgroundGC skips the GC pass after each request
	DisableBackgroundGC bool
}

type job struct {
	id  uint64
	req ftl.Request
}

type completion struct {
	latency int64
	err     error
}

// Dispatcher serializes requests from any number of goroutines onto one device
type Dispatcher struct {
	dev     ftl.Device
	cfg     Config
	queues  []*util.LockFreeMPSC[job]
	notify  chan struct{}
	pending *xsync.MapOf[uint64, chan completion]

	nextID    atomic.Uint64
	processed atomic.Uint64
	closed    atomic.Bool

	next      int // round robin position, owned by the worker
	startOnce sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// New creates a dispatcher for dev. The worker does not run until Start.
func New(dev ftl.Device, cfg Config) (*Dispatcher, error) {
	if cfg.Queues < 1 {
		return nil, ftl.NewError(ftl.RetCInvalidOperation, "dispatcher needs at least one queue, got %d", cfg.Queues)
	}
	d := &Dispatcher{
		dev:     dev,
		cfg:     cfg,
		queues:  make([]*util.LockFreeMPSC[job], cfg.Queues),
		notify:  make(chan struct{}, 1),
		pending: xsync.NewMapOf[uint64, chan completion](),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := range d.queues {
		d.queues[i] = util.NewLockFreeMPSC[job](d.notify)
	}
	return d, nil
}

// Start launches the worker
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		log.Infof("dispatcher started with %d queues", len(d.queues))
		go d.run()
	})
}

// Queues returns the number of inbound queues
func (d *Dispatcher) Queues() int { return len(d.queues) }

// Processed returns the number of requests the worker executed
func (d *Dispatcher) Processed() uint64 { return d.processed.Load() }

// Submit enqueues req on the given queue and waits for its latency.
// A canceled context abandons the wait; the request itself still executes.
func (d *Dispatcher) Submit(ctx context.Context, queue int, req ftl.Request) (int64, error) {
	if d.closed.Load() {
		return 0, ftl.NewError(ftl.RetCInvalidOperation, "dispatcher is closed")
	}
	if queue < 0 || queue >= len(d.queues) {
		return 0, ftl.NewError(ftl.RetCInvalidOperation, "queue %d out of range [0, %d)", queue, len(d.queues))
	}

	id := d.nextID.Add(1)
	respCh := make(chan completion, 1)
	d.pending.Store(id, respCh)
	defer d.pending.Delete(id)

	if !d.queues[queue].Push(&job{id: id, req: req}) {
		return 0, ftl.NewError(ftl.RetCInvalidOperation, "dispatcher is closed")
	}

	select {
	case c := <-respCh:
		return c.latency, c.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops accepting requests, lets the worker finish what is queued and
// waits for it. Requests that could not be executed fail. The device is not closed.
func (d *Dispatcher) Close() {
	if d.closed.Swap(true) {
		return
	}
	for _, q := range d.queues {
		q.Close()
	}
	close(d.stopCh)
	d.Start() // a never started worker still has to drain
	<-d.done

	d.pending.Range(func(id uint64, _ chan completion) bool {
		if ch, ok := d.pending.LoadAndDelete(id); ok {
			ch <- completion{err: ftl.NewError(ftl.RetCInvalidOperation, "dispatcher closed before request %d ran", id)}
		}
		return true
	})
	log.Infof("dispatcher closed after %d requests", d.processed.Load())
}

// --------------------------------------------------------------------------
// Worker
// --------------------------------------------------------------------------

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		for d.sweep() > 0 {
		}
		select {
		case <-d.notify:
		case <-d.stopCh:
			for d.sweep() > 0 {
			}
			return
		}
	}
}

// sweep takes at most one job from every queue, starting after the queue
// served last, and returns the number of jobs executed
func (d *Dispatcher) sweep() int {
	n, start := 0, d.next
	for i := 0; i < len(d.queues); i++ {
		q := (start + i) % len(d.queues)
		j, ok := d.queues[q].TryPop()
		if !ok {
			continue
		}
		d.execute(j)
		d.next = (q + 1) % len(d.queues)
		n++
	}
	return n
}

func (d *Dispatcher) execute(j *job) {
	lat, err := d.dev.Submit(j.req)
	if err != nil {
		log.Debugf("request %d (%s [%d, +%d)) failed: %v", j.id, j.req.Op, j.req.StartLPN, j.req.Count, err)
	} else if !d.cfg.DisableBackgroundGC {
		d.dev.BackgroundGC(j.req.IssueTime + lat)
	}
	d.processed.Add(1)

	if ch, ok := d.pending.LoadAndDelete(j.id); ok {
		ch <- completion{latency: lat, err: err}
	} else {
		log.Debugf("request %d completed after its submitter left", j.id)
	}
}

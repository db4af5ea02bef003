//go:build unix

// File: transport/shm/coordinator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Coordinator owns the registry, the baton and the polling goroutine for
// one host process.

package shm

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-shm/adapters"
	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/internal/concurrency"
	"github.com/momentics/hioload-shm/segment"
)

// ConfigBackoffMax is the control config key retuning the spin backoff.
// Values may be a time.Duration, a duration string or an int of
// microseconds.
const ConfigBackoffMax = "shm.spin_backoff_max"

// Coordinator hands shared-memory connections between the host's main
// loop and a polling goroutine.
type Coordinator struct {
	host       api.Host
	mapper     segment.Mapper
	spawn      func(fn func()) error
	probe      func(fd int) error
	ctrl       api.Control
	log        *slog.Logger
	backoffMax time.Duration
	pollerCPU  int

	baton   *concurrency.Baton
	reg     *Registry
	current atomic.Pointer[Record]

	closed  atomic.Bool // written under the registry lock
	running atomic.Bool // written under the registry lock
	loops   sync.WaitGroup
	nextID  atomic.Uint64

	loopStarts atomic.Int64
	teardowns  atomic.Int64
	opens      atomic.Int64
	scans      atomic.Int64
	bytesIn    atomic.Int64
	bytesOut   atomic.Int64
}

// Stats is a point-in-time view of the coordinator.
type Stats struct {
	Connections int
	LoopRunning bool
	LoopStarts  int64
	Teardowns   int64
	Opens       int64
	Scans       int64
	BytesIn     int64
	BytesOut    int64
}

// NewCoordinator builds a coordinator for host. The calling goroutine is
// taken to be the host's main loop and holds the baton on return.
func NewCoordinator(host api.Host, opts ...Option) *Coordinator {
	c := &Coordinator{
		host:   host,
		mapper: segment.DirMapper{Dir: segment.DefaultDir},
		spawn: func(fn func()) error {
			go fn()
			return nil
		},
		probe:     SocketLiveness,
		pollerCPU: -1,
		reg:       NewRegistry(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.ctrl == nil {
		c.ctrl = adapters.NewControlAdapter()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "shm")
	c.baton = concurrency.NewBaton(c.backoffMax)
	c.baton.AcquirePriority()
	c.registerProbes()
	c.ctrl.OnReload(c.reload)
	return c
}

// BeforeWait must be called by the main loop right before it blocks on
// external events. It lets the polling goroutine run.
func (c *Coordinator) BeforeWait() {
	c.baton.Release()
}

// AfterWait must be called by the main loop as soon as its wait returns.
// It blocks until the polling goroutine finishes its current scan.
func (c *Coordinator) AfterWait() {
	c.baton.AcquirePriority()
}

// Current returns the record whose host hooks are running right now, or
// nil. Only the polling goroutine ever sees a non-nil value.
func (c *Coordinator) Current() *Record {
	return c.current.Load()
}

// Len returns the number of open sessions. It never blocks, so host hooks
// running on the polling goroutine may call it.
func (c *Coordinator) Len() int {
	return c.reg.Count()
}

// Running reports whether a polling goroutine is active.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// Stats returns counters and gauges.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Connections: c.Len(),
		LoopRunning: c.running.Load(),
		LoopStarts:  c.loopStarts.Load(),
		Teardowns:   c.teardowns.Load(),
		Opens:       c.opens.Load(),
		Scans:       c.scans.Load(),
		BytesIn:     c.bytesIn.Load(),
		BytesOut:    c.bytesOut.Load(),
	}
}

// Shutdown closes every session and stops the polling goroutine. It must
// be called from the main loop while it holds the baton, and returns with
// the baton still held. Later opens fail with api.ErrClosed.
func (c *Coordinator) Shutdown() {
	c.reg.Lock()
	if c.closed.Swap(true) {
		c.reg.Unlock()
		return
	}
	recs := c.reg.Drain()
	c.reg.Unlock()

	for _, rec := range recs {
		c.teardown(rec, api.ErrClosed)
	}

	// The loop needs the baton once more to observe the empty registry.
	c.baton.Release()
	c.loops.Wait()
	c.baton.AcquirePriority()
	c.log.Info("coordinator shut down", "closed_sessions", len(recs))
}

// teardown releases everything a record holds. The record must already
// be out of the registry.
func (c *Coordinator) teardown(rec *Record, reason error) {
	c.host.DestroyConnState(rec.state)
	if err := rec.seg.Unmap(); err != nil {
		c.log.Warn("unmap failed", "session", rec.id, "segment", rec.seg.Name(), "error", err)
	}
	closeFD(rec.fd)
	c.teardowns.Add(1)
	c.log.Debug("session closed", "session", rec.id, "segment", rec.seg.Name(), "reason", reason)
}

func (c *Coordinator) registerProbes() {
	c.ctrl.RegisterDebugProbe("shm.connections", func() any { return c.Len() })
	c.ctrl.RegisterDebugProbe("shm.mappings", func() any { return segment.Mapped() })
	c.ctrl.RegisterDebugProbe("shm.loop_running", func() any { return c.running.Load() })
	c.ctrl.RegisterDebugProbe("shm.loop_starts", func() any { return c.loopStarts.Load() })
	c.ctrl.RegisterDebugProbe("shm.teardowns", func() any { return c.teardowns.Load() })
	c.ctrl.RegisterDebugProbe("shm.bytes_in", func() any { return c.bytesIn.Load() })
	c.ctrl.RegisterDebugProbe("shm.bytes_out", func() any { return c.bytesOut.Load() })
}

// reload applies tunables from the control config.
func (c *Coordinator) reload() {
	v, ok := c.ctrl.GetConfig()[ConfigBackoffMax]
	if !ok {
		return
	}
	var d time.Duration
	switch x := v.(type) {
	case time.Duration:
		d = x
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			c.log.Warn("ignoring bad config value", "key", ConfigBackoffMax, "value", x)
			return
		}
		d = parsed
	case int:
		d = time.Duration(x) * time.Microsecond
	default:
		c.log.Warn("ignoring bad config value", "key", ConfigBackoffMax, "value", v)
		return
	}
	c.baton.SetBackoffMax(d)
	c.log.Info("spin backoff retuned", "max", c.baton.BackoffMax())
}

func closeFD(fd int) {
	if fd >= 0 {
		_ = unix.Close(fd)
	}
}

//go:build unix

package shm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/internal/concurrency"
	"github.com/momentics/hioload-shm/segment"
)

// Record is one shared-memory client session.
type Record struct {
	id     uint64
	fd     int // liveness descriptor, polled only
	seg    *segment.Segment
	state  api.ConnState
	stream *shimStream
}

// Registry keeps records in insertion order. Every method except the
// lock helpers requires the caller to hold the registry lock.
type Registry struct {
	mu   sync.Mutex
	q    *queue.Queue
	size atomic.Int64 // mirrors q.Length() for lock-free readers
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{q: queue.New()}
}

// Lock blocks until the registry lock is held.
func (r *Registry) Lock() { r.mu.Lock() }

// SpinLock polls for the registry lock instead of parking.
func (r *Registry) SpinLock(max time.Duration) { concurrency.SpinLock(&r.mu, max) }

// Unlock releases the registry lock.
func (r *Registry) Unlock() { r.mu.Unlock() }

// Add appends rec and returns the new length.
func (r *Registry) Add(rec *Record) int {
	r.q.Add(rec)
	r.size.Add(1)
	return r.q.Length()
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return r.q.Length()
}

// Count is Len without the lock requirement. It may be stale by the time
// the caller looks at it.
func (r *Registry) Count() int {
	return int(r.size.Load())
}

// Scan visits every record once in order and keeps those for which fn
// returns true.
func (r *Registry) Scan(fn func(*Record) bool) {
	for n := r.q.Length(); n > 0; n-- {
		rec := r.q.Remove().(*Record)
		if fn(rec) {
			r.q.Add(rec)
		} else {
			r.size.Add(-1)
		}
	}
}

// Remove drops rec, reporting whether it was present.
func (r *Registry) Remove(rec *Record) bool {
	found := false
	r.Scan(func(x *Record) bool {
		if x == rec {
			found = true
			return false
		}
		return true
	})
	return found
}

// Drain removes and returns every record in order.
func (r *Registry) Drain() []*Record {
	out := make([]*Record, 0, r.q.Length())
	for r.q.Length() > 0 {
		out = append(out, r.q.Remove().(*Record))
	}
	r.size.Store(0)
	return out
}

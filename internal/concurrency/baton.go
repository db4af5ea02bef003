// File: internal/concurrency/baton.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Baton is a mutex used purely as a turn-taking token between a host main
// loop and a polling goroutine. Whoever holds it may touch per-connection
// host state; nobody else may.

package concurrency

import (
	"sync"
	"sync/atomic"
	"time"
)

// Baton alternates ownership between exactly two actors.
type Baton struct {
	mu       sync.Mutex
	priority atomic.Int32
	max      atomic.Int64
}

// NewBaton returns an unheld baton whose spin backoff sleeps at most max.
func NewBaton(max time.Duration) *Baton {
	b := &Baton{}
	b.SetBackoffMax(max)
	return b
}

// SetBackoffMax retunes the spin backoff cap. Safe at any time.
func (b *Baton) SetBackoffMax(d time.Duration) {
	if d <= 0 {
		d = DefaultBackoffMax
	}
	b.max.Store(int64(d))
}

// BackoffMax returns the current spin backoff cap.
func (b *Baton) BackoffMax() time.Duration {
	return time.Duration(b.max.Load())
}

// Acquire spins until the baton is taken. It stands aside while a
// priority waiter is spinning so the main loop is never starved.
func (b *Baton) Acquire() {
	bo := Backoff{Max: b.BackoffMax()}
	for {
		if b.priority.Load() == 0 && b.mu.TryLock() {
			return
		}
		bo.Wait()
	}
}

// AcquirePriority spins until the baton is taken, announcing itself so
// plain Acquire callers back off.
func (b *Baton) AcquirePriority() {
	b.priority.Add(1)
	defer b.priority.Add(-1)
	SpinLock(&b.mu, b.BackoffMax())
}

// Release hands the baton back. It may be called from a goroutine other
// than the one that acquired it.
func (b *Baton) Release() {
	b.mu.Unlock()
}

// File: internal/concurrency/backoff.go
// Package concurrency implements bounded spin-wait backoff.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"
	"time"
)

// DefaultBackoffMax caps the sleep phase of a Backoff.
const DefaultBackoffMax = 100 * time.Microsecond

const (
	spinRounds  = 64
	yieldRounds = 64
)

// Backoff escalates from busy spinning, to yielding the processor, to
// short sleeps doubling up to Max. The zero value is ready to use.
type Backoff struct {
	Max   time.Duration
	round int
	sleep time.Duration
}

// Wait performs one backoff step.
func (b *Backoff) Wait() {
	switch {
	case b.round < spinRounds:
		b.round++
	case b.round < spinRounds+yieldRounds:
		b.round++
		runtime.Gosched()
	default:
		max := b.Max
		if max <= 0 {
			max = DefaultBackoffMax
		}
		if b.sleep == 0 {
			b.sleep = time.Microsecond
		}
		time.Sleep(b.sleep)
		b.sleep *= 2
		if b.sleep > max {
			b.sleep = max
		}
	}
}

// Reset returns the backoff to the busy-spin phase.
func (b *Backoff) Reset() {
	b.round = 0
	b.sleep = 0
}

// TryLocker is satisfied by sync.Mutex.
type TryLocker interface {
	TryLock() bool
}

// SpinLock acquires l by polling TryLock with a bounded backoff instead of
// parking the goroutine.
func SpinLock(l TryLocker, max time.Duration) {
	bo := Backoff{Max: max}
	for !l.TryLock() {
		bo.Wait()
	}
}

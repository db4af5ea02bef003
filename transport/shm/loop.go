//go:build unix

// File: transport/shm/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Polling goroutine. Started by the first open, exits once a scan leaves
// the registry empty, restarted by the next open.

package shm

import (
	"runtime"

	"github.com/momentics/hioload-shm/affinity"
	"github.com/momentics/hioload-shm/internal/concurrency"
)

func (c *Coordinator) run() {
	defer c.loops.Done()
	if c.pollerCPU >= 0 {
		// Never unlocked: the pinned thread exits with the goroutine.
		runtime.LockOSThread()
		if err := affinity.SetAffinity(c.pollerCPU); err != nil {
			c.log.Warn("polling loop not pinned", "cpu", c.pollerCPU, "error", err)
		}
	}
	c.log.Info("polling loop started", "cpu", c.pollerCPU)

	var idle concurrency.Backoff
	for {
		c.baton.Acquire()
		c.reg.SpinLock(c.baton.BackoffMax())

		moved := c.bytesIn.Load() + c.bytesOut.Load()
		c.reg.Scan(c.service)
		c.scans.Add(1)
		busy := c.bytesIn.Load()+c.bytesOut.Load() != moved

		empty := c.reg.Len() == 0
		if empty {
			c.running.Store(false)
		}
		c.reg.Unlock()
		c.baton.Release()

		if empty {
			c.log.Info("polling loop stopped")
			return
		}
		if busy {
			idle.Reset()
		} else {
			idle.Max = c.baton.BackoffMax()
			idle.Wait()
		}
	}
}

// service runs one record through inbound, outbound and liveness, and
// reports whether it stays registered.
func (c *Coordinator) service(rec *Record) bool {
	if rec.seg.ToServer().Used() > 0 {
		c.current.Store(rec)
		c.host.ProcessInbound(rec.state)
		c.current.Store(nil)
	}
	if c.host.HasPendingOutput(rec.state) {
		c.current.Store(rec)
		c.host.FlushOutput(rec.state)
		c.current.Store(nil)
	}
	if err := c.probe(rec.fd); err != nil {
		c.teardown(rec, err)
		return false
	}
	return true
}

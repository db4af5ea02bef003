//go:build unix

// File: transport/shm/options.go
// Functional options for the Coordinator.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package shm

import (
	"log/slog"
	"time"

	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/segment"
)

// Option customizes coordinator initialization.
type Option func(*Coordinator)

// WithSegmentDir maps client segments from dir instead of /dev/shm.
func WithSegmentDir(dir string) Option {
	return func(c *Coordinator) {
		c.mapper = segment.DirMapper{Dir: dir}
	}
}

// WithMapper replaces the segment mapper.
func WithMapper(m segment.Mapper) Option {
	return func(c *Coordinator) {
		c.mapper = m
	}
}

// WithSpawner replaces how the polling goroutine is started.
func WithSpawner(spawn func(fn func()) error) Option {
	return func(c *Coordinator) {
		c.spawn = spawn
	}
}

// WithLivenessProbe replaces the peer-loss check run on each liveness
// descriptor after every scan. A non-nil error tears the session down.
func WithLivenessProbe(probe func(fd int) error) Option {
	return func(c *Coordinator) {
		c.probe = probe
	}
}

// WithControl publishes metrics and debug probes through ctrl and reads
// tunables from its config.
func WithControl(ctrl api.Control) Option {
	return func(c *Coordinator) {
		c.ctrl = ctrl
	}
}

// WithBackoffMax caps the sleep phase of every spin-wait.
func WithBackoffMax(d time.Duration) Option {
	return func(c *Coordinator) {
		c.backoffMax = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithPollerCPU pins the polling goroutine's thread to cpu. Negative
// leaves it to the scheduler.
func WithPollerCPU(cpu int) Option {
	return func(c *Coordinator) {
		c.pollerCPU = cpu
	}
}

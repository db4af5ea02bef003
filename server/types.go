//go:build linux

// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/hioload-shm/internal/concurrency"
	"github.com/momentics/hioload-shm/segment"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr     string        // IPv4 bind address, e.g. "127.0.0.1:6380"
	SegmentDir     string        // where clients create their segments
	MaxEvents      int           // reactor batch size
	PollInterval   time.Duration // longest reactor wait
	MaxQueryLen    int           // unterminated input a client may buffer
	SpinBackoffMax time.Duration // cap for spin-wait sleeps
	PinPoller      bool          // pin the shared-memory polling thread
	PollerCPU      int           // CPU used when PinPoller is set
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     "127.0.0.1:6380",
		SegmentDir:     segment.DefaultDir,
		MaxEvents:      128,
		PollInterval:   100 * time.Millisecond,
		MaxQueryLen:    1 << 20,
		SpinBackoffMax: concurrency.DefaultBackoffMax,
	}
}

// Package fake
// Author: momentics <momentics@gmail.com>
//
// Instrumented api.Host. Every hook, and every Touch made on behalf of the
// main loop, checks that nobody else is inside host state at the same time.

package fake

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-shm/api"
)

// Host is an echo host: whatever a connection sends is queued back Repeat
// times.
type Host struct {
	// ReadChunk is the buffer size passed to each Stream.Read.
	ReadChunk int
	// Repeat is how many copies of the input are queued as output.
	Repeat int
	// Hold keeps each hook inside host state a little longer.
	Hold time.Duration

	mu         sync.Mutex
	conns      []*Conn
	active     atomic.Int32
	violations atomic.Int64
}

var _ api.Host = (*Host)(nil)

// NewHost returns an echo host reading 16 KiB at a time.
func NewHost() *Host {
	return &Host{ReadChunk: 16 * 1024, Repeat: 1}
}

// Conn is the fake per-connection state.
type Conn struct {
	stream api.Stream

	mu        sync.Mutex
	received  []byte
	chunks    []int
	pending   []byte
	writes    []int
	readErrs  []error
	destroyed bool
}

// NewConnState implements api.Host.
func (h *Host) NewConnState(s api.Stream) api.ConnState {
	c := &Conn{stream: s}
	h.mu.Lock()
	h.conns = append(h.conns, c)
	h.mu.Unlock()
	return c
}

// ProcessInbound implements api.Host.
func (h *Host) ProcessInbound(cs api.ConnState) {
	c := cs.(*Conn)
	h.enter()
	defer h.leave()

	chunk := h.ReadChunk
	if chunk <= 0 {
		chunk = 16 * 1024
	}
	buf := make([]byte, chunk)
	for {
		n, err := c.stream.Read(buf)
		c.mu.Lock()
		if n > 0 {
			c.chunks = append(c.chunks, n)
			c.received = append(c.received, buf[:n]...)
			for i := 0; i < h.repeat(); i++ {
				c.pending = append(c.pending, buf[:n]...)
			}
		}
		if err != nil && !errors.Is(err, api.ErrWouldBlock) {
			c.readErrs = append(c.readErrs, err)
		}
		c.mu.Unlock()
		if err != nil || n == 0 {
			return
		}
	}
}

// HasPendingOutput implements api.Host.
func (h *Host) HasPendingOutput(cs api.ConnState) bool {
	c := cs.(*Conn)
	h.enter()
	defer h.leave()
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

// FlushOutput implements api.Host.
func (h *Host) FlushOutput(cs api.ConnState) {
	c := cs.(*Conn)
	h.enter()
	defer h.leave()
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) > 0 {
		n, err := c.stream.Write(c.pending)
		c.writes = append(c.writes, n)
		c.pending = c.pending[n:]
		if err != nil || n == 0 {
			return
		}
	}
}

// DestroyConnState implements api.Host.
func (h *Host) DestroyConnState(cs api.ConnState) {
	c := cs.(*Conn)
	h.enter()
	defer h.leave()
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
}

// Touch simulates the main loop working on host state.
func (h *Host) Touch() {
	h.enter()
	h.leave()
}

// Violations counts hooks that found someone else inside host state.
func (h *Host) Violations() int64 {
	return h.violations.Load()
}

// Conns returns every connection created so far.
func (h *Host) Conns() []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Conn(nil), h.conns...)
}

func (h *Host) repeat() int {
	if h.Repeat <= 0 {
		return 1
	}
	return h.Repeat
}

func (h *Host) enter() {
	if h.active.Add(1) != 1 {
		h.violations.Add(1)
	}
	if h.Hold > 0 {
		time.Sleep(h.Hold)
	}
}

func (h *Host) leave() {
	h.active.Add(-1)
}

// Stream returns the stream the transport handed over.
func (c *Conn) Stream() api.Stream { return c.stream }

// Received returns every byte read so far.
func (c *Conn) Received() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.received...)
}

// Chunks returns the size of every successful Read.
func (c *Conn) Chunks() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.chunks...)
}

// Writes returns the count reported by every Write.
func (c *Conn) Writes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.writes...)
}

// ReadErrors returns unexpected read errors.
func (c *Conn) ReadErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.readErrs...)
}

// Destroyed reports whether DestroyConnState ran.
func (c *Conn) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

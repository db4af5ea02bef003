// File: internal/concurrency/ring.go
// Package concurrency implements lock-free ring buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ByteRing is a bounded circular byte queue with atomic read/write cursors,
// padded onto separate cache lines. The header and storage overlay caller
// memory, so the same ring can live in a MAP_SHARED mapping and be driven
// by two processes: one writer and one reader.

package concurrency

import (
	"sync/atomic"
	"unsafe"

	"github.com/momentics/hioload-shm/api"
)

// Ensure compile-time interface compliance.
var _ api.ByteRing = (*ByteRing)(nil)

// RingHeaderSize is the number of bytes in front of the ring storage.
const RingHeaderSize = 128

// ringHeader is the cursor block shared by writer and reader. Cursors are
// monotonic byte counters; storage position is cursor % capacity.
type ringHeader struct {
	read  atomic.Uint64
	_     [56]byte // Padding for hot/cold separation
	write atomic.Uint64
	_     [56]byte // Padding to separate write cursor from storage
}

// ByteRing is a lock-free byte ring (single-producer, single-consumer safe).
type ByteRing struct {
	hdr  *ringHeader
	data []byte
	cap  uint64
}

// NewByteRing overlays a ring on mem. The first RingHeaderSize bytes hold
// the cursors, the rest is storage. mem must be 8-byte aligned.
func NewByteRing(mem []byte) *ByteRing {
	if len(mem) <= RingHeaderSize {
		panic("ring memory smaller than header")
	}
	if uintptr(unsafe.Pointer(&mem[0]))%8 != 0 {
		panic("ring memory must be 8-byte aligned")
	}
	return &ByteRing{
		hdr:  (*ringHeader)(unsafe.Pointer(&mem[0])),
		data: mem[RingHeaderSize:],
		cap:  uint64(len(mem) - RingHeaderSize),
	}
}

// NewHeapRing allocates a process-local ring of the given capacity.
func NewHeapRing(capacity int) *ByteRing {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}
	size := RingHeaderSize + capacity
	words := make([]uint64, (size+7)/8)
	return NewByteRing(unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size))
}

// Cap returns fixed buffer capacity.
func (r *ByteRing) Cap() int {
	return int(r.cap)
}

// Used returns bytes available to the reader.
func (r *ByteRing) Used() int {
	w := r.hdr.write.Load()
	rd := r.hdr.read.Load()
	return int(w - rd)
}

// Free returns bytes available to the writer.
func (r *ByteRing) Free() int {
	return int(r.cap) - r.Used()
}

// Write copies as much of p as fits and publishes it to the reader.
// The write cursor is advanced only after the bytes are stored.
func (r *ByteRing) Write(p []byte) int {
	w := r.hdr.write.Load()
	rd := r.hdr.read.Load()
	n := r.cap - (w - rd)
	if uint64(len(p)) < n {
		n = uint64(len(p))
	}
	if n == 0 {
		return 0
	}
	off := w % r.cap
	first := copy(r.data[off:], p[:n])
	copy(r.data, p[first:n])
	r.hdr.write.Store(w + n)
	return int(n)
}

// Read copies up to len(p) buffered bytes into p and releases the space
// to the writer.
func (r *ByteRing) Read(p []byte) int {
	rd := r.hdr.read.Load()
	w := r.hdr.write.Load()
	n := w - rd
	if uint64(len(p)) < n {
		n = uint64(len(p))
	}
	if n == 0 {
		return 0
	}
	off := rd % r.cap
	first := copy(p[:n], r.data[off:])
	copy(p[first:n], r.data)
	r.hdr.read.Store(rd + n)
	return int(n)
}

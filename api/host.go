// File: api/host.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Hooks the shared-memory transport consumes from the host server.

package api

// ConnState is the host's opaque per-connection object.
type ConnState any

// Host is the single-threaded server the transport plugs into. None of
// these hooks is ever entered concurrently with the host's main loop.
type Host interface {
	// NewConnState creates per-connection state whose I/O goes through s.
	NewConnState(s Stream) ConnState
	// ProcessInbound reads and executes whatever s has buffered.
	ProcessInbound(c ConnState)
	// HasPendingOutput reports whether replies are queued for c.
	HasPendingOutput(c ConnState) bool
	// FlushOutput writes queued replies; short writes leave the rest queued.
	FlushOutput(c ConnState)
	// DestroyConnState releases everything the host holds for c.
	DestroyConnState(c ConnState)
}

// LivenessSource exposes the raw descriptor of the connection that asked
// for a shared-memory upgrade. The returned descriptor is owned by the
// caller and is only ever polled for error state.
type LivenessSource interface {
	LivenessFD() (int, error)
}

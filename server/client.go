//go:build linux

// File: server/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection host state. Socket clients and shared-memory clients share
// one type; only the stream underneath differs.

package server

import (
	"io"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-shm/api"
)

// Client is the host's connection state.
type Client struct {
	id     uint64
	fd     int // -1 for shared-memory clients
	stream api.Stream
	query  []byte
	reply  []byte
	// closing is set once the client must go away after its reply drains.
	closing bool
	dead    bool
}

var _ api.LivenessSource = (*Client)(nil)

// ID returns the server-assigned client id.
func (c *Client) ID() uint64 { return c.id }

// IsShm reports whether the client talks over shared memory.
func (c *Client) IsShm() bool { return c.fd < 0 }

// LivenessFD hands out a close-on-exec duplicate of the client's socket.
// The caller owns the duplicate.
func (c *Client) LivenessFD() (int, error) {
	if c.fd < 0 {
		return -1, api.ErrNoLiveness
	}
	return unix.FcntlInt(uintptr(c.fd), unix.F_DUPFD_CLOEXEC, 0)
}

// socketStream is api.Stream over a non-blocking socket.
type socketStream struct {
	fd int
}

var _ api.Stream = socketStream{}

func (s socketStream) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd, p)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, api.ErrWouldBlock
	case err != nil:
		return 0, err
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

func (s socketStream) Write(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, api.ErrWouldBlock
	case err != nil:
		return 0, err
	}
	return n, nil
}

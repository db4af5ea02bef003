//go:build unix

package shm

import "github.com/momentics/hioload-shm/api"

// shimStream is the api.Stream a shared-memory connection's host state
// does its I/O through. It only moves bytes while its record is the one
// the polling loop is currently servicing.
type shimStream struct {
	c   *Coordinator
	rec *Record
}

var _ api.Stream = (*shimStream)(nil)

// Read drains up to len(p) bytes of to_server. An empty ring reports
// ErrWouldBlock, like a non-blocking socket with nothing ready.
func (s *shimStream) Read(p []byte) (int, error) {
	if s.c.current.Load() != s.rec {
		return 0, api.ErrNotServiced
	}
	ring := s.rec.seg.ToServer()
	if ring.Used() == 0 {
		return 0, api.ErrWouldBlock
	}
	n := ring.Read(p)
	s.c.bytesIn.Add(int64(n))
	return n, nil
}

// Write stores as much of p as to_client has room for. A short count is
// not an error; the host keeps the remainder queued.
func (s *shimStream) Write(p []byte) (int, error) {
	if s.c.current.Load() != s.rec {
		return 0, api.ErrNotServiced
	}
	n := s.rec.seg.ToClient().Write(p)
	s.c.bytesOut.Add(int64(n))
	return n, nil
}

// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the host-facing contracts.

package fake

import (
	"io"
	"sync"

	"github.com/momentics/hioload-shm/api"
)

// Stream is a fake implementation of api.Stream for testing.
type Stream struct {
	mu         sync.Mutex
	recv       []byte
	sent       []byte
	eof        bool
	readError  error
	writeError error
	writeLimit int
}

var _ api.Stream = (*Stream)(nil)

// NewStream creates a new fake stream with nothing to read.
func NewStream() *Stream {
	return &Stream{}
}

// Read implements api.Stream.Read.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readError != nil {
		return 0, s.readError
	}
	if len(s.recv) == 0 {
		if s.eof {
			return 0, io.EOF
		}
		return 0, api.ErrWouldBlock
	}
	n := copy(p, s.recv)
	s.recv = s.recv[n:]
	return n, nil
}

// Write implements api.Stream.Write.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeError != nil {
		return 0, s.writeError
	}
	n := len(p)
	if s.writeLimit > 0 && n > s.writeLimit {
		n = s.writeLimit
	}
	s.sent = append(s.sent, p[:n]...)
	return n, nil
}

// SetReadError configures the stream to return an error on Read.
func (s *Stream) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readError = err
}

// SetWriteError configures the stream to return an error on Write.
func (s *Stream) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeError = err
}

// SetWriteLimit caps how many bytes one Write accepts (0 = no cap).
func (s *Stream) SetWriteLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLimit = n
}

// AddRecvData queues data for subsequent Read calls.
func (s *Stream) AddRecvData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recv = append(s.recv, data...)
}

// CloseRemote makes Read report io.EOF once queued data is drained.
func (s *Stream) CloseRemote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eof = true
}

// GetSentData returns everything written so far.
func (s *Stream) GetSentData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sent...)
}

// ClearSentData clears the internal send buffer.
func (s *Stream) ClearSentData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = s.sent[:0]
}

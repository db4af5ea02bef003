//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

// NewReactor returns ErrNotSupported on platforms without epoll.
func NewReactor() (EventReactor, error) {
	return nil, ErrNotSupported
}

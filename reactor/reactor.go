// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Readiness multiplexer for the server's socket clients.

package reactor

import (
	"errors"
	"time"
)

// ErrNotSupported is returned by NewReactor where no backend exists.
var ErrNotSupported = errors.New("reactor: this platform is not supported")

// EventReactor reports which registered descriptors are readable.
type EventReactor interface {
	// Register adds fd for read readiness notifications.
	Register(fd int) error

	// Unregister stops watching fd. It must be called before fd is closed.
	Unregister(fd int) error

	// Wait blocks up to timeout (negative means forever) and writes ready
	// descriptors into events. An interrupted wait returns zero events.
	Wait(events []Event, timeout time.Duration) (n int, err error)

	// Close cleans up the backend descriptor.
	Close() error
}

// Event is one ready descriptor.
type Event struct {
	Fd     int
	Hangup bool // peer hung up or the descriptor is in error
}

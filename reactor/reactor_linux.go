//go:build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Level-triggered epoll(7) backend. The host main loop waits here with
// the baton released, so the timeout bounds how long socket clients wait
// while shared-memory clients are served.

package reactor

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// linuxReactor is a level-triggered epoll reactor.
type linuxReactor struct {
	epfd int
	raw  []unix.EpollEvent
}

// NewReactor opens a close-on-exec epoll instance.
func NewReactor() (EventReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create1")
	}
	return &linuxReactor{epfd: epfd}, nil
}

// Register watches fd for input and for the peer shutting down its side.
func (r *linuxReactor) Register(fd int) error {
	event := &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	return errors.Wrapf(unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, event), "epoll add fd %d", fd)
}

func (r *linuxReactor) Unregister(fd int) error {
	return errors.Wrapf(unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil), "epoll del fd %d", fd)
}

// Wait rounds timeout down to whole milliseconds. EINTR is an empty wait.
func (r *linuxReactor) Wait(events []Event, timeout time.Duration) (int, error) {
	if cap(r.raw) < len(events) {
		r.raw = make([]unix.EpollEvent, len(events))
	}
	raw := r.raw[:len(events)]
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(r.epfd, raw, ms)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "epoll_wait")
	}
	for i := 0; i < n; i++ {
		events[i] = Event{
			Fd:     int(raw[i].Fd),
			Hangup: raw[i].Events&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0,
		}
	}
	return n, nil
}

func (r *linuxReactor) Close() error {
	return unix.Close(r.epfd)
}

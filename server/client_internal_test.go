//go:build linux

package server

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-shm/api"
)

func TestLivenessFDIsCloseOnExec(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	c := &Client{fd: fds[0]}
	fd, err := c.LivenessFD()
	if err != nil {
		t.Fatalf("LivenessFD: %v", err)
	}
	defer unix.Close(fd)
	if fd == fds[0] {
		t.Fatal("LivenessFD returned the socket itself")
	}
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		t.Fatal(err)
	}
	if flags&unix.FD_CLOEXEC == 0 {
		t.Fatal("liveness descriptor would leak into child processes")
	}
}

func TestLivenessFDOfShmClient(t *testing.T) {
	c := &Client{fd: -1}
	if _, err := c.LivenessFD(); !errors.Is(err, api.ErrNoLiveness) {
		t.Fatalf("expected ErrNoLiveness, got %v", err)
	}
}

//go:build linux

// File: server/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking IPv4 listening socket on a raw descriptor.

package server

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func listenTCP4(addr string) (int, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return -1, errors.Wrapf(err, "listen address %q", addr)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return -1, errors.Errorf("listen address %q: bad port", addr)
	}
	sa := &unix.SockaddrInet4{Port: p}
	if host != "" {
		ip := net.ParseIP(host).To4()
		if ip == nil {
			return -1, errors.Errorf("listen address %q: not an IPv4 address", addr)
		}
		copy(sa.Addr[:], ip)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrap(err, "socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "SO_REUSEADDR")
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, errors.Wrapf(err, "bind %s", addr)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "listen")
	}
	return fd, nil
}

func localAddr(fd int) string {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return ""
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return net.JoinHostPort(net.IP(in4.Addr[:]).String(), strconv.Itoa(in4.Port))
	}
	return ""
}

//go:build unix

package shm

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SocketLiveness reports a dead peer on fd. Pending SO_ERROR, a failing
// getsockopt, or an orderly shutdown seen through a non-consuming peek all
// count as dead. Nothing is ever written to fd.
func SocketLiveness(fd int) error {
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return errors.Wrap(err, "getsockopt SO_ERROR")
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	var b [1]byte
	n, _, err := unix.Recvfrom(fd, b[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
	switch {
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR:
		return nil
	case err != nil:
		return errors.Wrap(err, "peek")
	case n == 0:
		return io.EOF
	}
	return nil
}

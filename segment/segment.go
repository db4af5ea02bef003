//go:build unix

// File: segment/segment.go
// Package segment maps the shared block two processes exchange bytes
// through.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Layout, back to back:
//
//	[to_server ring: 128-byte header | Capacity bytes]
//	[to_client ring: 128-byte header | Capacity bytes]
//
// The client writes to_server and reads to_client; the server does the
// opposite. Capacity is a build-time constant both sides must agree on.

package segment

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/internal/concurrency"
)

const (
	// Capacity is the per-direction ring size. It matches the 16 KiB
	// chunk the host reads sockets with.
	Capacity = 16 * 1024

	ringSize = concurrency.RingHeaderSize + Capacity

	// Size is the total mapped length of a segment.
	Size = 2 * ringSize

	// DefaultDir is where POSIX shared memory objects live on Linux.
	DefaultDir = "/dev/shm"
)

// mapped counts live mappings in this process.
var mapped atomic.Int64

// Mapped returns the number of segments currently mapped by this process.
func Mapped() int64 {
	return mapped.Load()
}

// Segment is one process's mapping of a shared block.
type Segment struct {
	name     string
	mem      []byte
	toServer *concurrency.ByteRing
	toClient *concurrency.ByteRing
	once     sync.Once
	unmapErr error
}

// Name returns the segment name the mapping was opened with.
func (s *Segment) Name() string { return s.name }

// ToServer is the client→server ring.
func (s *Segment) ToServer() api.ByteRing { return s.toServer }

// ToClient is the server→client ring.
func (s *Segment) ToClient() api.ByteRing { return s.toClient }

// Unmap releases this process's mapping. The backing file is left alone.
// Calling Unmap more than once is a no-op.
func (s *Segment) Unmap() error {
	s.once.Do(func() {
		if err := unix.Munmap(s.mem); err != nil {
			s.unmapErr = errors.Wrapf(err, "munmap %s", s.name)
			return
		}
		mapped.Add(-1)
	})
	return s.unmapErr
}

// Open maps an existing segment file dir/name read-write.
func Open(dir, name string) (*Segment, error) {
	path, err := segmentPath(dir, name)
	if err != nil {
		return nil, err
	}
	// A symlink planted under the segment name fails with ELOOP.
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NOFOLLOW|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, errors.Wrapf(api.ErrSegmentNotFound.With("path", path), "open: %v", err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, errors.Wrapf(api.ErrMapFailed.With("path", path), "fstat: %v", err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return nil, errors.Wrapf(api.ErrMapFailed.With("path", path),
			"not a regular file (mode %o)", st.Mode)
	}
	if st.Size < Size {
		// Mapping past EOF would SIGBUS on first touch.
		return nil, errors.Wrapf(api.ErrMapFailed.With("path", path),
			"segment is %d bytes, need %d", st.Size, Size)
	}
	return mapFD(fd, name, path)
}

// Create allocates, sizes and maps a new segment file. This is the
// client's side of the setup; it owns the file and unlinks it when done.
func Create(dir, name string) (*Segment, error) {
	path, err := segmentPath(dir, name)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "create segment %s", path)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, Size); err != nil {
		_ = os.Remove(path)
		return nil, errors.Wrapf(err, "resize segment %s", path)
	}
	seg, err := mapFD(fd, name, path)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return seg, nil
}

// Unlink removes the segment file. Only the creating side calls it.
func Unlink(dir, name string) error {
	path, err := segmentPath(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "unlink segment %s", path)
	}
	return nil
}

func mapFD(fd int, name, path string) (*Segment, error) {
	mem, err := unix.Mmap(fd, 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(api.ErrMapFailed.With("path", path), "mmap: %v", err)
	}
	mapped.Add(1)
	return &Segment{
		name:     name,
		mem:      mem,
		toServer: concurrency.NewByteRing(mem[:ringSize]),
		toClient: concurrency.NewByteRing(mem[ringSize:]),
	}, nil
}

// segmentPath resolves a shm_open style name ("/foo" or "foo") to a file
// under dir. Names may not reach outside dir.
func segmentPath(dir, name string) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	base := strings.TrimPrefix(name, "/")
	if base == "" || base == "." || base == ".." || strings.ContainsRune(base, '/') {
		return "", errors.Wrapf(api.ErrSegmentNotFound.With("name", name), "invalid segment name")
	}
	return filepath.Join(dir, base), nil
}

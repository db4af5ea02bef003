//go:build unix

// File: client/client.go
// Package client is the peer side of the shared-memory transport: it creates
// a segment, asks the server to adopt it over TCP, then talks through the
// rings while keeping the socket open as the liveness signal.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/internal/concurrency"
	"github.com/momentics/hioload-shm/segment"
)

// ErrClosed is returned by I/O on a closed Conn.
var ErrClosed = errors.New("shm client closed")

var nameSeq atomic.Uint64

// Conn is an established shared-memory session.
type Conn struct {
	cfg  Config
	seg  *segment.Segment
	sock net.Conn
	rbuf []byte

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial creates the segment, connects to cfg.Addr and performs the open
// handshake. Nothing is left behind on failure.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("hioload-shm-%d-%d", os.Getpid(), nameSeq.Add(1))
	}

	seg, err := segment.Create(cfg.Dir, cfg.Name)
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		seg.Unmap()
		segment.Unlink(cfg.Dir, cfg.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	var d net.Dialer
	sock, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		cleanup()
		return nil, errors.Wrapf(err, "dial %s", cfg.Addr)
	}
	if err := handshake(ctx, sock, cfg); err != nil {
		sock.Close()
		cleanup()
		return nil, err
	}
	return &Conn{cfg: cfg, seg: seg, sock: sock}, nil
}

func handshake(ctx context.Context, sock net.Conn, cfg Config) error {
	if dl, ok := ctx.Deadline(); ok {
		sock.SetDeadline(dl)
		defer sock.SetDeadline(time.Time{})
	}
	if _, err := fmt.Fprintf(sock, "SHM.OPEN %d %s\r\n", cfg.Version, cfg.Name); err != nil {
		return errors.Wrap(err, "send open")
	}
	line, err := bufio.NewReader(sock).ReadString('\n')
	if err != nil {
		return errors.Wrap(err, "read open reply")
	}
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == ":1":
		return nil
	case strings.HasPrefix(line, "-"):
		return rejection(strings.TrimPrefix(strings.TrimPrefix(line, "-"), "ERR "))
	}
	return errors.Errorf("unexpected open reply %q", line)
}

// rejection maps a server error reply back onto the matching sentinel so
// callers can use errors.Is.
func rejection(msg string) error {
	for _, e := range []*api.Error{
		api.ErrWrongArity, api.ErrBadVersion, api.ErrVersionTooHigh,
		api.ErrNameTooLong, api.ErrSegmentNotFound, api.ErrMapFailed,
		api.ErrSpawnFailed, api.ErrClosed, api.ErrNoLiveness,
	} {
		if e.Message == msg {
			return e
		}
	}
	return api.NewError(api.ErrCodeInternal, msg)
}

// Name returns the segment name.
func (c *Conn) Name() string { return c.cfg.Name }

// TryWrite copies as much of p into to_server as fits.
func (c *Conn) TryWrite(p []byte) int {
	if c.closed.Load() {
		return 0
	}
	return c.seg.ToServer().Write(p)
}

// TryRead drains up to len(p) bytes of to_client.
func (c *Conn) TryRead(p []byte) int {
	if c.closed.Load() {
		return 0
	}
	if len(c.rbuf) > 0 {
		n := copy(p, c.rbuf)
		c.rbuf = c.rbuf[n:]
		return n
	}
	return c.seg.ToClient().Read(p)
}

// Write blocks until all of p is in to_server.
func (c *Conn) Write(p []byte) (int, error) {
	return c.WriteContext(context.Background(), p)
}

// WriteContext is Write bounded by ctx.
func (c *Conn) WriteContext(ctx context.Context, p []byte) (int, error) {
	var bo concurrency.Backoff
	done := 0
	for done < len(p) {
		if c.closed.Load() {
			return done, ErrClosed
		}
		n := c.seg.ToServer().Write(p[done:])
		done += n
		if n > 0 {
			bo.Reset()
			continue
		}
		if err := ctx.Err(); err != nil {
			return done, err
		}
		bo.Wait()
	}
	return done, nil
}

// Read blocks until at least one byte is available.
func (c *Conn) Read(p []byte) (int, error) {
	return c.ReadContext(context.Background(), p)
}

// ReadContext is Read bounded by ctx.
func (c *Conn) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var bo concurrency.Backoff
	for {
		if c.closed.Load() {
			return 0, ErrClosed
		}
		if n := c.TryRead(p); n > 0 {
			return n, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		bo.Wait()
	}
}

// Do sends one inline command and returns the raw reply.
func (c *Conn) Do(ctx context.Context, cmd string) (string, error) {
	if _, err := c.WriteContext(ctx, []byte(cmd+"\r\n")); err != nil {
		return "", err
	}
	return c.readReply(ctx)
}

// Close closes the socket, which tells the server to drop the session,
// then unmaps and removes the segment.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err := c.sock.Close()
		if uerr := c.seg.Unmap(); err == nil {
			err = uerr
		}
		if uerr := segment.Unlink(c.cfg.Dir, c.cfg.Name); err == nil && !os.IsNotExist(errors.Cause(uerr)) {
			err = uerr
		}
		c.closeErr = err
	})
	return c.closeErr
}

var _ io.ReadWriteCloser = (*Conn)(nil)

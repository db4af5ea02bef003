//go:build unix

// File: client/reply.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RESP reply framing over the to_client ring.

package client

import (
	"bytes"
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-shm/internal/concurrency"
)

// fill appends at least one byte from to_client to rbuf.
func (c *Conn) fill(ctx context.Context) error {
	var buf [4096]byte
	var bo concurrency.Backoff
	for {
		if c.closed.Load() {
			return ErrClosed
		}
		if n := c.seg.ToClient().Read(buf[:]); n > 0 {
			c.rbuf = append(c.rbuf, buf[:n]...)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		bo.Wait()
	}
}

func (c *Conn) readLine(ctx context.Context) (string, error) {
	for {
		if i := bytes.IndexByte(c.rbuf, '\n'); i >= 0 {
			line := string(c.rbuf[:i+1])
			c.rbuf = c.rbuf[i+1:]
			return line, nil
		}
		if err := c.fill(ctx); err != nil {
			return "", err
		}
	}
}

func (c *Conn) readN(ctx context.Context, n int) (string, error) {
	for len(c.rbuf) < n {
		if err := c.fill(ctx); err != nil {
			return "", err
		}
	}
	out := string(c.rbuf[:n])
	c.rbuf = c.rbuf[n:]
	return out, nil
}

// readReply returns one complete RESP reply, framing bytes included.
func (c *Conn) readReply(ctx context.Context) (string, error) {
	line, err := c.readLine(ctx)
	if err != nil {
		return "", err
	}
	if line[0] != '$' {
		return line, nil
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace([]byte(line[1:]))))
	if err != nil {
		return "", errors.Wrapf(err, "bad bulk header %q", line)
	}
	if n < 0 {
		return line, nil
	}
	body, err := c.readN(ctx, n+2)
	if err != nil {
		return "", err
	}
	return line + body, nil
}

//go:build linux

// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Main loop: wait on the reactor with the baton released, then accept,
// read and flush socket clients with the baton held.

package server

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-shm/api"
)

// Run serves until ctx is done, then shuts every connection down. A
// server runs once; later calls return ErrServerClosed.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if s.closed.Load() {
		s.running.Store(false)
		return ErrServerClosed
	}
	defer s.running.Store(false)
	defer s.close()

	s.log.Info("serving", "addr", s.addr, "segment_dir", s.cfg.SegmentDir)
	for ctx.Err() == nil {
		timeout := s.cfg.PollInterval
		if s.socketOutputPending() {
			timeout = time.Millisecond
		}

		s.coord.BeforeWait()
		n, err := s.reactor.Wait(s.events, timeout)
		s.coord.AfterWait()
		if err != nil {
			return err
		}

		for _, ev := range s.events[:n] {
			if ev.Fd == s.lfd {
				s.acceptAll()
				continue
			}
			if c, ok := s.clients[ev.Fd]; ok {
				s.serviceSocket(c, ev.Hangup)
			}
		}
		s.flushSockets()
	}
	return nil
}

func (s *Server) acceptAll() {
	for {
		fd, _, err := unix.Accept4(s.lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EAGAIN:
			return
		case err == unix.EINTR || err == unix.ECONNABORTED:
			continue
		case err != nil:
			s.log.Warn("accept failed", "error", err)
			return
		}
		unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		if err := s.reactor.Register(fd); err != nil {
			s.log.Warn("register failed", "error", err)
			unix.Close(fd)
			continue
		}
		c := s.newClient(fd, socketStream{fd: fd})
		s.clients[fd] = c
		s.publishClients()
		s.log.Debug("client connected", "client", c.id)
	}
}

// serviceSocket reads and answers c. Once the peer has shut down its
// side, the replies already owed are flushed and the client is closed.
func (s *Server) serviceSocket(c *Client, hangup bool) {
	err := s.readFrom(c)
	switch {
	case errors.Is(err, io.EOF):
		hangup = true
	case err != nil:
		s.log.Debug("client gone", "client", c.id, "error", err)
		s.freeClient(c)
		return
	}
	if hangup && !c.closing {
		s.log.Debug("client hung up", "client", c.id)
		c.closing = true
	}
	s.flushSocket(c)
}

func (s *Server) flushSockets() {
	for _, c := range s.clients {
		if len(c.reply) > 0 || c.closing {
			s.flushSocket(c)
		}
	}
}

func (s *Server) flushSocket(c *Client) {
	if err := s.flush(c); err != nil {
		s.log.Debug("write failed", "client", c.id, "error", err)
		s.freeClient(c)
		return
	}
	if c.closing && len(c.reply) == 0 {
		s.discardInput(c)
		s.freeClient(c)
	}
}

// discardInput drops unread bytes so closing sends FIN rather than RST
// and the final reply survives.
func (s *Server) discardInput(c *Client) {
	for {
		n, err := unix.Read(c.fd, s.readBuf)
		if err != nil || n <= 0 {
			return
		}
	}
}

func (s *Server) socketOutputPending() bool {
	for _, c := range s.clients {
		if len(c.reply) > 0 {
			return true
		}
	}
	return false
}

func (s *Server) freeClient(c *Client) {
	if c.dead {
		return
	}
	c.dead = true
	s.reactor.Unregister(c.fd)
	unix.Close(c.fd)
	delete(s.clients, c.fd)
	s.publishClients()
}

// readFrom drains the stream into the query buffer, running commands as
// lines complete.
func (s *Server) readFrom(c *Client) error {
	for !c.closing {
		n, err := c.stream.Read(s.readBuf)
		if n > 0 {
			c.query = append(c.query, s.readBuf[:n]...)
			s.processInput(c)
		}
		if errors.Is(err, api.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// flush writes as much pending reply as the stream takes.
func (s *Server) flush(c *Client) error {
	for len(c.reply) > 0 {
		n, err := c.stream.Write(c.reply)
		c.reply = c.reply[n:]
		if errors.Is(err, api.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	c.reply = nil
	return nil
}

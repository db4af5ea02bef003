//go:build linux

// File: server/host.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// api.Host hooks. They run on the polling goroutine for shared-memory
// clients, under the same baton as the main loop.

package server

import (
	"github.com/momentics/hioload-shm/api"
)

var _ api.Host = (*Server)(nil)

// NewConnState implements api.Host.
func (s *Server) NewConnState(st api.Stream) api.ConnState {
	c := s.newClient(-1, st)
	s.shmClients++
	s.publishClients()
	return c
}

// ProcessInbound implements api.Host.
func (s *Server) ProcessInbound(cs api.ConnState) {
	c := cs.(*Client)
	if err := s.readFrom(c); err != nil {
		s.log.Warn("shm read failed", "client", c.id, "error", err)
	}
}

// HasPendingOutput implements api.Host.
func (s *Server) HasPendingOutput(cs api.ConnState) bool {
	return len(cs.(*Client).reply) > 0
}

// FlushOutput implements api.Host.
func (s *Server) FlushOutput(cs api.ConnState) {
	c := cs.(*Client)
	if err := s.flush(c); err != nil {
		s.log.Warn("shm write failed", "client", c.id, "error", err)
	}
}

// DestroyConnState implements api.Host.
func (s *Server) DestroyConnState(cs api.ConnState) {
	c := cs.(*Client)
	c.dead = true
	c.query, c.reply = nil, nil
	s.shmClients--
	s.publishClients()
	s.log.Debug("shm client released", "client", c.id)
}

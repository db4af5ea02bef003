//go:build linux

// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/transport/shm"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the structured logger for the server and its transport.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithControl shares an existing control plane.
func WithControl(ctrl api.Control) Option {
	return func(s *Server) {
		s.ctrl = ctrl
	}
}

// WithShmOptions passes extra options to the shared-memory coordinator.
func WithShmOptions(opts ...shm.Option) Option {
	return func(s *Server) {
		s.shmOpts = append(s.shmOpts, opts...)
	}
}

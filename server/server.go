//go:build linux

// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server is a small single-threaded key/value host. Socket clients are
// served by the epoll main loop; clients that upgrade with SHM.OPEN are
// served by the shared-memory polling goroutine, never both at once.

package server

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-shm/adapters"
	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/reactor"
	"github.com/momentics/hioload-shm/transport/shm"
)

var (
	ErrAlreadyRunning = errors.New("server already running")
	// ErrServerClosed is returned by Run on a server that was closed,
	// either by Close or by an earlier Run.
	ErrServerClosed = errors.New("server closed")
)

// Server owns the listener, the reactor and the shared-memory coordinator.
// Everything below the Server is touched only by whoever holds the
// coordinator's baton.
type Server struct {
	cfg     *Config
	log     *slog.Logger
	ctrl    api.Control
	shmOpts []shm.Option

	coord   *shm.Coordinator
	reactor reactor.EventReactor
	events  []reactor.Event
	lfd     int
	addr    string

	clients    map[int]*Client // socket clients by descriptor
	shmClients int
	nextID     uint64
	db         map[string][]byte
	readBuf    []byte
	commands   int64

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// New binds the listener and builds the coordinator. The goroutine that
// later calls Run becomes the main loop.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxQueryLen <= 0 {
		cfg.MaxQueryLen = def.MaxQueryLen
	}
	if cfg.SegmentDir == "" {
		cfg.SegmentDir = def.SegmentDir
	}

	s := &Server{
		cfg:     cfg,
		lfd:     -1,
		clients: make(map[int]*Client),
		db:      make(map[string][]byte),
		readBuf: make([]byte, 16*1024),
		events:  make([]reactor.Event, cfg.MaxEvents),
	}
	for _, o := range opts {
		o(s)
	}
	if s.ctrl == nil {
		s.ctrl = adapters.NewControlAdapter()
	}
	base := s.log
	if base == nil {
		base = slog.Default()
	}
	s.log = base.With("component", "server")

	r, err := reactor.NewReactor()
	if err != nil {
		return nil, errors.Wrap(err, "reactor")
	}
	lfd, err := listenTCP4(cfg.ListenAddr)
	if err != nil {
		r.Close()
		return nil, err
	}
	if err := r.Register(lfd); err != nil {
		unix.Close(lfd)
		r.Close()
		return nil, err
	}
	s.reactor = r
	s.lfd = lfd
	s.addr = localAddr(lfd)

	shmOpts := append([]shm.Option{
		shm.WithSegmentDir(cfg.SegmentDir),
		shm.WithControl(s.ctrl),
		shm.WithLogger(base),
		shm.WithBackoffMax(cfg.SpinBackoffMax),
	}, s.shmOpts...)
	if cfg.PinPoller {
		shmOpts = append(shmOpts, shm.WithPollerCPU(cfg.PollerCPU))
	}
	s.coord = shm.NewCoordinator(s, shmOpts...)

	s.ctrl.SetConfig(map[string]any{
		"server.listen_addr":   s.addr,
		"server.segment_dir":   cfg.SegmentDir,
		"server.max_query_len": cfg.MaxQueryLen,
		shm.ConfigBackoffMax:   cfg.SpinBackoffMax,
	})
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Control exposes runtime metrics, debug probes and config.
func (s *Server) Control() api.Control {
	return s.ctrl
}

// Close releases a server whose Run never started. Run closes the server
// itself when it returns.
func (s *Server) Close() error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}
	s.close()
	return nil
}

func (s *Server) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.coord.Shutdown()
		for _, c := range s.clients {
			s.freeClient(c)
		}
		s.reactor.Unregister(s.lfd)
		unix.Close(s.lfd)
		s.reactor.Close()
		s.log.Info("server closed", "addr", s.addr)
	})
}

func (s *Server) newClient(fd int, st api.Stream) *Client {
	s.nextID++
	return &Client{id: s.nextID, fd: fd, stream: st}
}

func (s *Server) publishClients() {
	s.ctrl.SetMetric("server.clients", len(s.clients))
	s.ctrl.SetMetric("server.shm_clients", s.shmClients)
}

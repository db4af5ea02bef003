//go:build unix

package shm_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/momentics/hioload-shm/fake"
	"github.com/momentics/hioload-shm/segment"
	"github.com/momentics/hioload-shm/transport/shm"
)

// harness plays the host's main loop: the test goroutine holds the baton
// except inside pump.
type harness struct {
	t       *testing.T
	dir     string
	host    *fake.Host
	c       *shm.Coordinator
	clients []*segment.Segment
}

func alwaysAlive(int) error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, host *fake.Host, opts ...shm.Option) *harness {
	t.Helper()
	dir := t.TempDir()
	base := []shm.Option{
		shm.WithSegmentDir(dir),
		shm.WithLivenessProbe(alwaysAlive),
		shm.WithLogger(quietLogger()),
	}
	c := shm.NewCoordinator(host, append(base, opts...)...)
	h := &harness{t: t, dir: dir, host: host, c: c}
	t.Cleanup(func() {
		c.Shutdown()
		for _, s := range h.clients {
			s.Unmap()
		}
	})
	return h
}

// client creates a segment the way a client process would.
func (h *harness) client(name string) *segment.Segment {
	h.t.Helper()
	s, err := segment.Create(h.dir, name)
	if err != nil {
		h.t.Fatalf("Create(%q): %v", name, err)
	}
	h.clients = append(h.clients, s)
	return s
}

func (h *harness) open(name string) error {
	return h.c.Open(shm.OpenRequest{Version: 1, Name: name, LivenessFD: -1})
}

func (h *harness) mustOpen(name string) *fake.Conn {
	h.t.Helper()
	before := len(h.host.Conns())
	if err := h.open(name); err != nil {
		h.t.Fatalf("Open(%q): %v", name, err)
	}
	conns := h.host.Conns()
	if len(conns) != before+1 {
		h.t.Fatalf("host saw %d connections, want %d", len(conns), before+1)
	}
	return conns[before]
}

// pump blocks "on external events" for a moment, letting the polling
// goroutine run.
func (h *harness) pump() {
	h.c.BeforeWait()
	time.Sleep(200 * time.Microsecond)
	h.c.AfterWait()
}

func (h *harness) waitFor(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out waiting for %s", what)
		}
		h.pump()
	}
}

// drain reads everything currently in r.
func drain(r interface{ Read([]byte) int }, into []byte) []byte {
	buf := make([]byte, 4096)
	for {
		n := r.Read(buf)
		if n == 0 {
			return into
		}
		into = append(into, buf[:n]...)
	}
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 251)
	}
	return p
}

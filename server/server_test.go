//go:build linux

package server_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-shm/server"
)

func startServer(t *testing.T, cfg *server.Config) *server.Server {
	t.Helper()
	if cfg == nil {
		cfg = server.DefaultConfig()
	}
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.SegmentDir = t.TempDir()
	s, err := server.New(cfg, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return")
		}
	})
	return s
}

type peer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, s *server.Server) *peer {
	t.Helper()
	conn, err := net.DialTimeout("tcp", s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return &peer{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (p *peer) send(line string) {
	p.t.Helper()
	if _, err := io.WriteString(p.conn, line); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

func (p *peer) reply() string {
	p.t.Helper()
	line, err := p.r.ReadString('\n')
	if err != nil {
		p.t.Fatalf("read: %v", err)
	}
	if line[0] != '$' {
		return line
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil || n < 0 {
		return line
	}
	body := make([]byte, n+2)
	if _, err := io.ReadFull(p.r, body); err != nil {
		p.t.Fatalf("read bulk: %v", err)
	}
	return line + string(body)
}

func (p *peer) do(line string) string {
	p.t.Helper()
	p.send(line + "\r\n")
	return p.reply()
}

func TestInlineCommands(t *testing.T) {
	s := startServer(t, nil)
	p := dial(t, s)

	cases := []struct{ in, want string }{
		{"PING", "+PONG\r\n"},
		{"ping hello", "$5\r\nhello\r\n"},
		{"ECHO x", "$1\r\nx\r\n"},
		{"SET k v", "+OK\r\n"},
		{"GET k", "$1\r\nv\r\n"},
		{"GET nope", "$-1\r\n"},
		{"DEL k nope", ":1\r\n"},
		{"GET", "-ERR wrong number of arguments for 'get' command\r\n"},
		{"FOO bar", "-ERR unknown command 'FOO'\r\n"},
	}
	for _, tc := range cases {
		if got := p.do(tc.in); got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}

	p.send("PING\nPING\r\n\r\n")
	if a, b := p.reply(), p.reply(); a != "+PONG\r\n" || b != "+PONG\r\n" {
		t.Fatalf("pipelined: %q %q", a, b)
	}
}

func TestShmOpenRejections(t *testing.T) {
	s := startServer(t, nil)
	p := dial(t, s)

	cases := []struct{ in, want string }{
		{"SHM.OPEN 1", "-ERR wrong number of arguments for 'shm.open' command\r\n"},
		{"SHM.OPEN v1 seg", "-ERR Could not parse version\r\n"},
		{"SHM.OPEN 100 seg", "-ERR Client shm connector version is too high, not supported.\r\n"},
		{"SHM.OPEN 1 " + strings.Repeat("s", 38), "-ERR Shared memory file length too long\r\n"},
		{"SHM.OPEN 1 missing", "-ERR Can't find the shared memory file on this host\r\n"},
	}
	for _, tc := range cases {
		if got := p.do(tc.in); got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := p.do("PING"); got != "+PONG\r\n" {
		t.Fatalf("connection unusable after rejections: %q", got)
	}
}

func TestQuitClosesConnection(t *testing.T) {
	s := startServer(t, nil)
	p := dial(t, s)
	if got := p.do("QUIT"); got != "+OK\r\n" {
		t.Fatalf("QUIT: %q", got)
	}
	if _, err := p.r.ReadByte(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestOversizedQueryClosesConnection(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.MaxQueryLen = 1024
	s := startServer(t, cfg)
	p := dial(t, s)

	p.send(strings.Repeat("x", 4096))
	if got := p.reply(); got != "-ERR Protocol error: too big inline request\r\n" {
		t.Fatalf("reply: %q", got)
	}
	if _, err := p.r.ReadByte(); err == nil {
		t.Fatal("connection still open")
	}
}

func TestConfigAndInfo(t *testing.T) {
	s := startServer(t, nil)
	p := dial(t, s)

	if got := p.do("CONFIG SET shm.spin_backoff_max 200us"); got != "+OK\r\n" {
		t.Fatalf("CONFIG SET: %q", got)
	}
	if got := p.do("CONFIG GET shm.spin_backoff_max"); got != "$5\r\n200us\r\n" {
		t.Fatalf("CONFIG GET: %q", got)
	}
	if got := p.do("CONFIG GET server.listen_addr"); !strings.Contains(got, s.Addr()) {
		t.Fatalf("CONFIG GET addr: %q", got)
	}
	if got := p.do("CONFIG BOGUS x"); !strings.HasPrefix(got, "-ERR unknown subcommand") {
		t.Fatalf("CONFIG BOGUS: %q", got)
	}

	info := p.do("INFO")
	for _, want := range []string{"debug.shm.connections:0", "server.clients:1", "db.keys:0"} {
		if !strings.Contains(info, want) {
			t.Errorf("INFO lacks %q:\n%s", want, info)
		}
	}
}

func TestCloseBeforeRun(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.SegmentDir = t.TempDir()
	s, err := server.New(cfg, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := net.DialTimeout("tcp", s.Addr(), 200*time.Millisecond); err == nil {
		t.Fatal("listener still accepting after Close")
	}
}

func TestHalfClosedPeerGetsRepliesThenClose(t *testing.T) {
	s := startServer(t, nil)
	p := dial(t, s)
	p.send("PING\r\nECHO bye\r\n")
	if err := p.conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatal(err)
	}
	if got := p.reply(); got != "+PONG\r\n" {
		t.Fatalf("first reply: %q", got)
	}
	if got := p.reply(); got != "$3\r\nbye\r\n" {
		t.Fatalf("second reply: %q", got)
	}
	if _, err := p.r.ReadByte(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.Control().Stats()["server.clients"] != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("server.clients = %v", s.Control().Stats()["server.clients"])
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunAfterClose(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.SegmentDir = t.TempDir()
	cfg.PollInterval = 10 * time.Millisecond
	s, err := server.New(cfg, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, server.ErrServerClosed) {
		t.Fatalf("second Run: %v", err)
	}

	s2, err := server.New(cfg, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s2.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s2.Run(context.Background()); !errors.Is(err, server.ErrServerClosed) {
		t.Fatalf("Run after Close: %v", err)
	}
}

func TestBadListenAddr(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "[::1]:0"
	if _, err := server.New(cfg); err == nil {
		t.Fatal("IPv6 address accepted")
	}
}

//go:build linux

package client_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/client"
	"github.com/momentics/hioload-shm/segment"
	"github.com/momentics/hioload-shm/server"
)

func startServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.SegmentDir = dir
	cfg.PollInterval = 10 * time.Millisecond
	s, err := server.New(cfg, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return s, dir
}

func dial(t *testing.T, s *server.Server, dir string, mod func(*client.Config)) (*client.Conn, error) {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.Addr = s.Addr()
	cfg.Dir = dir
	cfg.DialTimeout = 2 * time.Second
	if mod != nil {
		mod(&cfg)
	}
	return client.Dial(context.Background(), cfg)
}

func waitStat(t *testing.T, s *server.Server, key string, want any) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got := s.Control().Stats()[key]
		if got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s = %v, want %v", key, got, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoundTripOverSharedMemory(t *testing.T) {
	s, dir := startServer(t)
	c, err := dial(t, s, dir, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cases := []struct{ in, want string }{
		{"PING", "+PONG\r\n"},
		{"SET greeting hello", "+OK\r\n"},
		{"GET greeting", "$5\r\nhello\r\n"},
		{"GET missing", "$-1\r\n"},
		{"SHM.OPEN 1 other", "-ERR connection has no socket to watch for liveness\r\n"},
	}
	for _, tc := range cases {
		got, err := c.Do(ctx, tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}

	info, err := c.Do(ctx, "INFO")
	if err != nil {
		t.Fatalf("INFO: %v", err)
	}
	if !strings.Contains(info, "debug.shm.connections:1") || !strings.Contains(info, "server.shm_clients:1") {
		t.Fatalf("INFO:\n%s", info)
	}
}

func TestLargeValueCrossesRingManyTimes(t *testing.T) {
	s, dir := startServer(t)
	c, err := dial(t, s, dir, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	val := strings.Repeat("abcdefgh", 8*1024) // 64 KiB, four rings' worth
	if got, err := c.Do(ctx, "SET big "+val); err != nil || got != "+OK\r\n" {
		t.Fatalf("SET: %q, %v", got, err)
	}
	got, err := c.Do(ctx, "GET big")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if !strings.HasSuffix(got, val+"\r\n") || !strings.HasPrefix(got, "$65536\r\n") {
		t.Fatalf("GET returned %d bytes", len(got))
	}
}

func TestSocketAndShmClientsShareState(t *testing.T) {
	s, dir := startServer(t)
	a, err := dial(t, s, dir, nil)
	if err != nil {
		t.Fatalf("Dial a: %v", err)
	}
	defer a.Close()
	b, err := dial(t, s, dir, nil)
	if err != nil {
		t.Fatalf("Dial b: %v", err)
	}
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.Do(ctx, "SET shared 42")
	if got, _ := b.Do(ctx, "GET shared"); got != "$2\r\n42\r\n" {
		t.Fatalf("b sees %q", got)
	}
	if got, _ := b.Do(ctx, "DEL shared"); got != ":1\r\n" {
		t.Fatalf("DEL: %q", got)
	}
}

func TestCloseTearsDownSession(t *testing.T) {
	s, dir := startServer(t)
	c, err := dial(t, s, dir, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	waitStat(t, s, "debug.shm.connections", 1)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	waitStat(t, s, "debug.shm.connections", 0)
	waitStat(t, s, "debug.shm.loop_running", false)
	if _, err := os.Stat(filepath.Join(dir, c.Name())); !os.IsNotExist(err) {
		t.Fatalf("segment file left behind: %v", err)
	}
	if _, err := c.Write([]byte("x")); !errors.Is(err, client.ErrClosed) {
		t.Fatalf("Write after Close: %v", err)
	}
}

func TestRejectedDialCleansUp(t *testing.T) {
	s, dir := startServer(t)
	base := segment.Mapped()

	_, err := dial(t, s, dir, func(cfg *client.Config) { cfg.Version = 100 })
	if !errors.Is(err, api.ErrVersionTooHigh) {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("segment files left behind: %d", len(entries))
	}
	if got := segment.Mapped() - base; got != 0 {
		t.Fatalf("mapping count delta = %d", got)
	}
}

func TestDialUnreachable(t *testing.T) {
	dir := t.TempDir()
	cfg := client.DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.Dir = dir
	cfg.DialTimeout = time.Second
	if _, err := client.Dial(context.Background(), cfg); err == nil {
		t.Fatal("dial to closed port succeeded")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatal("segment file left behind")
	}
}

func TestReadRespectsContext(t *testing.T) {
	s, dir := startServer(t)
	c, err := dial(t, s, dir, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	buf := make([]byte, 8)
	if _, err := c.ReadContext(ctx, buf); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReadContext: %v", err)
	}

	msg := []byte("PING\r\n")
	if n := c.TryWrite(msg); n != len(msg) {
		t.Fatalf("TryWrite = %d", n)
	}
	var got []byte
	deadline := time.Now().Add(5 * time.Second)
	for !bytes.Equal(got, []byte("+PONG\r\n")) && time.Now().Before(deadline) {
		n := c.TryRead(buf)
		got = append(got, buf[:n]...)
		time.Sleep(time.Millisecond)
	}
	if string(got) != "+PONG\r\n" {
		t.Fatalf("got %q", got)
	}
}

//go:build unix

// File: transport/shm/open.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server end of establishing a shared-memory session.

package shm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-shm/api"
)

const (
	// MaxVersion is the first client protocol version this server rejects.
	MaxVersion = 100
	// MaxNameLen is the longest segment name accepted.
	MaxNameLen = 37
	// OpenOK is the integer the host replies with on success.
	OpenOK = 1
)

// OpenRequest is a parsed open command.
type OpenRequest struct {
	Version int64
	Name    string
	// LivenessFD is the descriptor watched for peer loss. Open takes
	// ownership of it, closing it on failure and on teardown.
	LivenessFD int
}

// ParseOpenArgs parses argv of the form [command, version, name].
func ParseOpenArgs(argv []string) (OpenRequest, error) {
	if len(argv) != 3 {
		return OpenRequest{}, api.ErrWrongArity.With("argc", len(argv))
	}
	v, ok := parseVersion(argv[1])
	if !ok {
		return OpenRequest{}, api.ErrBadVersion.With("version", argv[1])
	}
	return OpenRequest{Version: v, Name: argv[2], LivenessFD: -1}, nil
}

// parseVersion accepts canonical decimal integers only: an optional
// leading minus, no plus sign, no spaces, no leading zeros and no "-0".
func parseVersion(s string) (int64, bool) {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" || (digits[0] == '0' && s != "0") {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// HandleOpenCommand parses argv, takes the liveness descriptor from src
// and opens the session. Must run on the main loop.
func (c *Coordinator) HandleOpenCommand(argv []string, src api.LivenessSource) error {
	req, err := ParseOpenArgs(argv)
	if err != nil {
		return err
	}
	fd, err := src.LivenessFD()
	if err != nil {
		return errors.Wrap(api.ErrNoLiveness, err.Error())
	}
	req.LivenessFD = fd
	return c.Open(req)
}

// Open validates req, maps the segment, creates the host state and
// registers the session, starting the polling goroutine if it is the only
// one. Must run on the main loop. Every failure leaves nothing behind.
func (c *Coordinator) Open(req OpenRequest) error {
	fail := func(err error) error {
		closeFD(req.LivenessFD)
		c.log.Warn("open rejected", "segment", req.Name, "version", req.Version, "error", err)
		return err
	}
	if req.Version >= MaxVersion {
		return fail(api.ErrVersionTooHigh.With("version", req.Version))
	}
	if len(req.Name) > MaxNameLen {
		return fail(api.ErrNameTooLong.With("len", len(req.Name)))
	}
	if c.closed.Load() {
		return fail(api.ErrClosed)
	}
	seg, err := c.mapper.Map(req.Name)
	if err != nil {
		return fail(err)
	}

	rec := &Record{id: c.nextID.Add(1), fd: req.LivenessFD, seg: seg}
	rec.stream = &shimStream{c: c, rec: rec}
	rec.state = c.host.NewConnState(rec.stream)

	c.reg.Lock()
	if c.closed.Load() {
		c.reg.Unlock()
		c.teardown(rec, api.ErrClosed)
		return api.ErrClosed
	}
	if c.reg.Add(rec) == 1 {
		c.running.Store(true)
		c.loops.Add(1)
		if err := c.spawn(c.run); err != nil {
			c.loops.Done()
			c.running.Store(false)
			c.reg.Remove(rec)
			c.reg.Unlock()
			c.teardown(rec, err)
			c.log.Error("polling loop not started", "error", err)
			return errors.Wrap(api.ErrSpawnFailed, err.Error())
		}
		c.loopStarts.Add(1)
	}
	c.reg.Unlock()

	c.ctrl.SetMetric("shm.opens", c.opens.Add(1))
	c.log.Debug("session opened", "session", rec.id, "segment", req.Name, "version", req.Version)
	return nil
}

// ErrorReply returns the text a host should send back for a failed open.
func ErrorReply(err error) string {
	var e *api.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

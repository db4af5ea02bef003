//go:build linux

// File: server/commands.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Inline command protocol: one command per line, whitespace separated
// arguments, RESP replies.

package server

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/transport/shm"
)

type command struct {
	name string
	// arity is exact when positive and a minimum when negative.
	// Zero leaves argument checks to the command.
	arity int
	proc  func(s *Server, c *Client, argv []string)
}

var commandTable = map[string]*command{
	"ping":     {"ping", -1, pingCommand},
	"echo":     {"echo", 2, echoCommand},
	"set":      {"set", 3, setCommand},
	"get":      {"get", 2, getCommand},
	"del":      {"del", -2, delCommand},
	"info":     {"info", -1, infoCommand},
	"config":   {"config", -3, configCommand},
	"quit":     {"quit", 1, quitCommand},
	"shm.open": {"shm.open", 0, shmOpenCommand},
}

// processInput runs every complete line in the query buffer.
func (s *Server) processInput(c *Client) {
	off := 0
	for !c.closing && !c.dead {
		i := bytes.IndexByte(c.query[off:], '\n')
		if i < 0 {
			break
		}
		line := c.query[off : off+i]
		off += i + 1
		line = bytes.TrimSuffix(line, []byte{'\r'})
		argv := strings.Fields(string(line))
		if len(argv) == 0 {
			continue
		}
		s.call(c, argv)
	}
	c.query = c.query[:copy(c.query, c.query[off:])]

	if len(c.query) > s.cfg.MaxQueryLen {
		c.addError("Protocol error: too big inline request")
		c.query = nil
		if !c.IsShm() {
			c.closing = true
		}
	}
}

func (s *Server) call(c *Client, argv []string) {
	name := strings.ToLower(argv[0])
	cmd, ok := commandTable[name]
	if !ok {
		c.addError(fmt.Sprintf("unknown command '%s'", argv[0]))
		return
	}
	if (cmd.arity > 0 && len(argv) != cmd.arity) || (cmd.arity < 0 && len(argv) < -cmd.arity) {
		c.addError(fmt.Sprintf("wrong number of arguments for '%s' command", cmd.name))
		return
	}
	s.commands++
	s.ctrl.SetMetric("server.commands", s.commands)
	cmd.proc(s, c, argv)
}

func pingCommand(s *Server, c *Client, argv []string) {
	switch len(argv) {
	case 1:
		c.addStatus("PONG")
	case 2:
		c.addBulk([]byte(argv[1]))
	default:
		c.addError("wrong number of arguments for 'ping' command")
	}
}

func echoCommand(s *Server, c *Client, argv []string) {
	c.addBulk([]byte(argv[1]))
}

func setCommand(s *Server, c *Client, argv []string) {
	s.db[argv[1]] = []byte(argv[2])
	c.addStatus("OK")
}

func getCommand(s *Server, c *Client, argv []string) {
	v, ok := s.db[argv[1]]
	if !ok {
		c.addNull()
		return
	}
	c.addBulk(v)
}

func delCommand(s *Server, c *Client, argv []string) {
	n := 0
	for _, k := range argv[1:] {
		if _, ok := s.db[k]; ok {
			delete(s.db, k)
			n++
		}
	}
	c.addInt(int64(n))
}

func infoCommand(s *Server, c *Client, argv []string) {
	stats := s.ctrl.Stats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s:%v\r\n", k, stats[k])
	}
	fmt.Fprintf(&b, "db.keys:%d\r\n", len(s.db))
	c.addBulk([]byte(b.String()))
}

func configCommand(s *Server, c *Client, argv []string) {
	switch strings.ToLower(argv[1]) {
	case "get":
		if len(argv) != 3 {
			c.addError("wrong number of arguments for 'config get' command")
			return
		}
		v, ok := s.ctrl.GetConfig()[argv[2]]
		if !ok {
			c.addNull()
			return
		}
		c.addBulk([]byte(fmt.Sprint(v)))
	case "set":
		if len(argv) != 4 {
			c.addError("wrong number of arguments for 'config set' command")
			return
		}
		s.ctrl.SetConfig(map[string]any{argv[2]: argv[3]})
		c.addStatus("OK")
	default:
		c.addError(fmt.Sprintf("unknown subcommand '%s'", argv[1]))
	}
}

func quitCommand(s *Server, c *Client, argv []string) {
	c.addStatus("OK")
	if !c.IsShm() {
		c.closing = true
	}
}

// shmOpenCommand upgrades a socket client to shared memory. A client
// already on shared memory has no socket to watch and is refused.
func shmOpenCommand(s *Server, c *Client, argv []string) {
	if c.IsShm() {
		c.addError(api.ErrNoLiveness.Message)
		return
	}
	if err := s.coord.HandleOpenCommand(argv, c); err != nil {
		c.addError(shm.ErrorReply(err))
		return
	}
	c.addInt(shm.OpenOK)
}

func (c *Client) addStatus(msg string) {
	c.reply = append(c.reply, '+')
	c.reply = append(c.reply, msg...)
	c.reply = append(c.reply, '\r', '\n')
}

func (c *Client) addError(msg string) {
	c.reply = append(c.reply, "-ERR "...)
	c.reply = append(c.reply, msg...)
	c.reply = append(c.reply, '\r', '\n')
}

func (c *Client) addInt(n int64) {
	c.reply = append(c.reply, ':')
	c.reply = strconv.AppendInt(c.reply, n, 10)
	c.reply = append(c.reply, '\r', '\n')
}

func (c *Client) addBulk(b []byte) {
	c.reply = append(c.reply, '$')
	c.reply = strconv.AppendInt(c.reply, int64(len(b)), 10)
	c.reply = append(c.reply, '\r', '\n')
	c.reply = append(c.reply, b...)
	c.reply = append(c.reply, '\r', '\n')
}

func (c *Client) addNull() {
	c.reply = append(c.reply, "$-1\r\n"...)
}

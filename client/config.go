// File: client/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"time"

	"github.com/momentics/hioload-shm/segment"
)

// ProtocolVersion is the connector version announced in SHM.OPEN.
const ProtocolVersion = 1

// Config holds all configurable parameters for a shared-memory client.
type Config struct {
	Addr        string        // server TCP address
	Dir         string        // where to create the segment
	Name        string        // segment name; generated when empty
	Version     int64         // announced connector version
	DialTimeout time.Duration // connect plus handshake
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:6380",
		Dir:         segment.DefaultDir,
		Version:     ProtocolVersion,
		DialTimeout: 5 * time.Second,
	}
}

// Package shm lets a single-threaded host server take requests and send
// replies over a memory-mapped segment instead of a socket.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Coordinator owns the connection registry, the baton and the polling
// goroutine. The host's main loop holds the baton at all times except
// between BeforeWait and AfterWait, i.e. while it is blocked waiting for
// socket events. Only then does the polling goroutine scan the registry
// and drive the host's per-connection hooks, so host state is never
// touched from two goroutines at once.
package shm

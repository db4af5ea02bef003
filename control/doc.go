// Package control
// Author: momentics <momentics@gmail.com>
//
// Per-instance tunables, last-value metrics and debug probes for the
// shared-memory transport and its host server. Each server owns its own
// set; there is no process-wide state, so a stopped server's listeners
// are never called again.
package control

// Package api
// Author: momentics
//
// Named probes the coordinator and server publish their gauges through.

package api

// Debug is a registry of named read-only probes, evaluated on demand.
// Probe names are dotted by owner: shm.connections, platform.cpus.
type Debug interface {
	// DumpState evaluates every probe once and returns the results by name.
	DumpState() map[string]any

	// RegisterProbe adds or replaces the probe called name. fn must be
	// safe to call from any goroutine and must not block.
	RegisterProbe(name string, fn func() any)
}

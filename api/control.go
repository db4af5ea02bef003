// File: api/control.go
// Package api defines Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control carries the tunables, counters and probes of one server
// instance. Nothing in it is process-global.
type Control interface {
	GetConfig() map[string]any
	// SetConfig merges cfg and runs the reload listeners.
	SetConfig(cfg map[string]any) error
	// Reload runs the reload listeners against the current config.
	Reload()
	Stats() map[string]any
	OnReload(fn func())
	SetMetric(key string, value any)
	RegisterDebugProbe(name string, fn func() any)
}

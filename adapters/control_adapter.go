// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Binds the control primitives into one api.Control per server. The
// coordinator publishes shm.* probes through it; the server publishes
// server.* metrics and mirrors its Config into it.

package adapters

import (
	"github.com/momentics/hioload-shm/api"
	"github.com/momentics/hioload-shm/control"
)

// ControlAdapter is the api.Control of one server instance.
type ControlAdapter struct {
	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

var _ api.Control = (*ControlAdapter)(nil)

// NewControlAdapter returns a fresh, unshared control set with the
// platform probes already registered.
func NewControlAdapter() api.Control {
	c := &ControlAdapter{
		config:  control.NewConfigStore(),
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(c.debug)
	return c
}

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

func (c *ControlAdapter) SetConfig(cfg map[string]any) error {
	c.config.SetConfig(cfg)
	return nil
}

// Reload re-applies the current config, e.g. on SIGHUP without a file.
func (c *ControlAdapter) Reload() {
	c.config.Reload()
}

func (c *ControlAdapter) OnReload(fn func()) {
	c.config.OnReload(fn)
}

// Stats merges metrics with probe results; probes carry a debug. prefix.
func (c *ControlAdapter) Stats() map[string]any {
	metrics := c.metrics.GetSnapshot()
	probes := c.debug.DumpState()
	out := make(map[string]any, len(metrics)+len(probes))
	for k, v := range metrics {
		out[k] = v
	}
	for k, v := range probes {
		out["debug."+k] = v
	}
	return out
}

func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

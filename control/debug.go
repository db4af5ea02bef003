// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Probe registry behind the debug.* entries of Stats.

package control

import (
	"sync"

	"github.com/momentics/hioload-shm/api"
)

var _ api.Debug = (*DebugProbes)(nil)

// DebugProbes holds named probes. Probes are evaluated outside the lock,
// so a probe may itself register probes or read other registries.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes returns an empty registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{probes: make(map[string]func() any)}
}

// RegisterProbe adds or replaces the probe called name.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	dp.probes[name] = fn
	dp.mu.Unlock()
}

// DumpState evaluates every probe once.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	fns := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		fns[k] = fn
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(fns))
	for k, fn := range fns {
		out[k] = fn()
	}
	return out
}

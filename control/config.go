// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Tunables store for one server instance. Keys are dotted by owner, e.g.
// shm.spin_backoff_max, and are read back by reload listeners.

package control

import (
	"sync"
)

// ConfigStore holds the live tunables and the listeners that re-read them.
type ConfigStore struct {
	mu        sync.RWMutex
	values    map[string]any
	listeners []func()
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: make(map[string]any)}
}

// GetSnapshot copies the current values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	snap := make(map[string]any, len(cs.values))
	for k, v := range cs.values {
		snap[k] = v
	}
	return snap
}

// SetConfig merges cfg into the store and then runs every listener.
func (cs *ConfigStore) SetConfig(cfg map[string]any) {
	cs.mu.Lock()
	for k, v := range cfg {
		cs.values[k] = v
	}
	cs.mu.Unlock()
	cs.Reload()
}

// Reload runs every listener without changing any value. Listeners run
// on the caller's goroutine with the store unlocked, so they may read it.
func (cs *ConfigStore) Reload() {
	cs.mu.RLock()
	listeners := append([]func(){}, cs.listeners...)
	cs.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// OnReload adds a listener.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	cs.listeners = append(cs.listeners, fn)
	cs.mu.Unlock()
}

// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Last-value metrics such as shm.opens and server.clients. Owners push
// absolute values; nothing here aggregates.

package control

import "sync"

// MetricsRegistry maps metric names to their last pushed value.
type MetricsRegistry struct {
	mu   sync.RWMutex
	last map[string]any
}

// NewMetricsRegistry returns an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{last: make(map[string]any)}
}

// Set records value as the current reading of key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.last[key] = value
	mr.mu.Unlock()
}

// GetSnapshot copies every current reading.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.last))
	for k, v := range mr.last {
		out[k] = v
	}
	return out
}

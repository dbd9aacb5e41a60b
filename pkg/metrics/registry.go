// Package metrics defines the per-component metrics interfaces used across
// commy, and a process-wide Prometheus registry gate. Each interface's
// concrete implementation lives in pkg/metrics/prometheus and is nil-safe:
// every method tolerates a nil receiver, so a disabled registry costs
// nothing beyond a nil check at each call site.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection process-wide, backed by reg. If
// reg is nil a fresh prometheus.NewRegistry() is used.
func InitRegistry(reg *prometheus.Registry) {
	mu.Lock()
	defer mu.Unlock()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	registry = reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Disable turns metrics collection back off. Used by tests to reset state
// between cases.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}

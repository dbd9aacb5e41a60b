package network

import (
	"sync"
	"time"
)

// heartbeatTracker marks a connection unhealthy after three consecutive
// missed heartbeats.
type heartbeatTracker struct {
	mu       sync.Mutex
	missed   int
	lastSeen time.Time
}

const maxMissedHeartbeats = 3

func newHeartbeatTracker() *heartbeatTracker {
	return &heartbeatTracker{lastSeen: time.Now()}
}

func (h *heartbeatTracker) onHeartbeat(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.missed = 0
	h.lastSeen = now
}

func (h *heartbeatTracker) onMissed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.missed++
}

func (h *heartbeatTracker) unhealthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.missed >= maxMissedHeartbeats
}

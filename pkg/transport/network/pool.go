package network

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/commy-mesh/commy/pkg/metrics"
)

// peerConn bundles a live connection to one peer with its circuit breaker
// and heartbeat liveness state.
type peerConn struct {
	id        string
	conn      net.Conn
	breaker   *CircuitBreaker
	heartbeat *heartbeatTracker
	mu        sync.Mutex // serializes frame exchange on this connection
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	TLSConfig      *tls.Config
	DialTimeout    time.Duration
	CircuitConfig  CircuitConfig
	HeartbeatEvery time.Duration
}

// Pool maintains one TLS connection per peer identity, opening new
// connections lazily and replacing ones whose heartbeat has lapsed.
type Pool struct {
	cfg     PoolConfig
	metrics metrics.NetworkMetrics

	mu    sync.RWMutex
	conns map[string]*peerConn
}

// NewPool builds a connection pool. m may be nil (metrics disabled).
func NewPool(cfg PoolConfig, m metrics.NetworkMetrics) *Pool {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 10 * time.Second
	}
	return &Pool{cfg: cfg, metrics: m, conns: make(map[string]*peerConn)}
}

// get returns a usable connection to peerID at address, dialing a new one
// if none is cached or the cached one is unhealthy.
func (p *Pool) get(peerID, address string) (*peerConn, error) {
	p.mu.RLock()
	pc, ok := p.conns[peerID]
	p.mu.RUnlock()

	if ok && !pc.heartbeat.unhealthy() {
		return pc, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pc, ok := p.conns[peerID]; ok && !pc.heartbeat.unhealthy() {
		return pc, nil
	}
	if pc, ok := p.conns[peerID]; ok {
		pc.conn.Close()
		delete(p.conns, peerID)
		if p.metrics != nil {
			p.metrics.RecordActiveConnections(peerID, -1)
		}
	}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: p.cfg.DialTimeout}, "tcp", address, p.cfg.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("network: dial %s: %w", address, err)
	}

	pc = &peerConn{
		id:        peerID,
		conn:      conn,
		breaker:   NewCircuitBreaker(p.cfg.CircuitConfig),
		heartbeat: newHeartbeatTracker(),
	}
	p.conns[peerID] = pc
	if p.metrics != nil {
		p.metrics.RecordActiveConnections(peerID, 1)
	}
	return pc, nil
}

// Drain closes and forgets peerID's connection, used when its heartbeat
// liveness check fails.
func (p *Pool) Drain(peerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pc, ok := p.conns[peerID]; ok {
		pc.conn.Close()
		delete(p.conns, peerID)
		if p.metrics != nil {
			p.metrics.RecordActiveConnections(peerID, -1)
		}
	}
}

// Close drains every pooled connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, pc := range p.conns {
		pc.conn.Close()
		delete(p.conns, id)
	}
	return nil
}

// CircuitState reports peerID's current circuit breaker state, "closed" if
// no connection has been established yet.
func (p *Pool) CircuitState(peerID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pc, ok := p.conns[peerID]; ok {
		return pc.breaker.State()
	}
	return circuitClosed.String()
}

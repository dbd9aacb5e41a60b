package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/commy-mesh/commy/pkg/metrics"
)

var ErrCircuitOpen = errors.New("network: circuit open for peer")

// ClientConfig tunes retry behavior.
type ClientConfig struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultClientConfig matches the manager configuration table's defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{MaxRetries: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 2 * time.Second}
}

// Client issues request/response exchanges and heartbeats against pooled
// peer connections.
type Client struct {
	pool    *Pool
	cfg     ClientConfig
	metrics metrics.NetworkMetrics
}

// NewClient builds a Client over pool. m may be nil (metrics disabled).
func NewClient(pool *Pool, cfg ClientConfig, m metrics.NetworkMetrics) *Client {
	if cfg.MaxRetries == 0 {
		cfg = DefaultClientConfig()
	}
	return &Client{pool: pool, cfg: cfg, metrics: m}
}

// SendRequest writes a Request frame and waits for its Response, retrying
// transient failures with exponential backoff and full jitter up to
// cfg.MaxRetries, stopping as soon as the peer's circuit breaker refuses a
// call.
func (c *Client) SendRequest(ctx context.Context, peerID, address string, payload []byte) (*Frame, error) {
	pc, err := c.pool.get(peerID, address)
	if err != nil {
		return nil, err
	}

	id, err := uuid.New().MarshalBinary()
	if err != nil {
		return nil, err
	}
	req := &Frame{Version: protocolVersion, Type: MessageRequest, Payload: payload}
	copy(req.CorrelationID[:], id)

	var resp *Frame
	attempt := func() error {
		if !pc.breaker.Allow(time.Now()) {
			return backoff.Permanent(ErrCircuitOpen)
		}

		pc.mu.Lock()
		defer pc.mu.Unlock()

		start := time.Now()
		writeErr := WriteFrame(pc.conn, req)
		var r *Frame
		if writeErr == nil {
			r, err = ReadFrame(pc.conn)
		} else {
			err = writeErr
		}
		dur := time.Since(start)

		if err != nil {
			pc.breaker.RecordFailure(time.Now())
			if c.metrics != nil {
				c.metrics.ObserveFrame(MessageRequest.String(), len(payload), dur, err)
				c.metrics.RecordCircuitState(peerID, pc.breaker.State())
			}
			return err
		}

		pc.breaker.RecordSuccess(time.Now())
		if c.metrics != nil {
			c.metrics.ObserveFrame(MessageRequest.String(), len(payload), dur, nil)
			c.metrics.RecordCircuitState(peerID, pc.breaker.State())
		}
		resp = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.RandomizationFactor = 1.0 // widest jitter cenkalti/backoff supports, approximating full jitter
	bo.Multiplier = 2.0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// SendHeartbeat exchanges a single Heartbeat frame with peerID.
func (c *Client) SendHeartbeat(peerID, address string) error {
	pc, err := c.pool.get(peerID, address)
	if err != nil {
		return err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	if err := WriteFrame(pc.conn, &Frame{Version: protocolVersion, Type: MessageHeartbeat}); err != nil {
		pc.heartbeat.onMissed()
		return err
	}
	resp, err := ReadFrame(pc.conn)
	if err != nil || resp.Type != MessageHeartbeat {
		pc.heartbeat.onMissed()
		return fmt.Errorf("network: heartbeat exchange failed for %s", peerID)
	}
	pc.heartbeat.onHeartbeat(time.Now())
	return nil
}

// RunHeartbeats sends a heartbeat to peerID on every interval until ctx is
// canceled, draining the connection once three are missed consecutively.
func (c *Client) RunHeartbeats(ctx context.Context, peerID, address string) {
	ticker := time.NewTicker(c.pool.cfg.HeartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.SendHeartbeat(peerID, address); err != nil {
				c.pool.mu.RLock()
				pc, ok := c.pool.conns[peerID]
				c.pool.mu.RUnlock()
				if ok && pc.heartbeat.unhealthy() {
					c.pool.Drain(peerID)
				}
			}
		}
	}
}

package network

import (
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/commy-mesh/commy/internal/logger"
	"github.com/commy-mesh/commy/pkg/metrics"
)

// Handler answers one inbound frame with a response frame. Heartbeat frames
// never reach Handler; Server answers them directly.
type Handler func(req *Frame) (*Frame, error)

// ServerConfig configures a Server.
type ServerConfig struct {
	TLSConfig *tls.Config
}

// Server accepts peer connections and dispatches inbound frames to a
// Handler, one goroutine per connection, serialized per connection the same
// way Client serializes writes against peerConn.mu.
type Server struct {
	cfg     ServerConfig
	handler Handler
	metrics metrics.NetworkMetrics

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds a Server. m may be nil (metrics disabled).
func NewServer(cfg ServerConfig, handler Handler, m metrics.NetworkMetrics) *Server {
	return &Server{cfg: cfg, handler: handler, metrics: m}
}

// Serve accepts connections on addr until Close is called.
func (s *Server) Serve(addr string) error {
	ln, err := tls.Listen("tcp", addr, s.cfg.TLSConfig)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	peerID := conn.RemoteAddr().String()

	for {
		req, err := ReadFrame(conn)
		if err != nil {
			return
		}

		start := time.Now()
		var resp *Frame
		switch req.Type {
		case MessageHeartbeat:
			resp = &Frame{Version: protocolVersion, Type: MessageHeartbeat, CorrelationID: req.CorrelationID}
		default:
			out, herr := s.handler(req)
			if herr != nil {
				logger.Warn("network: handler failed", logger.PeerID(peerID), logger.Err(herr))
				out = &Frame{Version: protocolVersion, Type: MessageError, CorrelationID: req.CorrelationID, Payload: []byte(herr.Error())}
			}
			out.CorrelationID = req.CorrelationID
			resp = out
		}

		werr := WriteFrame(conn, resp)
		if s.metrics != nil {
			s.metrics.ObserveFrame(req.Type.String(), len(req.Payload), time.Since(start), werr)
		}
		req.Release()
		if werr != nil {
			return
		}
	}
}

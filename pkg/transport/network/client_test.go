package network

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// startEchoServer accepts one TLS connection and answers every Request
// frame with a Response echoing the payload, and every Heartbeat frame
// with a Heartbeat.
func startEchoServer(t *testing.T, cert tls.Certificate) string {
	t.Helper()
	lis, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			f, err := ReadFrame(conn)
			if err != nil {
				return
			}
			resp := &Frame{Version: protocolVersion, CorrelationID: f.CorrelationID}
			switch f.Type {
			case MessageHeartbeat:
				resp.Type = MessageHeartbeat
			default:
				resp.Type = MessageResponse
				resp.Payload = f.Payload
			}
			if err := WriteFrame(conn, resp); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { lis.Close() })
	return lis.Addr().String()
}

func newTestPool() *Pool {
	return NewPool(PoolConfig{
		TLSConfig:      &tls.Config{InsecureSkipVerify: true},
		CircuitConfig:  DefaultCircuitConfig(),
		HeartbeatEvery: 20 * time.Millisecond,
	}, nil)
}

func TestClient_SendRequestRoundTrip(t *testing.T) {
	cert := generateTestCert(t)
	addr := startEchoServer(t, cert)
	pool := newTestPool()
	defer pool.Close()
	client := NewClient(pool, DefaultClientConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.SendRequest(ctx, "peer-1", addr, []byte("ping"))
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if string(resp.Payload) != "ping" {
		t.Fatalf("expected echoed payload, got %q", resp.Payload)
	}
}

func TestClient_SendHeartbeatSucceeds(t *testing.T) {
	cert := generateTestCert(t)
	addr := startEchoServer(t, cert)
	pool := newTestPool()
	defer pool.Close()
	client := NewClient(pool, DefaultClientConfig(), nil)

	if err := client.SendHeartbeat("peer-1", addr); err != nil {
		t.Fatalf("send heartbeat: %v", err)
	}
}

func TestClient_SurfacesDialFailure(t *testing.T) {
	pool := NewPool(PoolConfig{
		TLSConfig:     &tls.Config{InsecureSkipVerify: true},
		CircuitConfig: CircuitConfig{FailureThreshold: 1, Window: time.Second, Cooldown: time.Minute, SuccessThreshold: 1},
		DialTimeout:   100 * time.Millisecond,
	}, nil)
	defer pool.Close()
	client := NewClient(pool, ClientConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// No server listening at this address: dialing itself fails, which is a
	// pool-level error rather than a breaker trip, so this just confirms
	// SendRequest surfaces a dial failure instead of hanging.
	if _, err := client.SendRequest(ctx, "ghost", "127.0.0.1:1", []byte("x")); err == nil {
		t.Fatal("expected an error when no peer is listening")
	}
}

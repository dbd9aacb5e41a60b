package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// LoadMeshTLSConfig builds the mutual-TLS config the network transport uses
// for both its listener and its outbound dials: mesh membership is closed,
// so every peer certificate is checked against the same CA bundle that
// signed this node's own certificate.
func (c *ManagerConfig) LoadMeshTLSConfig() (*tls.Config, error) {
	if !c.RequireTLS {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("config: load mesh certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if c.TLSCAFile != "" {
		caPEM, err := os.ReadFile(c.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("config: read mesh CA bundle: %w", err)
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("config: mesh CA bundle %q contains no usable certificates", c.TLSCAFile)
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfigTemplate is written out by InitConfig/InitConfigToPath. Every
// field mirrors GetDefaultConfig except require_tls, which is written as
// false so the file loads without certificate paths, and the base directory
// and journal path, which are placed beside the file; jwtSecret is
// substituted per invocation so each generated file gets its own
// development secret.
const sampleConfigTemplate = `# Commy Configuration File
#
# Configuration precedence (highest to lowest):
#   1. Environment variables (COMMY_*)
#   2. This file
#   3. Built-in defaults

logging:
  level: "INFO"
  format: "text"
  output: "stdout"

telemetry:
  enabled: false
  endpoint: "localhost:4317"
  insecure: true
  sample_rate: 1.0

metrics:
  enabled: false
  port: 9090

shutdown_timeout: 30s

manager:
  base_directory: "%s"
  max_file_size: 1Gi
  max_concurrent_files: 1024
  listen_port: 8080
  bind_address: "127.0.0.1"
  heartbeat_timeout: 30s
  cleanup_interval: 60s
  require_tls: false
  # require_tls: true also requires tls_cert_file, tls_key_file and
  # tls_ca_file below: every peer in the mesh must present a certificate
  # signed by tls_ca_file, including this node's own.
  # tls_cert_file: "/etc/commy/mesh.crt"
  # tls_key_file: "/etc/commy/mesh.key"
  # tls_ca_file: "/etc/commy/mesh-ca.crt"
  require_auth: true
  max_auth_failures: 5
  auth_lockout: 300s
  plugin_dirs: []
  lb_policy: "performance-based"
  circuit_breaker_threshold: 5
  circuit_breaker_cooldown: 30s
  jwt_secret: "%s"

database:
  journal_path: "%s"
  sql_mirror:
    enabled: false
  archive:
    enabled: false

api:
  port: 8443
  read_timeout: 15s
  write_timeout: 15s
  idle_timeout: 60s
  shutdown_timeout: 5s
`

// InitConfig writes a sample configuration file to the default location
// ($XDG_CONFIG_HOME/commy/config.yaml) and returns the path written.
// Fails if the file already exists unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path. Fails if the
// file already exists unless force is true.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	secret, err := generateJWTSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	baseDir := filepath.Join(filepath.Dir(path), "shared")
	journalPath := filepath.Join(filepath.Dir(path), "journal")
	content := fmt.Sprintf(sampleConfigTemplate, toSlashForYAML(baseDir), secret, toSlashForYAML(journalPath))

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateJWTSecret produces a 64-character hex string (32 bytes of
// entropy), matching the recommended `openssl rand -hex 32` production
// secret length.
func generateJWTSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// toSlashForYAML converts a filesystem path to forward slashes so it can be
// embedded in a double-quoted YAML string without backslash escaping issues
// on Windows.
func toSlashForYAML(p string) string {
	return filepath.ToSlash(p)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/commy-mesh/commy/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Boolean fields are left as they are, since false cannot be told apart
//     from unset
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyManagerDefaults(&cfg.Manager)
	applyDatabaseDefaults(&cfg.Database)
	applyAPIDefaults(&cfg.API)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyAPIDefaults sets control-plane HTTP server defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)

	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyManagerDefaults sets manager configuration defaults, following the
// manager configuration table: base directory, size caps, transport,
// auth lockout, plugin discovery, and mesh tuning.
func applyManagerDefaults(cfg *ManagerConfig) {
	if cfg.BaseDirectory == "" {
		cfg.BaseDirectory = filepath.Join(os.TempDir(), "commy")
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = bytesize.ByteSize(bytesize.GiB)
	}
	if cfg.MaxConcurrentFiles == 0 {
		cfg.MaxConcurrentFiles = 1024
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 8080
	}
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1"
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = 30 * time.Second
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 60 * time.Second
	}
	// RequireTLS and RequireAuth default to true; since the zero value of
	// bool is false, callers must use GetDefaultConfig (which sets both
	// explicitly) to get the secure-by-default posture. ApplyDefaults
	// alone cannot distinguish an explicit "false" from an unset field.
	if cfg.MaxAuthFailures == 0 {
		cfg.MaxAuthFailures = 5
	}
	if cfg.AuthLockout == 0 {
		cfg.AuthLockout = 300 * time.Second
	}
	if cfg.PluginDirs == nil {
		cfg.PluginDirs = []string{}
	}
	if cfg.LBPolicy == "" {
		cfg.LBPolicy = "performance-based"
	}
	if cfg.CircuitBreakerThreshold == 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitBreakerCooldown == 0 {
		cfg.CircuitBreakerCooldown = 30 * time.Second
	}
}

// applyDatabaseDefaults sets persistence defaults. The embedded journal is
// always required; the SQL mirror and cold archive are opt-in.
func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.JournalPath == "" {
		cfg.JournalPath = filepath.Join(os.TempDir(), "commy", "journal")
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging:   LoggingConfig{},
		Telemetry: TelemetryConfig{Insecure: true},
		Metrics:   MetricsConfig{},
		Manager: ManagerConfig{
			RequireTLS:  true,
			RequireAuth: true,
			TLSCertFile: "mesh.crt",
			TLSKeyFile:  "mesh.key",
			TLSCAFile:   "mesh-ca.crt",
		},
		Database: DatabaseConfig{},
	}

	ApplyDefaults(cfg)
	return cfg
}

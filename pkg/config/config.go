package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/commy-mesh/commy/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the commy manager configuration.
//
// This structure captures static configuration for a commy node:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - Manager settings (base directory, file caps, network, auth, mesh)
//   - Database configuration (embedded journal plus optional SQL mirror and
//     cold archival)
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (COMMY_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Manager configures the shared-file manager facade (C11) and the
	// components it drives.
	Manager ManagerConfig `mapstructure:"manager" yaml:"manager"`

	// Database configures the embedded journal plus optional SQL mirror
	// and cold archival of persisted state.
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// API configures the control-plane HTTP server fronting the manager.
	API APIConfig `mapstructure:"api" yaml:"api"`
}

// APIConfig configures the control-plane HTTP server (pkg/api): the
// request_file/disconnect/list/events/plugins/audit/health/metrics
// surface.
type APIConfig struct {
	// Port is the HTTP listen port.
	// Default: 8443
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout bounds reading the request, including the body.
	// Default: 15s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds writing the response.
	// Default: 15s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout bounds a keep-alive connection's idle time.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	// Default: 5s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ManagerConfig holds the options enumerated in the manager configuration
// table: base directory, size caps, network transport, auth lockout, plugin
// discovery, and mesh load-balancing/circuit-breaker tuning.
type ManagerConfig struct {
	// BaseDirectory is the root for mapped shared-file regions.
	// Default: platform temp dir + "/commy"
	BaseDirectory string `mapstructure:"base_directory" yaml:"base_directory"`

	// MaxFileSize is the per-entry byte cap for a shared-file region.
	// Default: 1 GiB
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size"`

	// MaxConcurrentFiles is the process-wide cap on active shared files.
	// Default: 1024
	MaxConcurrentFiles int `mapstructure:"max_concurrent_files" validate:"omitempty,min=1" yaml:"max_concurrent_files"`

	// ListenPort is the network transport port.
	// Default: 8080
	ListenPort int `mapstructure:"listen_port" validate:"omitempty,min=1,max=65535" yaml:"listen_port"`

	// BindAddress is the network transport bind address.
	// Default: 127.0.0.1
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// HeartbeatTimeout is the connection liveness threshold.
	// Default: 30s
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout"`

	// CleanupInterval is the TTL sweep cadence for stale shared files.
	// Default: 60s
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`

	// RequireTLS rejects plaintext network connections.
	// Default: true
	RequireTLS bool `mapstructure:"require_tls" yaml:"require_tls"`

	// TLSCertFile is this node's certificate, presented to peers dialing
	// in and to peers it dials out to. Required when RequireTLS is true.
	TLSCertFile string `mapstructure:"tls_cert_file" yaml:"tls_cert_file,omitempty"`

	// TLSKeyFile is the private key matching TLSCertFile.
	TLSKeyFile string `mapstructure:"tls_key_file" yaml:"tls_key_file,omitempty"`

	// TLSCAFile is the CA bundle used to verify peer certificates. Mesh
	// membership is closed: only peers presenting a certificate signed by
	// this CA are accepted, so this is effectively mandatory mTLS rather
	// than plain server-auth TLS.
	TLSCAFile string `mapstructure:"tls_ca_file" yaml:"tls_ca_file,omitempty"`

	// RequireAuth rejects connections with missing credentials.
	// Default: true
	RequireAuth bool `mapstructure:"require_auth" yaml:"require_auth"`

	// MaxAuthFailures is the consecutive-failure lockout threshold.
	// Default: 5
	MaxAuthFailures int `mapstructure:"max_auth_failures" validate:"omitempty,min=1" yaml:"max_auth_failures"`

	// AuthLockout is the lockout duration once MaxAuthFailures is reached.
	// Default: 300s
	AuthLockout time.Duration `mapstructure:"auth_lockout" yaml:"auth_lockout"`

	// PluginDirs lists directories scanned for plugin type libraries at
	// startup.
	// Default: []
	PluginDirs []string `mapstructure:"plugin_dirs" yaml:"plugin_dirs,omitempty"`

	// LBPolicy selects the mesh load-balancing policy.
	// Valid values: performance-based, round-robin, least-connections
	// Default: performance-based
	LBPolicy string `mapstructure:"lb_policy" validate:"omitempty,oneof=performance-based round-robin least-connections" yaml:"lb_policy"`

	// CircuitBreakerThreshold is the number of consecutive failures that
	// opens the circuit to a peer.
	// Default: 5
	CircuitBreakerThreshold int `mapstructure:"circuit_breaker_threshold" validate:"omitempty,min=1" yaml:"circuit_breaker_threshold"`

	// CircuitBreakerCooldown is the half-open delay before a tripped
	// circuit is probed again.
	// Default: 30s
	CircuitBreakerCooldown time.Duration `mapstructure:"circuit_breaker_cooldown" yaml:"circuit_breaker_cooldown"`

	// JWTSecret signs and verifies bearer tokens issued by the auth
	// provider's HMAC path. A random secret is generated by InitConfig for
	// development; production deployments should override it via the
	// COMMY_MANAGER_JWT_SECRET environment variable.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	// Set to false in production with a TLS-enabled collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// When enabled, CPU and memory profiles are continuously sent to a Pyroscope server
// for flame graph visualization and performance analysis.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// DatabaseConfig configures persisted state: the embedded journal
// (entry metadata, free-list, audit log) and optional SQL mirror / cold
// archival of that journal.
type DatabaseConfig struct {
	// JournalPath is the directory for the embedded badger journal.
	// Default: platform temp dir + "/commy/journal"
	JournalPath string `mapstructure:"journal_path" validate:"required" yaml:"journal_path"`

	// SQLMirror optionally mirrors control-plane state to a Postgres
	// database for external reporting and durability.
	SQLMirror SQLMirrorConfig `mapstructure:"sql_mirror" yaml:"sql_mirror"`

	// Archive optionally uploads rotated journal segments to S3-compatible
	// cold storage.
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
}

// SQLMirrorConfig configures the optional Postgres mirror of control-plane
// state, used for durability and ad hoc reporting outside the hot path.
type SQLMirrorConfig struct {
	// Enabled controls whether the SQL mirror is active.
	// Default: false (the embedded journal is authoritative by itself)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// DSN is the Postgres connection string.
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`

	// MigrationsPath is the directory of golang-migrate migration files.
	MigrationsPath string `mapstructure:"migrations_path" yaml:"migrations_path,omitempty"`
}

// ArchiveConfig configures cold archival of rotated journal segments to
// S3-compatible object storage.
type ArchiveConfig struct {
	// Enabled controls whether archival uploads are active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Bucket is the destination S3 bucket.
	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`

	// Region is the S3 region.
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Prefix is prepended to archived object keys.
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (COMMY_*)
//  2. Configuration file
//  3. Default values
//
// When no configuration file is found, Load returns GetDefaultConfig()
// as it is: environment variables are not applied in that case.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: User-friendly error with instructions if config not found
func MustLoad(configPath string) (*Config, error) {
	// Determine config path
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  commyd init\n\n"+
				"Or specify a custom config file:\n"+
				"  commyd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  commyd init --config %s",
				configPath, configPath)
		}
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with restricted permissions (0600 = owner read/write only).
	// This is important because config files may carry SQL mirror DSNs.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use COMMY_ prefix and underscores
	// Example: COMMY_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("COMMY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/commy/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Other errors are problems
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use human-readable
// sizes like "1Gi", "500Mi", "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to ByteSize
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse human-readable string like "1Gi", "500Mi", "100MB"
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to time.Duration
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse duration string like "30s", "5m", "1h"
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "commy")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "commy")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against struct tag constraints plus a handful of
// cross-field rules the `validate` tag can't express on its own (telemetry
// requiring an endpoint once enabled, the journal path always being
// required regardless of which optional sinks are enabled).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("config validation failed: telemetry.endpoint is required when telemetry is enabled")
	}

	if cfg.Database.JournalPath == "" {
		return fmt.Errorf("config validation failed: database.journal_path is required")
	}

	if cfg.Database.SQLMirror.Enabled && cfg.Database.SQLMirror.DSN == "" {
		return fmt.Errorf("config validation failed: database.sql_mirror.dsn is required when the SQL mirror is enabled")
	}

	if cfg.Database.Archive.Enabled && cfg.Database.Archive.Bucket == "" {
		return fmt.Errorf("config validation failed: database.archive.bucket is required when archival is enabled")
	}

	if cfg.Manager.RequireTLS && (cfg.Manager.TLSCertFile == "" || cfg.Manager.TLSKeyFile == "") {
		return fmt.Errorf("config validation failed: manager.tls_cert_file and manager.tls_key_file are required when require_tls is true")
	}

	return nil
}

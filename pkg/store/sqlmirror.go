package store

import (
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/commy-mesh/commy/pkg/manager"
	"github.com/commy-mesh/commy/pkg/metrics"
)

// auditRecord is the SQL mirror's row shape for a manager.AuditEntry. It
// exists purely for ad hoc reporting outside the hot path; the badger
// journal, not this table, is authoritative.
type auditRecord struct {
	Seq       uint64 `gorm:"primaryKey"`
	Timestamp time.Time
	Identity  string
	Operation string
	Outcome   string
	Detail    string
}

func (auditRecord) TableName() string { return "audit_entries" }

// SQLMirror mirrors journaled audit entries into Postgres for reporting
// queries the embedded journal isn't suited to answer. It is never the
// source of truth and is safe to drop and rebuild from a journal replay.
type SQLMirror struct {
	db      *gorm.DB
	metrics metrics.StoreMetrics
}

// OpenSQLMirror runs pending migrations from migrationsPath against dsn,
// then opens a gorm connection for mirroring.
func OpenSQLMirror(dsn, migrationsPath string, m metrics.StoreMetrics) (*SQLMirror, error) {
	if err := runMigrations(dsn, migrationsPath); err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open sql mirror: %w", err)
	}
	return &SQLMirror{db: db, metrics: m}, nil
}

// runMigrations applies every pending migration in migrationsPath. It
// relies on golang-migrate's postgres advisory lock so concurrent
// instances never race applying the same schema change.
func runMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("store: create migrator: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

// Mirror upserts one journaled entry identified by its journal sequence
// number, so replaying the same segment twice is idempotent.
func (s *SQLMirror) Mirror(seq uint64, entry manager.AuditEntry) error {
	start := time.Now()
	row := auditRecord{
		Seq:       seq,
		Timestamp: entry.Timestamp,
		Identity:  entry.Identity,
		Operation: entry.Operation,
		Outcome:   string(entry.Outcome),
		Detail:    entry.Detail,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seq"}},
		DoNothing: true,
	}).Create(&row).Error
	if s.metrics != nil {
		s.metrics.ObserveSQLMirror("mirror", time.Since(start), err)
	}
	return err
}

// Close releases the underlying connection pool.
func (s *SQLMirror) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

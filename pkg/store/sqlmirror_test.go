//go:build e2e

package store

import (
	"os"
	"testing"
	"time"

	"github.com/commy-mesh/commy/pkg/manager"
)

// These tests require a reachable Postgres instance (COMMY_TEST_POSTGRES_DSN)
// with migrations applied from pkg/store/migrations, matching the teacher
// suite's convention of gating database-backed tests behind the e2e build
// tag rather than mocking the driver.

func testMirror(t *testing.T) *SQLMirror {
	t.Helper()
	dsn := os.Getenv("COMMY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("COMMY_TEST_POSTGRES_DSN not set")
	}
	m, err := OpenSQLMirror(dsn, "migrations", nil)
	if err != nil {
		t.Fatalf("OpenSQLMirror failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSQLMirror_MirrorIsIdempotent(t *testing.T) {
	m := testMirror(t)
	entry := manager.AuditEntry{
		Timestamp: time.Now(),
		Identity:  "alice",
		Operation: "request_file",
		Outcome:   manager.AuditSuccess,
		Detail:    "idempotency check",
	}
	if err := m.Mirror(1, entry); err != nil {
		t.Fatalf("first Mirror failed: %v", err)
	}
	if err := m.Mirror(1, entry); err != nil {
		t.Fatalf("repeat Mirror of the same sequence should be a no-op, got: %v", err)
	}
}

package manager

import "time"

// AuditOutcome labels whether an audited operation succeeded.
type AuditOutcome string

const (
	AuditSuccess AuditOutcome = "success"
	AuditFailure AuditOutcome = "failure"
)

// AuditEntry is one record in the audit log: every privileged operation
// records timestamp, identity (when known), operation, and outcome.
type AuditEntry struct {
	Timestamp time.Time
	Identity  string
	Operation string
	Outcome   AuditOutcome
	Detail    string
}

// AuditSink persists AuditEntry records. Implementations (pkg/store) back
// this with a durable journal; tests use an in-memory one.
type AuditSink interface {
	Record(entry AuditEntry)
}

// NopAuditSink discards every entry, used when no sink is configured.
type NopAuditSink struct{}

func (NopAuditSink) Record(AuditEntry) {}

package api

import (
	"net/http"
	"strconv"

	"github.com/commy-mesh/commy/pkg/manager"
)

// AuditJournal is the subset of store.AuditJournal the audit handler needs,
// kept as an interface so pkg/api doesn't import pkg/store.
type AuditJournal interface {
	Replay(fn func(seq uint64, entry manager.AuditEntry) error) error
}

// AuditHandler exposes a read-only tail of the audit journal.
type AuditHandler struct {
	journal AuditJournal
}

func NewAuditHandler(journal AuditJournal) *AuditHandler {
	return &AuditHandler{journal: journal}
}

type auditRecordView struct {
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
	Identity  string `json:"identity"`
	Operation string `json:"operation"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
}

// Tail handles GET /api/v1/audit?limit=N, returning up to the last N
// entries (default 100) in sequence order.
func (h *AuditHandler) Tail(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		serviceUnavailable(w, "audit journal not configured")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var all []auditRecordView
	err := h.journal.Replay(func(seq uint64, entry manager.AuditEntry) error {
		all = append(all, auditRecordView{
			Seq:       seq,
			Timestamp: entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Identity:  entry.Identity,
			Operation: entry.Operation,
			Outcome:   string(entry.Outcome),
			Detail:    entry.Detail,
		})
		return nil
	})
	if err != nil {
		internalError(w, err.Error())
		return
	}

	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	writeJSONOK(w, all)
}

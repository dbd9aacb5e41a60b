// Package store is the persistence layer: a badger-backed audit journal
// that is always on, an optional Postgres mirror of that journal for ad
// hoc reporting, and optional S3 cold archival of rotated journal
// segments.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/commy-mesh/commy/pkg/manager"
	"github.com/commy-mesh/commy/pkg/metrics"
)

// auditKeyPrefix namespaces audit records in the journal, same
// prefixed-key convention idalloc uses for its free list: "a:<8-byte
// bigendian sequence>" sorts in append order, so a prefix scan replays the
// log oldest-first.
const auditKeyPrefix = "a:"

// AuditJournal is a durable, append-only manager.AuditSink backed by
// badger. Every entry is assigned a monotonic sequence number so the
// journal can be replayed in order and mirrored incrementally.
type AuditJournal struct {
	db      *badgerdb.DB
	seq     atomic.Uint64
	metrics metrics.StoreMetrics
}

// OpenAuditJournal opens (or creates) the journal at dir.
func OpenAuditJournal(dir string, m metrics.StoreMetrics) (*AuditJournal, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open audit journal: %w", err)
	}

	j := &AuditJournal{db: db, metrics: m}
	last, err := j.lastSequence()
	if err != nil {
		db.Close()
		return nil, err
	}
	j.seq.Store(last)
	return j, nil
}

func (j *AuditJournal) lastSequence() (uint64, error) {
	var last uint64
	err := j.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(auditKeyPrefix)
		opts.PrefetchValues = false
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append([]byte(auditKeyPrefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		it.Seek(seekKey)
		if it.ValidForPrefix(opts.Prefix) {
			key := it.Item().Key()
			last = binary.BigEndian.Uint64(key[len(auditKeyPrefix):])
		}
		return nil
	})
	return last, err
}

func sequenceKey(seq uint64) []byte {
	b := make([]byte, len(auditKeyPrefix)+8)
	copy(b, auditKeyPrefix)
	binary.BigEndian.PutUint64(b[len(auditKeyPrefix):], seq)
	return b
}

// Record implements manager.AuditSink: appends entry to the journal under
// the next sequence number. Failures are logged via metrics, not returned,
// matching manager.AuditSink's fire-and-forget contract — audit logging
// must never block or fail the operation it is recording.
func (j *AuditJournal) Record(entry manager.AuditEntry) {
	start := time.Now()
	seq := j.seq.Add(1)

	payload, err := json.Marshal(entry)
	if err == nil {
		err = j.db.Update(func(txn *badgerdb.Txn) error {
			return txn.Set(sequenceKey(seq), payload)
		})
	}
	if j.metrics != nil {
		j.metrics.ObserveAuditAppend(time.Since(start), err)
	}
}

// Replay calls fn for every journaled entry in sequence order, stopping
// early if fn returns an error.
func (j *AuditJournal) Replay(fn func(seq uint64, entry manager.AuditEntry) error) error {
	return j.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(auditKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			seq := binary.BigEndian.Uint64(item.Key()[len(auditKeyPrefix):])

			var entry manager.AuditEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("store: decode audit entry %d: %w", seq, err)
			}
			if err := fn(seq, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying badger store.
func (j *AuditJournal) Close() error {
	return j.db.Close()
}

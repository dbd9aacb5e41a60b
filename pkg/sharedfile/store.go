// Package sharedfile is C4: the memory-mapped file lifecycle manager.
// Exposes request/disconnect/list/force-retire over a per-identifier map,
// backed by an ID allocator and a fixed, CRC-checked region header.
package sharedfile

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commy-mesh/commy/pkg/model"
)

// IDAllocator is C5's contract, as consumed by C4. Decoupled via interface
// so sharedfile never imports idalloc directly.
type IDAllocator interface {
	Allocate() (uint64, error)
	Release(id uint64) error
}

type liveEntry struct {
	mu     sync.Mutex
	entry  *model.SharedFileEntry
	region *Region
	conns  map[string]*model.Connection
}

// Store manages the set of live SharedFileEntry instances for one process.
// The entry map is read-mostly: readers (lookups, listing) take a shared
// lock, structural changes (create, retire) take the exclusive lock. Each
// entry additionally carries its own lock, held only for the duration of a
// lifecycle transition.
type Store struct {
	baseDir string
	alloc   IDAllocator

	mu      sync.RWMutex
	entries map[string]*liveEntry // keyed by identifier
	byID    map[uint64]*liveEntry
}

// Config configures a Store.
type Config struct {
	BaseDirectory string
	Allocator     IDAllocator
}

// New builds a Store rooted at cfg.BaseDirectory.
func New(cfg Config) *Store {
	return &Store{
		baseDir: cfg.BaseDirectory,
		alloc:   cfg.Allocator,
		entries: make(map[string]*liveEntry),
		byID:    make(map[uint64]*liveEntry),
	}
}

// RequestResult is returned by Request on success.
type RequestResult struct {
	FileID     uint64
	Connection *model.Connection
	Path       string
	Capacity   uint64
}

// Request resolves req.Identifier to an existing entry or creates one, per
// the existence policy in req.Policy. Every code path that can fail leaves
// no partial state: an aborted create releases its allocated id and
// removes the partial file. identity is the authenticated caller's subject,
// used to populate and check a SharedFileEntry's ACL; it is independent of
// clientID, which only labels the resulting Connection.
func (s *Store) Request(req *model.SharedFileRequest, clientID, identity string) (*RequestResult, error) {
	if req.Identifier == "" {
		return nil, model.NewFault(model.KindValidation, "sharedfile.request", model.ErrValidation).
			WithDetail("reason", "empty identifier")
	}

	s.mu.RLock()
	existing, found := s.entries[req.Identifier]
	s.mu.RUnlock()

	if found {
		switch req.Policy {
		case model.CreateOnly:
			return nil, model.NewFault(model.KindAlreadyExists, "sharedfile.request", model.ErrAlreadyExists).
				WithDetail("identifier", req.Identifier)
		case model.CreateOrConnect, model.ConnectOnly:
			return s.connect(existing, req, clientID, identity)
		}
	}

	if req.Policy == model.ConnectOnly {
		return nil, model.NewFault(model.KindNotFound, "sharedfile.request", model.ErrNotFound).
			WithDetail("identifier", req.Identifier)
	}

	return s.create(req, clientID, identity)
}

// connect attaches a new Connection to le on behalf of identity, narrowing
// req.Permissions against the entry's ACL: the manager facade's layer-one
// permission check (done before this is ever reached) only says identity
// is allowed to perform request_file in general, not that it may touch
// this specific file. An identity absent from the ACL entirely is refused;
// one present is granted the intersection of what it asked for and what
// its ACL entry allows, which may legitimately be empty.
func (s *Store) connect(le *liveEntry, req *model.SharedFileRequest, clientID, identity string) (*RequestResult, error) {
	le.mu.Lock()
	defer le.mu.Unlock()

	if le.entry.Status != model.EntryActive {
		return nil, model.NewFault(model.KindNotFound, "sharedfile.request", model.ErrNotFound).
			WithDetail("identifier", req.Identifier).WithDetail("status", le.entry.Status.String())
	}

	granted, aclOK := le.entry.ACL[identity]
	if !aclOK {
		return nil, model.NewFault(model.KindAuth, "sharedfile.request", model.ErrAuth).
			WithDetail("identifier", req.Identifier).WithDetail("identity", identity)
	}
	allowed := req.Permissions.Intersect(granted)

	conn := &model.Connection{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		FileID:        le.entry.FileID,
		Granted:       allowed,
		EstablishedAt: now(),
		LastHeartbeat: now(),
	}
	le.conns[conn.ID] = conn
	le.entry.RefCount++
	le.entry.LastAccess = now()

	return &RequestResult{
		FileID:     le.entry.FileID,
		Connection: conn,
		Path:       le.entry.Path,
		Capacity:   le.region.Capacity(),
	}, nil
}

func (s *Store) create(req *model.SharedFileRequest, clientID, identity string) (*RequestResult, error) {
	if req.MaxSize == 0 {
		return nil, model.NewFault(model.KindValidation, "sharedfile.request", model.ErrValidation).
			WithDetail("reason", "max_size must be non-zero when creating")
	}

	id, err := s.alloc.Allocate()
	if err != nil {
		return nil, fmt.Errorf("sharedfile: allocate id: %w", err)
	}

	path := filepath.Join(s.baseDir, req.Identifier+".mmap")
	region, err := createRegion(path, req.MaxSize)
	if err != nil {
		_ = removeFile(path)
		_ = s.alloc.Release(id)
		return nil, model.NewFault(model.KindFatal, "sharedfile.request", err)
	}

	entry := &model.SharedFileEntry{
		FileID:      id,
		Identifier:  req.Identifier,
		Path:        path,
		Size:        req.MaxSize,
		RefCount:    0,
		Status:      model.EntryActive,
		CreatedAt:   now(),
		LastAccess:  now(),
		AutoCleanup: true,
		Owner:       identity,
		ACL:         map[string]model.PermissionSet{identity: req.Permissions},
		Metadata:    make(map[string]string),
	}

	le := &liveEntry{entry: entry, region: region, conns: make(map[string]*model.Connection)}

	s.mu.Lock()
	s.entries[req.Identifier] = le
	s.byID[id] = le
	s.mu.Unlock()

	return s.connect(le, req, clientID, identity)
}

// Disconnect terminates conn, decrementing its entry's reference count.
// A disconnect on an already-terminated connection is a no-op.
func (s *Store) Disconnect(fileID uint64, connID string, reason model.DisconnectReason) error {
	s.mu.RLock()
	le, ok := s.byID[fileID]
	s.mu.RUnlock()
	if !ok {
		return model.NewFault(model.KindNotFound, "sharedfile.disconnect", model.ErrNotFound).
			WithDetail("file_id", fileID)
	}

	le.mu.Lock()
	defer le.mu.Unlock()

	conn, ok := le.conns[connID]
	if !ok || conn.Disconnected() {
		return nil
	}

	conn.Reason = reason
	conn.DisconnectedAt = now()
	delete(le.conns, connID)
	if le.entry.RefCount > 0 {
		le.entry.RefCount--
	}
	return nil
}

// Get returns a snapshot of fileID's entry, if live.
func (s *Store) Get(fileID uint64) (model.SharedFileEntry, bool) {
	s.mu.RLock()
	le, ok := s.byID[fileID]
	s.mu.RUnlock()
	if !ok {
		return model.SharedFileEntry{}, false
	}
	le.mu.Lock()
	defer le.mu.Unlock()
	return *le.entry, true
}

// ListActive returns a summary of every live entry. The returned slice is
// a copy, safe to read without further locking.
func (s *Store) ListActive() []model.SharedFileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.SharedFileEntry, 0, len(s.entries))
	for _, le := range s.entries {
		le.mu.Lock()
		out = append(out, *le.entry)
		le.mu.Unlock()
	}
	return out
}

// ForceRetire unconditionally retires fileID, releasing its id and
// removing the backing file unless PersistAfterDisconnect is set.
func (s *Store) ForceRetire(fileID uint64, reason string) error {
	s.mu.Lock()
	le, ok := s.byID[fileID]
	if !ok {
		s.mu.Unlock()
		return model.NewFault(model.KindNotFound, "sharedfile.force_retire", model.ErrNotFound).
			WithDetail("file_id", fileID)
	}
	delete(s.entries, le.entry.Identifier)
	delete(s.byID, fileID)
	s.mu.Unlock()

	return s.retireLocked(le)
}

func (s *Store) retireLocked(le *liveEntry) error {
	le.mu.Lock()
	defer le.mu.Unlock()

	le.entry.Status = model.EntryRetired
	if err := le.region.Sync(); err != nil {
		return fmt.Errorf("sharedfile: sync before retire: %w", err)
	}
	if err := le.region.Close(); err != nil {
		return fmt.Errorf("sharedfile: close region: %w", err)
	}
	if err := s.alloc.Release(le.entry.FileID); err != nil {
		return fmt.Errorf("sharedfile: release id: %w", err)
	}
	if !le.entry.PersistAfterDisconnect {
		_ = removeFile(le.entry.Path)
	}
	return nil
}

// collectGCCandidates snapshots file ids eligible for retirement: refcount
// zero, and either TTL elapsed or auto_cleanup set. Entries with
// PersistAfterDisconnect are never candidates.
func (s *Store) collectGCCandidates() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []uint64
	for id, le := range s.byID {
		le.mu.Lock()
		e := le.entry
		eligible := e.RefCount == 0 && e.Status == model.EntryActive &&
			((e.TTL > 0 && now().Sub(e.LastAccess) >= e.TTL && !e.PersistAfterDisconnect) ||
				(e.AutoCleanup && !e.PersistAfterDisconnect))
		le.mu.Unlock()
		if eligible {
			out = append(out, id)
		}
	}
	return out
}

var now = time.Now

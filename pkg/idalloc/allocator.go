// Package idalloc is C5: the file-id allocator. It hands out a monotonic
// uint64 counter, reusing the smallest released id before minting a new
// one, and journals every allocation and release to badger so a restart
// can resume without reusing a live id.
package idalloc

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// Key namespace, same prefixed-key convention as the teacher's metadata
// store: "cnt:" holds the next fresh id, "r:<8-byte-bigendian>" marks a
// released id available for reuse. The released-id keys sort in numeric
// order, which is what lets a prefix scan recover smallest-first.
const (
	keyCounter     = "cnt:next"
	prefixReleased = "r:"
	releasedKeyLen = len(prefixReleased) + 8
)

func releasedKey(id uint64) []byte {
	b := make([]byte, releasedKeyLen)
	copy(b, prefixReleased)
	binary.BigEndian.PutUint64(b[len(prefixReleased):], id)
	return b
}

// minHeap is a min-heap of released ids, smallest-first reuse.
type minHeap []uint64

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(uint64)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Allocator hands out and reclaims file ids. Operations are short, guarded
// by a single mutex, per spec.md's "internal mutex; operations are short".
type Allocator struct {
	mu       sync.Mutex
	db       *badgerdb.DB
	released minHeap
}

// Open opens (or creates) the free-list journal at dir and replays it into
// memory.
func Open(dir string) (*Allocator, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("idalloc: open badger store: %w", err)
	}

	a := &Allocator{db: db}
	if err := a.loadReleased(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Allocator) loadReleased() error {
	return a.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixReleased)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := it.Item().Key()
			id := binary.BigEndian.Uint64(key[len(prefixReleased):])
			a.released = append(a.released, id)
		}
		heap.Init(&a.released)
		return nil
	})
}

// Allocate returns the smallest released id if one is available, otherwise
// mints a new one from the monotonic counter.
func (a *Allocator) Allocate() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.released) > 0 {
		id := heap.Pop(&a.released).(uint64)
		err := a.db.Update(func(txn *badgerdb.Txn) error {
			return txn.Delete(releasedKey(id))
		})
		if err != nil {
			heap.Push(&a.released, id)
			return 0, fmt.Errorf("idalloc: delete released id %d: %w", id, err)
		}
		return id, nil
	}

	var next uint64
	err := a.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyCounter))
		switch {
		case err == badgerdb.ErrKeyNotFound:
			next = 1
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				next = binary.BigEndian.Uint64(val) + 1
				return nil
			}); err != nil {
				return err
			}
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		return txn.Set([]byte(keyCounter), buf)
	})
	if err != nil {
		return 0, fmt.Errorf("idalloc: advance counter: %w", err)
	}
	return next, nil
}

// Release marks id available for reuse by a future Allocate call.
func (a *Allocator) Release(id uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(releasedKey(id), nil)
	}); err != nil {
		return fmt.Errorf("idalloc: journal release of id %d: %w", id, err)
	}
	heap.Push(&a.released, id)
	return nil
}

// Close releases the underlying badger store.
func (a *Allocator) Close() error {
	return a.db.Close()
}

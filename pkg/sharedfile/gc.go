package sharedfile

import (
	"context"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

func removeFile(path string) error {
	return os.Remove(path)
}

// GCConfig configures the background sweep.
type GCConfig struct {
	Interval time.Duration
	// MaxConcurrentRetires bounds the fan-out of a single sweep.
	MaxConcurrentRetires int
}

// DefaultGCConfig matches the manager configuration table's cleanup_interval
// default.
func DefaultGCConfig() GCConfig {
	return GCConfig{Interval: 60 * time.Second, MaxConcurrentRetires: 8}
}

// GC runs Store's background TTL sweep: entries with refcount 0, without
// persist_after_disconnect, and with TTL elapsed or auto_cleanup set are
// retired. GC never blocks Store's critical path — it only ever takes the
// entry map's read lock to snapshot candidates, then retires each through
// the normal ForceRetire path.
type GC struct {
	store  *Store
	cfg    GCConfig
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// NewGC builds a GC sweeping store at cfg.Interval.
func NewGC(store *Store, cfg GCConfig) *GC {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultGCConfig().Interval
	}
	if cfg.MaxConcurrentRetires <= 0 {
		cfg.MaxConcurrentRetires = DefaultGCConfig().MaxConcurrentRetires
	}
	return &GC{store: store, cfg: cfg}
}

// Start begins the sweep loop. Calling Start twice is a no-op.
func (g *GC) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	g.mu.Unlock()

	go g.loop(ctx)
}

// Stop cancels the sweep loop and waits for the in-flight sweep to finish.
func (g *GC) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	cancel := g.cancel
	done := g.done
	g.mu.Unlock()

	cancel()
	<-done
}

func (g *GC) loop(ctx context.Context) {
	defer close(g.done)

	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep(ctx)
		}
	}
}

func (g *GC) sweep(ctx context.Context) {
	candidates := g.store.collectGCCandidates()
	if len(candidates) == 0 {
		return
	}

	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(g.cfg.MaxConcurrentRetires)

	for _, fileID := range candidates {
		fileID := fileID
		grp.Go(func() error {
			_ = g.store.ForceRetire(fileID, "gc: ttl elapsed or auto_cleanup")
			return nil
		})
	}
	_ = grp.Wait()
}

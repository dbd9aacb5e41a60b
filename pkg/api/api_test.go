package api

import (
	"testing"

	"github.com/commy-mesh/commy/pkg/auth"
	"github.com/commy-mesh/commy/pkg/manager"
	"github.com/commy-mesh/commy/pkg/mesh"
	"github.com/commy-mesh/commy/pkg/perfmon"
	"github.com/commy-mesh/commy/pkg/sharedfile"
	"github.com/commy-mesh/commy/pkg/transport/selector"
)

type fakeAllocator struct {
	next uint64
}

func (a *fakeAllocator) Allocate() (uint64, error) {
	a.next++
	return a.next, nil
}
func (a *fakeAllocator) Release(uint64) error { return nil }

type recordingAudit struct {
	entries []manager.AuditEntry
}

func (r *recordingAudit) Record(e manager.AuditEntry) { r.entries = append(r.entries, e) }

// newTestManager builds a Manager wired the same way pkg/manager's own
// tests do: a mock auth provider, an in-process store, and no network
// transport, so the handlers under test only exercise local requests.
func newTestManager(t *testing.T) (*manager.Manager, *sharedfile.Store) {
	t.Helper()
	store := sharedfile.New(sharedfile.Config{BaseDirectory: t.TempDir(), Allocator: &fakeAllocator{}})
	authenticator := auth.NewAuthenticator(auth.NewMockProvider())
	perf := perfmon.New(perfmon.DefaultConfig(), nil)
	reg := mesh.NewRegistry()
	sel := selector.New(perf, reg, mesh.RoundRobin, false)

	mgr := manager.New(manager.Config{
		Store:         store,
		Authenticator: authenticator,
		PerfMonitor:   perf,
		Selector:      sel,
		MeshRegistry:  reg,
		Events:        manager.NewEventBus(),
	})
	return mgr, store
}

func validToken(perms ...string) string {
	tok := "mock:alice"
	if len(perms) > 0 {
		tok += ":"
		for i, p := range perms {
			if i > 0 {
				tok += ","
			}
			tok += p
		}
	}
	return tok
}

package idalloc

import "testing"

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAllocate_MonotonicWhenNothingReleased(t *testing.T) {
	a := newTestAllocator(t)

	ids := make([]uint64, 5)
	for i := range ids {
		id, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		ids[i] = id
	}
	for i, id := range ids {
		if id != uint64(i+1) {
			t.Errorf("expected id %d, got %d", i+1, id)
		}
	}
}

func TestAllocate_ReusesSmallestReleased(t *testing.T) {
	a := newTestAllocator(t)

	for i := 0; i < 3; i++ {
		if _, err := a.Allocate(); err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
	}
	if err := a.Release(2); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := a.Release(1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	id, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected smallest released id 1, got %d", id)
	}

	id, err = a.Allocate()
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if id != 2 {
		t.Errorf("expected next released id 2, got %d", id)
	}

	id, err = a.Allocate()
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if id != 4 {
		t.Errorf("expected fresh id 4 after released ids exhausted, got %d", id)
	}
}

func TestAllocator_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := a.Allocate(); err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
	}
	if err := a.Release(2); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	id, err := reopened.Allocate()
	if err != nil {
		t.Fatalf("Allocate after reopen failed: %v", err)
	}
	if id != 2 {
		t.Errorf("expected released id 2 to survive reopen, got %d", id)
	}

	id, err = reopened.Allocate()
	if err != nil {
		t.Fatalf("Allocate after reopen failed: %v", err)
	}
	if id != 4 {
		t.Errorf("expected counter to resume at 4, got %d", id)
	}
}

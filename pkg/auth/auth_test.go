package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockTestProvider is a test Provider.
type mockTestProvider struct {
	name      string
	canHandle func(token string) bool
	result    *Result
	err       error
}

func (m *mockTestProvider) CanHandle(token string) bool { return m.canHandle(token) }
func (m *mockTestProvider) Name() string                { return m.name }
func (m *mockTestProvider) Validate(_ context.Context, _ string) (*Result, error) {
	return m.result, m.err
}

func TestAuthenticator_ProvidersTriedInOrder(t *testing.T) {
	var order []string
	mkProvider := func(name string, handle bool) *mockTestProvider {
		return &mockTestProvider{
			name: name,
			canHandle: func(_ string) bool {
				order = append(order, name)
				return handle
			},
			result: &Result{Identity: Identity{Subject: name}},
		}
	}

	auth := NewAuthenticator(mkProvider("first", false), mkProvider("second", true), mkProvider("third", true))
	res, err := auth.Validate(context.Background(), "token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Identity.Provider != "second" {
		t.Errorf("Provider = %q, want %q", res.Identity.Provider, "second")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("CanHandle call order = %v, want [first second]", order)
	}
}

func TestAuthenticator_NoProviderCanHandle(t *testing.T) {
	p := &mockTestProvider{
		name:      "nope",
		canHandle: func(_ string) bool { return false },
	}
	auth := NewAuthenticator(p)
	_, err := auth.Validate(context.Background(), "token")
	if !errors.Is(err, ErrUnsupportedMechanism) {
		t.Errorf("err = %v, want ErrUnsupportedMechanism", err)
	}
}

func TestAuthenticator_ErrUnsupportedMechanism_ContinuesToNext(t *testing.T) {
	jwt := &mockTestProvider{
		name:      "jwt",
		canHandle: func(_ string) bool { return true },
		err:       ErrUnsupportedMechanism,
	}
	mock := &mockTestProvider{
		name:      "mock",
		canHandle: func(_ string) bool { return true },
		result:    &Result{Identity: Identity{Subject: "mock"}},
	}
	auth := NewAuthenticator(jwt, mock)
	res, err := auth.Validate(context.Background(), "token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Identity.Provider != "mock" {
		t.Errorf("Provider = %q, want %q", res.Identity.Provider, "mock")
	}
}

func TestAuthenticator_AllReturnErrUnsupported(t *testing.T) {
	p1 := &mockTestProvider{name: "a", canHandle: func(_ string) bool { return true }, err: ErrUnsupportedMechanism}
	p2 := &mockTestProvider{name: "b", canHandle: func(_ string) bool { return true }, err: ErrUnsupportedMechanism}
	auth := NewAuthenticator(p1, p2)
	_, err := auth.Validate(context.Background(), "token")
	if !errors.Is(err, ErrUnsupportedMechanism) {
		t.Errorf("err = %v, want ErrUnsupportedMechanism", err)
	}
}

func TestAuthenticator_Providers_ReturnsCopy(t *testing.T) {
	p := &mockTestProvider{name: "orig", canHandle: func(_ string) bool { return false }}
	auth := NewAuthenticator(p)

	providers := auth.Providers()
	if len(providers) != 1 || providers[0].Name() != "orig" {
		t.Fatal("Providers() should return the registered provider")
	}

	providers[0] = &mockTestProvider{name: "mutated"}
	if auth.Providers()[0].Name() != "orig" {
		t.Error("mutating Providers() return value should not affect authenticator")
	}
}

func TestAuthenticator_Providers_NilAuthenticator(t *testing.T) {
	var auth *Authenticator
	if auth.Providers() != nil {
		t.Error("nil Authenticator.Providers() should return nil")
	}
}

func TestAuthenticator_Providers_Empty(t *testing.T) {
	auth := NewAuthenticator()
	if auth.Providers() != nil {
		t.Error("empty Authenticator.Providers() should return nil")
	}
}

func TestAuthenticator_ConcurrentValidate(t *testing.T) {
	p := &mockTestProvider{
		name:      "concurrent",
		canHandle: func(_ string) bool { return true },
		result:    &Result{Identity: Identity{Subject: "concurrent"}},
	}
	auth := NewAuthenticator(p)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := auth.Validate(context.Background(), "token")
			if err != nil {
				t.Errorf("concurrent validate error: %v", err)
			}
			if res == nil {
				t.Error("expected a result")
			}
		}()
	}
	wg.Wait()
}

func TestAuthenticator_AuthFailedPropagated(t *testing.T) {
	p := &mockTestProvider{
		name:      "failing",
		canHandle: func(_ string) bool { return true },
		err:       ErrAuthFailed,
	}
	auth := NewAuthenticator(p)
	_, err := auth.Validate(context.Background(), "token")
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestPermissionSet(t *testing.T) {
	set := NewPermissionSet(PermissionConnectFile, PermissionListFiles)

	if !set.Has(PermissionConnectFile) {
		t.Error("expected PermissionConnectFile to be granted")
	}
	if set.Has(PermissionCreateFile) {
		t.Error("did not expect PermissionCreateFile to be granted")
	}
	if !set.Intersects(PermissionConnectFile, PermissionListFiles) {
		t.Error("expected both required permissions to be satisfied")
	}
	if set.Intersects(PermissionConnectFile, PermissionCreateFile) {
		t.Error("did not expect PermissionCreateFile to be satisfied")
	}
	missing := set.Missing(PermissionConnectFile, PermissionCreateFile)
	if len(missing) != 1 || missing[0] != PermissionCreateFile {
		t.Errorf("Missing = %v, want [create_file]", missing)
	}
}

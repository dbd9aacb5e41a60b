package auth

import (
	"context"
	"strings"
)

// mockTokenPrefix marks tokens handled by MockProvider: "mock:<subject>:<perm1,perm2,...>".
const mockTokenPrefix = "mock:"

// MockProvider is a deterministic provider for tests and local development.
// Tokens take the form "mock:<subject>[:<comma-separated permissions>]"; a
// token without the "mock:" prefix or with an empty subject is rejected with
// ErrInvalidCredentials. The token "mock:deny" always fails with
// ErrAuthFailed, for exercising failure paths.
type MockProvider struct{}

// NewMockProvider constructs a MockProvider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

// CanHandle recognizes the fixed mock token prefix.
func (p *MockProvider) CanHandle(token string) bool {
	return strings.HasPrefix(token, mockTokenPrefix)
}

// Name identifies this provider in audit records.
func (p *MockProvider) Name() string { return "mock" }

// Validate parses the mock token format deterministically; no external
// state or clock is consulted.
func (p *MockProvider) Validate(_ context.Context, token string) (*Result, error) {
	if !strings.HasPrefix(token, mockTokenPrefix) {
		return nil, ErrInvalidCredentials
	}
	rest := strings.TrimPrefix(token, mockTokenPrefix)
	parts := strings.SplitN(rest, ":", 2)
	subject := parts[0]
	if subject == "" {
		return nil, ErrInvalidCredentials
	}
	if subject == "deny" {
		return nil, ErrAuthFailed
	}

	perms := NewPermissionSet()
	if len(parts) == 2 && parts[1] != "" {
		for _, p := range strings.Split(parts[1], ",") {
			perms[Permission(p)] = struct{}{}
		}
	}

	return &Result{Identity: Identity{
		Subject:     subject,
		Permissions: perms,
	}}, nil
}

package auth

import (
	"context"
	"errors"
)

// Result is the outcome of a successful Validate call.
type Result struct {
	Identity Identity
}

// Provider validates a bearer token into an identity and permission set.
//
// Thread safety: implementations must be safe for concurrent use.
type Provider interface {
	// CanHandle returns true if this provider recognizes the token's shape
	// (e.g. a JWT's three dot-separated segments, or the mock provider's
	// fixed sentinel prefix) without fully validating it.
	CanHandle(token string) bool

	// Validate authenticates token and returns the resulting identity.
	// Returns ErrAuthFailed (wrapped) if the token is well-formed but
	// invalid (expired, bad signature, revoked).
	Validate(ctx context.Context, token string) (*Result, error)

	// Name identifies the provider for audit logging.
	Name() string
}

// Authenticator chains Providers and tries each in turn.
//
// Thread safety: safe for concurrent use once constructed; Providers is
// read-only afterward.
type Authenticator struct {
	providers []Provider
}

// NewAuthenticator builds an Authenticator trying providers in order.
func NewAuthenticator(providers ...Provider) *Authenticator {
	return &Authenticator{providers: providers}
}

// Validate delegates to each provider whose CanHandle returns true, in
// order. A provider that returns ErrUnsupportedMechanism is skipped in
// favor of the next one; any other error (or a success) is returned
// immediately. Returns ErrUnsupportedMechanism if no provider accepts the
// token.
func (a *Authenticator) Validate(ctx context.Context, token string) (*Result, error) {
	for _, p := range a.providers {
		if !p.CanHandle(token) {
			continue
		}
		res, err := p.Validate(ctx, token)
		if errors.Is(err, ErrUnsupportedMechanism) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res.Identity.Provider = p.Name()
		return res, nil
	}
	return nil, ErrUnsupportedMechanism
}

// Providers returns a copy of the registered providers, for diagnostics.
// It returns nil for a nil Authenticator or one with no providers.
func (a *Authenticator) Providers() []Provider {
	if a == nil || len(a.providers) == 0 {
		return nil
	}
	return append([]Provider(nil), a.providers...)
}

// Standard authentication errors.
var (
	// ErrAuthFailed indicates a well-formed token failed validation
	// (bad signature, expired, revoked).
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrUnsupportedMechanism indicates no registered provider recognized
	// the token's shape.
	ErrUnsupportedMechanism = errors.New("auth: unsupported authentication mechanism")

	// ErrInvalidCredentials indicates the token is malformed and could not
	// be parsed at all, distinct from a parseable-but-rejected token.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Package auth validates bearer credentials presented to the manager facade
// into an authenticated identity and permission set.
//
// A Provider exposes a single capability: Validate(ctx, token) -> (*Result, error).
// Providers are chained by an Authenticator so multiple mechanisms (a
// production JWT-backed provider, a deterministic mock used by tests) can be
// tried in order. Every validation outcome, success or failure, is meant to
// be recorded by the caller in the audit log alongside the identity (when
// known), the operation attempted, and the outcome.
package auth

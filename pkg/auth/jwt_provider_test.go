package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSigningKey = []byte("test-signing-key")

func testKeyFunc(_ *jwt.Token) (interface{}, error) {
	return testSigningKey, nil
}

func signTestToken(t *testing.T, claims jwtClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestJWTProvider_CanHandle(t *testing.T) {
	p := NewJWTProvider(testKeyFunc, "commy")
	if !p.CanHandle("aaa.bbb.ccc") {
		t.Error("expected a three-segment token to be handled")
	}
	if p.CanHandle("mock:alice") {
		t.Error("did not expect a mock token to be handled")
	}
}

func TestJWTProvider_ValidateSuccess(t *testing.T) {
	p := NewJWTProvider(testKeyFunc, "commy")
	token := signTestToken(t, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "commy",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: "connect_file list_active_files",
	})

	res, err := p.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Identity.Subject != "alice" {
		t.Errorf("Subject = %q, want alice", res.Identity.Subject)
	}
	if !res.Identity.Permissions.Has(PermissionConnectFile) || !res.Identity.Permissions.Has(PermissionListFiles) {
		t.Errorf("Permissions = %v, missing expected scopes", res.Identity.Permissions)
	}
}

func TestJWTProvider_ValidateExpired(t *testing.T) {
	p := NewJWTProvider(testKeyFunc, "commy")
	token := signTestToken(t, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "commy",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := p.Validate(context.Background(), token)
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestJWTProvider_ValidateWrongIssuer(t *testing.T) {
	p := NewJWTProvider(testKeyFunc, "commy")
	token := signTestToken(t, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := p.Validate(context.Background(), token)
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestJWTProvider_ValidateMissingSubject(t *testing.T) {
	p := NewJWTProvider(testKeyFunc, "commy")
	token := signTestToken(t, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "commy",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := p.Validate(context.Background(), token)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestJWTProvider_ValidateMalformed(t *testing.T) {
	p := NewJWTProvider(testKeyFunc, "commy")
	_, err := p.Validate(context.Background(), "not.a.jwt")
	if !errors.Is(err, ErrInvalidCredentials) && !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrInvalidCredentials or ErrAuthFailed", err)
	}
}

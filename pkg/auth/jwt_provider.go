package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// jwtClaims is the claim set a bearer token must carry. Permissions are
// encoded as a space-separated scope string, following the "scope" claim
// convention used by OAuth2 bearer tokens.
type jwtClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// JWTProvider validates HMAC- or RSA-signed bearer tokens issued by an
// external authentication service.
type JWTProvider struct {
	keyFunc jwt.Keyfunc
	issuer  string
}

// NewJWTProvider builds a JWTProvider that verifies tokens using keyFunc
// (resolving the signing key from the token's header, e.g. by "kid") and
// rejects tokens whose issuer claim does not equal issuer.
func NewJWTProvider(keyFunc jwt.Keyfunc, issuer string) *JWTProvider {
	return &JWTProvider{keyFunc: keyFunc, issuer: issuer}
}

// CanHandle recognizes a JWT by its three dot-separated base64url segments.
func (p *JWTProvider) CanHandle(token string) bool {
	return strings.Count(token, ".") == 2
}

// Name identifies this provider in audit records.
func (p *JWTProvider) Name() string { return "jwt" }

// Validate parses and verifies token, mapping its scope claim into a
// PermissionSet.
func (p *JWTProvider) Validate(_ context.Context, token string) (*Result, error) {
	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, p.keyFunc,
		jwt.WithIssuer(p.issuer),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512"}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if !parsed.Valid {
		return nil, ErrAuthFailed
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrInvalidCredentials)
	}

	perms := NewPermissionSet()
	for _, scope := range strings.Fields(claims.Scope) {
		perms[Permission(scope)] = struct{}{}
	}

	return &Result{Identity: Identity{
		Subject:     subject,
		Permissions: perms,
	}}, nil
}

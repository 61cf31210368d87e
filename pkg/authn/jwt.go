// Package authn implements Bearer authentication for the HTTP surface:
// JWT-via-JWKS validation (grounded verbatim on the teacher's
// pkg/auth/jwt.go) plus a supplemented static API-key mode (spec.md §6
// names both "Bearer JWT or API key" as valid credentials; the teacher
// only shows JWT, so the API-key side is modeled the same way the
// teacher shapes its auth config: a small interface plus an in-memory
// implementation).
package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims is the subset of a validated JWT's payload the rest of this
// module cares about, mirroring the teacher's auth.Claims.
type Claims struct {
	Subject string
	Role    string
	Custom  map[string]any
}

// JWTValidator validates bearer tokens against a JWKS endpoint, caching
// and auto-refreshing the key set. Grounded on pkg/auth/jwt.go's
// JWTValidator almost unchanged -- this is exactly the concern the
// teacher already solves.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTValidator registers jwksURL for auto-refresh (every 15 minutes,
// same cadence as the teacher) and performs an initial fetch so
// misconfiguration is caught at startup, not on the first request.
func NewJWTValidator(ctx context.Context, jwksURL, issuer, audience string) (*JWTValidator, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("authn: register jwks url: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("authn: fetch jwks from %s: %w", jwksURL, err)
	}
	return &JWTValidator{jwksURL: jwksURL, cache: cache, issuer: issuer, audience: audience}, nil
}

// Validate parses and verifies tokenString's signature, expiry, issuer
// and audience, returning the extracted Claims.
func (v *JWTValidator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("authn: fetch jwks: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("authn: invalid token: %w", err)
	}

	claims := &Claims{Subject: token.Subject(), Custom: make(map[string]any)}
	if role, ok := token.Get("role"); ok {
		if s, ok := role.(string); ok {
			claims.Role = s
		}
	}
	for it := token.Iterate(ctx); it.Next(ctx); {
		pair := it.Pair()
		key, _ := pair.Key.(string)
		switch key {
		case "sub", "role", "iss", "aud", "exp", "iat", "nbf":
			continue
		default:
			claims.Custom[key] = pair.Value
		}
	}
	return claims, nil
}

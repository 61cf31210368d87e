package authn

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned by Authenticate when neither a valid
// JWT nor a known API key was presented.
var ErrUnauthenticated = errors.New("authn: missing or invalid credentials")

// Identity is the authenticated caller, regardless of which credential
// mode resolved it.
type Identity struct {
	Subject string
	Role    string
}

// Authenticator resolves an Authorization header into an Identity,
// trying Bearer JWT first (if a JWTValidator is configured) and falling
// back to the API-key store (if configured). Either may be nil, in
// which case that mode is simply skipped -- a deployment can run
// JWT-only, API-key-only, or both (spec.md §6 names both as valid).
type Authenticator struct {
	JWT     *JWTValidator
	APIKeys APIKeyStore
}

// Authenticate inspects the raw Authorization header value (e.g.
// "Bearer eyJ..." or "Bearer ork_live_...") and returns the resolved
// Identity, or ErrUnauthenticated if nothing validates.
func (a *Authenticator) Authenticate(ctx context.Context, authorizationHeader string) (*Identity, error) {
	token := strings.TrimPrefix(authorizationHeader, "Bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	if a.JWT != nil {
		if claims, err := a.JWT.Validate(ctx, token); err == nil {
			return &Identity{Subject: claims.Subject, Role: claims.Role}, nil
		}
	}

	if a.APIKeys != nil {
		if rec, ok := a.APIKeys.Lookup(ctx, token); ok {
			return &Identity{Subject: rec.Owner, Role: rec.Role}, nil
		}
	}

	return nil, ErrUnauthenticated
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var errMissingToken = errors.New("auth: missing bearer token")

// contextKey is an unexported type used for context keys in this package.
// Using a package-private type prevents collisions: only this package can
// read or write identity values in the context.
type contextKey string

const identityKey contextKey = "identity"

// unauthorizedBody is the one and only rejection response the middleware
// sends. It deliberately does not distinguish between a missing header, a
// malformed header, a bad signature, or an expired token — telling an
// attacker which check failed would help them.
const unauthorizedBody = `{"error":"unauthorized","message":"Authentication failed"}`

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the "Authorization: Bearer <token>" header, validates
// it, and stores the identity in the request context. If the token is missing
// or invalid, it returns 401 Unauthorized and stops the request chain.
//
// CORS preflight (OPTIONS) requests pass through unconditionally: browsers
// send them without credentials, so rejecting them would break every
// cross-origin call to a protected route. No identity is attached.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := extractIdentity(r, tokens)
			if err != nil {
				http.Error(w, unauthorizedBody, http.StatusUnauthorized)
				return
			}

			// Store the identity in context so handlers can read it
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the authenticated identity from the request
// context.
//
// Returns (Identity{}, false) if the request is anonymous (no valid token).
//
// Usage in handlers:
//
//	identity, ok := auth.IdentityFromContext(r.Context())
//	if !ok {
//	    // anonymous request
//	}
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// extractIdentity reads the bearer token from the Authorization header and
// validates it.
func extractIdentity(r *http.Request, tokens *TokenService) (Identity, error) {
	header := r.Header.Get("Authorization")

	// "Bearer " is case-insensitive per RFC 6750, and real clients do vary.
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return Identity{}, errMissingToken
	}

	return tokens.Validate(strings.TrimSpace(header[len(prefix):]))
}

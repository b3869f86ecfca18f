package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. Using a package-private type
// means only THIS package can create a key of type contextKey, so nobody
// else can read or shadow the value.
type contextKey string

const usernameKey contextKey = "username"

// Realm is sent in the WWW-Authenticate challenge.
const Realm = "lesson-api"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It accepts HTTP Basic credentials checked against creds. When tokens is
// non-nil it also accepts "Authorization: Bearer <jwt>". Anything else gets
// 401 with a Basic challenge, so browsers and HTTP clients know to prompt.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler that wraps it:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	    })
//	}
func RequireAuth(creds *CredentialStore, tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, ok := authenticate(r, creds, tokens)
			if !ok {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext returns the authenticated account name.
// Returns ("", false) outside a RequireAuth-protected route.
func UsernameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(usernameKey).(string)
	return name, ok && name != ""
}

// ContextWithUsername stores username the way RequireAuth does. Handler
// tests use it to skip the middleware.
func ContextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

func authenticate(r *http.Request, creds *CredentialStore, tokens *TokenService) (string, bool) {
	if user, pass, ok := r.BasicAuth(); ok {
		return user, creds.Verify(user, pass)
	}

	if tokens == nil {
		return "", false
	}
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return "", false
	}
	sub, err := tokens.Validate(strings.TrimSpace(raw))
	if err != nil || sub != creds.Username() {
		return "", false
	}
	return sub, true
}

// writeUnauthorized sends the same error envelope the handlers use.
func writeUnauthorized(w http.ResponseWriter) {
	const msg = "valid credentials required"
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": msg,
		"detail":  msg,
	})
}

package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/auth"
)

// AuthHandler serves the endpoints that are about the caller's identity.
//
// HANDLER RESPONSIBILITIES:
//   - HandleMe    → echo the authenticated account name
//   - HandleToken → trade Basic credentials for a bearer token
//
// tokens is nil when JWT_SECRET is unset; the server then doesn't register
// /api/token at all.
type AuthHandler struct {
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, logger: logger}
}

// MeResponse is the body of GET /api/me.
type MeResponse struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// TokenResponse is the body of POST /api/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// HandleMe returns the authenticated account.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets the username in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeError(w, apperror.Unauthorized("valid credentials required"))
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		Username: username,
		Message:  fmt.Sprintf("Hello, %s! Authentication succeeded.", username),
	})
}

// HandleToken issues a JWT for the caller.
//
// HTTP: POST /api/token
// Auth: Required. The caller proves the password once with Basic auth and
// then sends "Authorization: Bearer <access_token>" until it expires.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok || h.tokens == nil {
		writeError(w, apperror.Unauthorized("valid credentials required"))
		return
	}

	token, err := h.tokens.Generate(username)
	if err != nil {
		h.logger.Error("token generation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.logger.Info("token issued", slog.String("username", username))
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokens.TTL().Seconds()),
	})
}

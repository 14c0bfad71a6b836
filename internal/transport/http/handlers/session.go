package http_handlers

import (
	"net/http"

	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/infrastructure/security"
	"github.com/baechuer/meeting-machine/internal/transport/http/dto"
	"github.com/baechuer/meeting-machine/internal/transport/http/response"
)

type SessionVerifier interface {
	VerifySessionToken(token string) (security.SessionClaims, error)
}

// SessionHandler lets the site read and drop the cookie set at signup.
type SessionHandler struct {
	tokens        SessionVerifier
	secureCookies bool
}

func NewSessionHandler(tokens SessionVerifier, secureCookies bool) *SessionHandler {
	return &SessionHandler{tokens: tokens, secureCookies: secureCookies}
}

// Session handles GET /api/auth/session
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	raw, err := security.ReadSessionCookie(r)
	if err != nil || raw == "" {
		response.WriteError(w, r, domain.ErrUnauthorized())
		return
	}

	claims, err := h.tokens.VerifySessionToken(raw)
	if err != nil {
		// a bad or expired cookie is useless to the client
		security.ClearSessionCookie(w, h.secureCookies)
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.SessionResponse{
		Authenticated: true,
		UserID:        claims.UserID,
		ExpiresAt:     claims.Exp,
	})
}

// SignOut handles POST /api/auth/signout. Tokens are stateless, so this only
// clears the cookie.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	security.ClearSessionCookie(w, h.secureCookies)
	response.OK(w, map[string]bool{"success": true})
}

package handlers

import (
	"net/http"

	"Skymarshal/internal/api/middleware"
	"Skymarshal/internal/core/auth"
	"Skymarshal/internal/core/sessions"
)

// AuthHandler serves login, session-check, and logout.
type AuthHandler struct {
	manager  *auth.Manager
	registry *sessions.Registry
	cookies  *middleware.SessionManager
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(manager *auth.Manager, registry *sessions.Registry, cookies *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{manager: manager, registry: registry, cookies: cookies}
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.manager.Login(r.Context(), req.Handle, req.Password); err != nil {
		WriteError(w, err)
		return
	}

	s := h.registry.Create(h.manager.Handle(), h.manager.DID())
	if err := h.cookies.Issue(w, r, s); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"handle":  h.manager.Handle(),
		"did":     h.manager.DID(),
	})
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	s := h.cookies.Lookup(r)
	if s == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"handle":        s.Handle,
		"did":           s.DID,
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Drop(w, r)
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

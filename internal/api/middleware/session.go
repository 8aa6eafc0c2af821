package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"

	appsessions "Skymarshal/internal/core/sessions"
)

const (
	cookieName = "skymarshal_session"
	sessionKey = "session_id"
)

type contextKey string

const sessionContextKey contextKey = "api_session"

// SessionManager binds the signed session cookie to the in-memory
// session registry.
type SessionManager struct {
	store    *sessions.CookieStore
	registry *appsessions.Registry
}

// NewSessionManager creates a manager with a signed cookie store.
func NewSessionManager(secret []byte, registry *appsessions.Registry) *SessionManager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   0, // session cookie; server-side TTL governs expiry
	}
	return &SessionManager{store: store, registry: registry}
}

// Issue stores the registry session id in the cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, r *http.Request, s *appsessions.Session) error {
	cookie, _ := m.store.Get(r, cookieName)
	cookie.Values[sessionKey] = s.ID
	return cookie.Save(r, w)
}

// Drop clears both the cookie and the registry entry.
func (m *SessionManager) Drop(w http.ResponseWriter, r *http.Request) {
	if s := m.Lookup(r); s != nil {
		m.registry.Clear(s.ID)
	}
	cookie, _ := m.store.Get(r, cookieName)
	cookie.Options.MaxAge = -1
	_ = cookie.Save(r, w)
}

// Lookup resolves the request's live session, touching last-accessed.
// Returns nil for anonymous or expired requests.
func (m *SessionManager) Lookup(r *http.Request) *appsessions.Session {
	cookie, err := m.store.Get(r, cookieName)
	if err != nil {
		return nil
	}
	id, _ := cookie.Values[sessionKey].(string)
	if id == "" {
		return nil
	}
	s, ok := m.registry.Get(id)
	if !ok {
		return nil
	}
	return s
}

// RequireSession rejects requests without a live session and injects the
// session into the request context.
func (m *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Lookup(r)
		if s == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":"Not logged in","kind":"auth"}`))
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSession returns the session injected by RequireSession, or nil.
func GetSession(r *http.Request) *appsessions.Session {
	s, _ := r.Context().Value(sessionContextKey).(*appsessions.Session)
	return s
}

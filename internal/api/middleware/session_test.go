package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appsessions "Skymarshal/internal/core/sessions"
)

func newTestManager(t *testing.T) (*SessionManager, *appsessions.Registry) {
	t.Helper()
	registry := appsessions.NewRegistry(time.Hour)
	t.Cleanup(registry.Close)
	return NewSessionManager([]byte("test-secret-test-secret-test-sec"), registry), registry
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	mgr, _ := newTestManager(t)
	handler := mgr.RequireSession(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without a session")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/content/summary", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"kind":"auth"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIssueThenRequireSession(t *testing.T) {
	mgr, registry := newTestManager(t)
	s := registry.Create("alice.bsky.social", "did:plc:alice")

	// Issue the cookie on a login-style response.
	issueRec := httptest.NewRecorder()
	if err := mgr.Issue(issueRec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), s); err != nil {
		t.Fatal(err)
	}
	cookies := issueRec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no cookie issued")
	}

	var seen *appsessions.Session
	handler := mgr.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSession(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/content/summary", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if seen == nil || seen.Handle != "alice.bsky.social" {
		t.Fatalf("context session = %+v", seen)
	}
}

func TestDropClearsRegistry(t *testing.T) {
	mgr, registry := newTestManager(t)
	s := registry.Create("alice.bsky.social", "did:plc:alice")

	issueRec := httptest.NewRecorder()
	if err := mgr.Issue(issueRec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), s); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	for _, c := range issueRec.Result().Cookies() {
		req.AddCookie(c)
	}
	mgr.Drop(httptest.NewRecorder(), req)

	if _, ok := registry.Get(s.ID); ok {
		t.Error("registry entry survived Drop")
	}
}

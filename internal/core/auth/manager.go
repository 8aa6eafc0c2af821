// Package auth manages credential login, session persistence, and
// re-authentication for the authenticated ATProto client.
package auth

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bluesky-social/indigo/xrpc"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/atproto/identity"
	"Skymarshal/pkg/errors"
)

// CredentialPrompter supplies credentials when no session can be resumed.
// The CLI implements it with a terminal prompt; the HTTP facade never
// prompts and returns an error instead.
type CredentialPrompter interface {
	PromptCredentials(ctx context.Context) (handle, password string, err error)
}

// Manager owns one authenticated client and its persisted session blob.
type Manager struct {
	mu       sync.Mutex
	client   *client.Client
	dir      string
	prompter CredentialPrompter

	usedRegularPassword bool
}

// sessionBlob is the persisted session file. Losing it is benign; the user
// logs in again.
type sessionBlob struct {
	Handle              string    `json:"handle"`
	DID                 string    `json:"did"`
	AccessJwt           string    `json:"access_jwt"`
	RefreshJwt          string    `json:"refresh_jwt"`
	UsedRegularPassword bool      `json:"used_regular_password,omitempty"`
	SavedAt             time.Time `json:"saved_at"`
}

// NewManager creates a manager around an unauthenticated client. dir is the
// storage root holding session.json.
func NewManager(c *client.Client, dir string, prompter CredentialPrompter) *Manager {
	return &Manager{client: c, dir: dir, prompter: prompter}
}

// Client returns the managed client. Callers needing auth should go
// through CallWithReauth.
func (m *Manager) Client() *client.Client { return m.client }

// DID returns the authenticated DID, or "".
func (m *Manager) DID() string { return m.client.DID() }

// Handle returns the authenticated handle, or "".
func (m *Manager) Handle() string { return m.client.Handle() }

// UsedRegularPassword reports whether the last login looked like a full
// account password rather than an app password.
func (m *Manager) UsedRegularPassword() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedRegularPassword
}

// LooksLikeAppPassword reports whether pw has the 19-character
// xxxx-xxxx-xxxx-xxxx app-password shape.
func LooksLikeAppPassword(pw string) bool {
	if len(pw) != 19 {
		return false
	}
	for i, r := range pw {
		if i == 4 || i == 9 || i == 14 {
			if r != '-' {
				return false
			}
			continue
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return false
		}
	}
	return true
}

// Login normalizes the handle, creates a session, and persists the blob
// (best-effort). A non-app-password shape is warned about but accepted.
func (m *Manager) Login(ctx context.Context, handle, password string) error {
	normalized, err := identity.ValidateHandle(handle)
	if err != nil {
		return err
	}
	if !LooksLikeAppPassword(password) {
		log.Printf("[AUTH] Warning: password for %s does not look like an app password; consider creating one in Bluesky settings", normalized)
	}

	if _, err := m.client.CreateSession(ctx, normalized, password); err != nil {
		return err
	}

	m.mu.Lock()
	m.usedRegularPassword = !LooksLikeAppPassword(password)
	m.mu.Unlock()

	m.persistSession()
	log.Printf("[AUTH] Logged in as %s (%s)", m.client.Handle(), m.client.DID())
	return nil
}

// ResumeSession reconstructs an authenticated client from the persisted
// blob, refreshing the tokens to prove they are still live.
func (m *Manager) ResumeSession(ctx context.Context) bool {
	blob, err := m.readSession()
	if err != nil {
		return false
	}
	m.client.SetAuthInfo(&xrpc.AuthInfo{
		Did:        blob.DID,
		Handle:     blob.Handle,
		AccessJwt:  blob.AccessJwt,
		RefreshJwt: blob.RefreshJwt,
	})
	if err := m.client.RefreshSession(ctx); err != nil {
		log.Printf("[AUTH] Persisted session for %s is no longer valid", blob.Handle)
		m.client.ClearAuth()
		return false
	}
	m.mu.Lock()
	m.usedRegularPassword = blob.UsedRegularPassword
	m.mu.Unlock()
	m.persistSession()
	log.Printf("[AUTH] Resumed session for %s", m.client.Handle())
	return true
}

// EnsureAuthenticated returns true once a live client exists, trying the
// persisted session first and prompting for credentials as a last resort.
func (m *Manager) EnsureAuthenticated(ctx context.Context) bool {
	if m.client.Authenticated() {
		return true
	}
	if m.ResumeSession(ctx) {
		return true
	}
	if m.prompter == nil {
		return false
	}
	handle, password, err := m.prompter.PromptCredentials(ctx)
	if err != nil {
		return false
	}
	return m.Login(ctx, handle, password) == nil
}

// CallWithReauth runs fn and, on the first Auth-kind failure, drops the
// dead session, re-authenticates once, and retries. A second Auth failure
// surfaces to the caller: bulk operations must not trigger re-auth storms
// on repeated genuine permission errors.
func (m *Manager) CallWithReauth(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || errors.KindOf(err) != errors.Auth {
		return err
	}

	m.client.ClearAuth()
	if !m.EnsureAuthenticated(ctx) {
		return err
	}
	return fn()
}

// Logout clears in-memory auth state and deletes the persisted blob.
func (m *Manager) Logout() {
	m.client.ClearAuth()
	m.mu.Lock()
	m.usedRegularPassword = false
	m.mu.Unlock()
	if err := os.Remove(m.sessionPath()); err != nil && !os.IsNotExist(err) {
		log.Printf("[AUTH] Failed to remove session file: %v", err)
	}
}

func (m *Manager) sessionPath() string {
	return filepath.Join(m.dir, "session.json")
}

// persistSession writes the blob best-effort; failure is non-fatal.
func (m *Manager) persistSession() {
	info := m.client.AuthInfo()
	if info == nil {
		return
	}
	m.mu.Lock()
	regular := m.usedRegularPassword
	m.mu.Unlock()

	blob := sessionBlob{
		Handle:              info.Handle,
		DID:                 info.Did,
		AccessJwt:           info.AccessJwt,
		RefreshJwt:          info.RefreshJwt,
		UsedRegularPassword: regular,
		SavedAt:             time.Now().UTC(),
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(m.sessionPath(), data, 0o600); err != nil {
		log.Printf("[AUTH] Failed to persist session: %v", err)
	}
}

func (m *Manager) readSession() (*sessionBlob, error) {
	data, err := os.ReadFile(m.sessionPath())
	if err != nil {
		return nil, err
	}
	var blob sessionBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, err
	}
	if blob.AccessJwt == "" || blob.RefreshJwt == "" {
		return nil, errors.New(errors.Auth, "session file incomplete")
	}
	return &blob, nil
}

// Package sessions tracks logged-in API sessions in memory. Sessions
// expire after a TTL of inactivity and are swept hourly.
package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

const cleanupInterval = time.Hour

// Session is one authenticated API session.
type Session struct {
	ID           string    `json:"id"`
	Handle       string    `json:"handle"`
	DID          string    `json:"did"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Registry is a thread-safe session map keyed by random-hex ids.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts the hourly sweep.
func NewRegistry(ttl time.Duration) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Create registers a new session for handle and returns it.
func (r *Registry) Create(handle, did string) *Session {
	id := newSessionID()
	now := r.now()
	s := &Session{ID: id, Handle: handle, DID: did, CreatedAt: now, LastAccessed: now}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	log.Printf("[SESSIONS] Created session for %s", handle)
	return s
}

// Get returns the live session for id, updating last_accessed. Expired
// sessions are treated as absent.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	if r.expired(s) {
		delete(r.sessions, id)
		return nil, false
	}
	s.LastAccessed = r.now()
	return s, true
}

// Touch refreshes last_accessed without returning the session.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && !r.expired(s) {
		s.LastAccessed = r.now()
	}
}

// Clear removes the session for id.
func (r *Registry) Clear(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// GetByHandle returns the most-recently-accessed live session for handle.
func (r *Registry) GetByHandle(handle string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *Session
	for _, s := range r.sessions {
		if s.Handle != handle || r.expired(s) {
			continue
		}
		if best == nil || s.LastAccessed.After(best.LastAccessed) {
			best = s
		}
	}
	return best, best != nil
}

// Close stops the cleanup loop.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) expired(s *Session) bool {
	return r.now().Sub(s.LastAccessed) > r.ttl
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if r.expired(s) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[SESSIONS] Swept %d expired sessions", removed)
	}
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("sessions: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

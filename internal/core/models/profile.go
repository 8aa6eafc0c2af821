package models

import "time"

// Profile is the cached view of an actor. DID is the primary key; handles
// can change and are treated as display aliases.
type Profile struct {
	DID            string    `json:"did"`
	Handle         string    `json:"handle"`
	DisplayName    string    `json:"display_name,omitempty"`
	Description    string    `json:"description,omitempty"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	PostsCount     int       `json:"posts_count"`
	Avatar         string    `json:"avatar,omitempty"`
	LastUpdated    time.Time `json:"last_updated,omitempty"`
}

// Stale reports whether the cached profile is older than ttl.
func (p *Profile) Stale(ttl time.Duration) bool {
	if p.LastUpdated.IsZero() {
		return true
	}
	return time.Since(p.LastUpdated) > ttl
}

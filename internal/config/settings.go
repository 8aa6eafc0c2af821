// Package config loads and persists user settings for Skymarshal.
// Settings live in <dir>/settings.json where <dir> defaults to
// $HOME/.skymarshal and can be overridden with SKYMARSHAL_DIR.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings are the user-tunable knobs. Zero values are replaced by
// defaults at load time, so a partial settings.json is fine.
type Settings struct {
	// PDSHost is the XRPC host used for all authenticated calls.
	PDSHost string `json:"pds_host"`

	// DownloadLimit caps records fetched per category during export.
	DownloadLimit int `json:"download_limit"`

	// RecordsPageSize is the listRecords page size (wire max 100).
	RecordsPageSize int `json:"records_page_size"`

	// FetchOrder is the default content ordering: "newest" or "oldest".
	FetchOrder string `json:"fetch_order"`

	// CategoryWorkers bounds the export fan-out across posts/likes/reposts.
	CategoryWorkers int `json:"category_workers"`

	// HydrationWorkers bounds parallel getPosts hydration batches.
	HydrationWorkers int `json:"hydration_workers"`

	// NetworkWorkers bounds the network fetcher's profile and orbit pools.
	NetworkWorkers int `json:"network_workers"`

	MaxFollowers int `json:"max_followers"`
	MaxFollowing int `json:"max_following"`

	// OrbitCap limits handles scanned for interconnections in balanced mode.
	OrbitCap int `json:"orbit_cap"`

	// UseSubjectEngagementForReposts makes engagement filters read a
	// repost's subject counts instead of the repost's own (always zero).
	UseSubjectEngagementForReposts bool `json:"use_subject_engagement_for_reposts"`

	// InteractionDetailLimit caps collected like/repost/quote/reply samples.
	InteractionDetailLimit int `json:"interaction_detail_limit"`

	ProfileCacheTTLDays int `json:"profile_cache_ttl_days"`
	SessionTTLHours     int `json:"session_ttl_hours"`

	RateLimitPoints     int `json:"rate_limit_points"`
	RateLimitWindowSecs int `json:"rate_limit_window_secs"`

	HTTPTimeoutSecs int `json:"http_timeout_secs"`
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{
		PDSHost:                        "https://bsky.social",
		DownloadLimit:                  1000,
		RecordsPageSize:                100,
		FetchOrder:                     "newest",
		CategoryWorkers:                3,
		HydrationWorkers:               8,
		NetworkWorkers:                 8,
		MaxFollowers:                   500,
		MaxFollowing:                   500,
		OrbitCap:                       150,
		UseSubjectEngagementForReposts: true,
		InteractionDetailLimit:         100,
		ProfileCacheTTLDays:            14,
		SessionTTLHours:                24,
		RateLimitPoints:                3000,
		RateLimitWindowSecs:            3600,
		HTTPTimeoutSecs:                30,
	}
}

// Dir returns the storage root, creating it if needed.
func Dir() (string, error) {
	if d := os.Getenv("SKYMARSHAL_DIR"); d != "" {
		return d, os.MkdirAll(d, 0o755)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	d := filepath.Join(home, ".skymarshal")
	return d, os.MkdirAll(d, 0o755)
}

// Load reads <dir>/settings.json, filling defaults for missing fields.
// A missing file is not an error.
func Load(dir string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	s.applyDefaults()
	return s, nil
}

// Save writes the settings atomically (temp file + rename).
func Save(dir string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tmp := filepath.Join(dir, "settings.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, "settings.json"))
}

func (s *Settings) applyDefaults() {
	d := Defaults()
	if s.PDSHost == "" {
		s.PDSHost = d.PDSHost
	}
	if s.DownloadLimit <= 0 {
		s.DownloadLimit = d.DownloadLimit
	}
	if s.RecordsPageSize <= 0 || s.RecordsPageSize > 100 {
		s.RecordsPageSize = d.RecordsPageSize
	}
	if s.FetchOrder != "newest" && s.FetchOrder != "oldest" {
		s.FetchOrder = d.FetchOrder
	}
	if s.CategoryWorkers <= 0 {
		s.CategoryWorkers = d.CategoryWorkers
	}
	if s.HydrationWorkers <= 0 {
		s.HydrationWorkers = d.HydrationWorkers
	}
	if s.NetworkWorkers <= 0 {
		s.NetworkWorkers = d.NetworkWorkers
	}
	if s.MaxFollowers <= 0 {
		s.MaxFollowers = d.MaxFollowers
	}
	if s.MaxFollowing <= 0 {
		s.MaxFollowing = d.MaxFollowing
	}
	if s.OrbitCap <= 0 {
		s.OrbitCap = d.OrbitCap
	}
	if s.InteractionDetailLimit <= 0 {
		s.InteractionDetailLimit = d.InteractionDetailLimit
	}
	if s.ProfileCacheTTLDays <= 0 {
		s.ProfileCacheTTLDays = d.ProfileCacheTTLDays
	}
	if s.SessionTTLHours <= 0 {
		s.SessionTTLHours = d.SessionTTLHours
	}
	if s.RateLimitPoints <= 0 {
		s.RateLimitPoints = d.RateLimitPoints
	}
	if s.RateLimitWindowSecs <= 0 {
		s.RateLimitWindowSecs = d.RateLimitWindowSecs
	}
	if s.HTTPTimeoutSecs <= 0 {
		s.HTTPTimeoutSecs = d.HTTPTimeoutSecs
	}
}

// JSONDir returns the export directory under root, creating it.
func JSONDir(root string) (string, error) {
	d := filepath.Join(root, "json")
	return d, os.MkdirAll(d, 0o755)
}

// CARDir returns the transient CAR backup directory under root, creating it.
func CARDir(root string) (string, error) {
	d := filepath.Join(root, "cars")
	return d, os.MkdirAll(d, 0o755)
}

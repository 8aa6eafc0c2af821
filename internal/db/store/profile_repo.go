package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Skymarshal/internal/core/models"
	"Skymarshal/pkg/errors"
)

// GetProfiles returns the cached profiles for the given DIDs. Entries older
// than ttl are treated as missing (ttl <= 0 disables the staleness check).
// The cache is monotonic: stale rows stay until replaced by an upsert.
func (s *Store) GetProfiles(ctx context.Context, dids []string, ttl time.Duration) (map[string]*models.Profile, error) {
	return s.selectProfiles(ctx, "did", dids, ttl)
}

// GetProfilesByHandle is GetProfiles keyed by handle. Handles are not
// unique over time; the most recently updated row wins.
func (s *Store) GetProfilesByHandle(ctx context.Context, handles []string, ttl time.Duration) (map[string]*models.Profile, error) {
	return s.selectProfiles(ctx, "handle", handles, ttl)
}

func (s *Store) selectProfiles(ctx context.Context, keyCol string, keys []string, ttl time.Duration) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`SELECT did, handle, display_name, description,
		followers_count, following_count, posts_count, avatar, last_updated
		FROM profiles WHERE %s IN (%s) ORDER BY last_updated`,
		keyCol, placeholders(len(keys)))

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Profile
		var lastUpdated string
		if err := rows.Scan(&p.DID, &p.Handle, &p.DisplayName, &p.Description,
			&p.FollowersCount, &p.FollowingCount, &p.PostsCount, &p.Avatar, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, lastUpdated); err == nil {
			p.LastUpdated = t
		}
		if ttl > 0 && p.Stale(ttl) {
			continue
		}
		key := p.DID
		if keyCol == "handle" {
			key = p.Handle
		}
		out[key] = &p
	}
	return out, rows.Err()
}

// UpsertProfiles inserts or replaces profiles in one transaction, stamping
// last_updated. Readers never observe a partial upsert.
func (s *Store) UpsertProfiles(ctx context.Context, profiles []*models.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO profiles
		(did, handle, display_name, description, followers_count, following_count, posts_count, avatar, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (did) DO UPDATE SET
			handle = excluded.handle,
			display_name = excluded.display_name,
			description = excluded.description,
			followers_count = excluded.followers_count,
			following_count = excluded.following_count,
			posts_count = excluded.posts_count,
			avatar = excluded.avatar,
			last_updated = excluded.last_updated`)

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range profiles {
		if p == nil || p.DID == "" {
			continue
		}
		stamp := now
		if !p.LastUpdated.IsZero() {
			stamp = p.LastUpdated.UTC().Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx, query,
			p.DID, p.Handle, p.DisplayName, p.Description,
			p.FollowersCount, p.FollowingCount, p.PostsCount, p.Avatar, stamp); err != nil {
			return fmt.Errorf("upsert profile %s: %w", p.DID, err)
		}
	}
	return tx.Commit()
}

// FindMissing returns the handles whose cache entry is absent or older
// than ttl, preserving input order.
func (s *Store) FindMissing(ctx context.Context, handles []string, ttl time.Duration) ([]string, error) {
	present, err := s.GetProfilesByHandle(ctx, handles, ttl)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, h := range handles {
		if _, ok := present[h]; !ok {
			missing = append(missing, h)
		}
	}
	return missing, nil
}

// TopFollowed returns the n cached profiles with the highest follower counts.
func (s *Store) TopFollowed(ctx context.Context, n int) ([]*models.Profile, error) {
	if n <= 0 {
		n = 10
	}
	query := s.rebind(`SELECT did, handle, display_name, description,
		followers_count, following_count, posts_count, avatar, last_updated
		FROM profiles ORDER BY followers_count DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query top followed: %w", err)
	}
	defer rows.Close()

	var out []*models.Profile
	for rows.Next() {
		var p models.Profile
		var lastUpdated string
		if err := rows.Scan(&p.DID, &p.Handle, &p.DisplayName, &p.Description,
			&p.FollowersCount, &p.FollowingCount, &p.PostsCount, &p.Avatar, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, lastUpdated); err == nil {
			p.LastUpdated = t
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// ErrNotFound wraps sql.ErrNoRows with the not-found kind so API callers
// map it to 404 without importing database/sql.
var ErrNotFound = errors.Wrap(sql.ErrNoRows, errors.NotFound, "row not found")

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

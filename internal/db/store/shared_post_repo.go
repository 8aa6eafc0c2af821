package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// SaveSharedPost persists a shareable snapshot of a single record and
// returns its permalink ID (random hex).
func (s *Store) SaveSharedPost(ctx context.Context, payload []byte) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share id: %w", err)
	}
	id := hex.EncodeToString(buf)

	query := s.rebind(`INSERT INTO shared_posts (id, payload, created_at) VALUES (?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, id, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("save shared post: %w", err)
	}
	return id, nil
}

// GetSharedPost returns the stored snapshot for a permalink ID, or
// ErrNotFound.
func (s *Store) GetSharedPost(ctx context.Context, id string) ([]byte, error) {
	query := s.rebind(`SELECT payload FROM shared_posts WHERE id = ?`)
	var payload string
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get shared post: %w", err)
	}
	return []byte(payload), nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"Skymarshal/internal/core/models"
)

// UpsertPosts write-through caches hydrated post items. Likes and reposts
// are skipped; only records with their own engagement belong here.
func (s *Store) UpsertPosts(ctx context.Context, authorHandle string, items []*models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO posts
		(uri, cid, author_handle, text, created_at, like_count, reply_count, repost_count, raw_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uri) DO UPDATE SET
			cid = excluded.cid,
			text = excluded.text,
			created_at = excluded.created_at,
			like_count = excluded.like_count,
			reply_count = excluded.reply_count,
			repost_count = excluded.repost_count,
			raw_data = excluded.raw_data`)

	for _, item := range items {
		if item == nil || item.IsInteraction() {
			continue
		}
		var createdAt any
		if item.CreatedAt != nil {
			createdAt = item.CreatedAt.UTC().Format(time.RFC3339)
		}
		var rawJSON any
		if item.Raw != nil {
			data, err := json.Marshal(item.Raw)
			if err != nil {
				return fmt.Errorf("marshal raw data for %s: %w", item.URI, err)
			}
			rawJSON = string(data)
		}
		if _, err := tx.ExecContext(ctx, query,
			item.URI, item.CID, authorHandle, item.Text, createdAt,
			item.LikeCount, item.ReplyCount, item.RepostCount, rawJSON); err != nil {
			return fmt.Errorf("upsert post %s: %w", item.URI, err)
		}
	}
	return tx.Commit()
}

// GetPost returns one cached post by URI, or ErrNotFound.
func (s *Store) GetPost(ctx context.Context, uri string) (*models.ContentItem, error) {
	query := s.rebind(`SELECT uri, cid, text, created_at, like_count, reply_count, repost_count, raw_data
		FROM posts WHERE uri = ?`)

	var item models.ContentItem
	var createdAt, rawJSON sql.NullString
	err := s.db.QueryRowContext(ctx, query, uri).Scan(
		&item.URI, &item.CID, &item.Text, &createdAt,
		&item.LikeCount, &item.ReplyCount, &item.RepostCount, &rawJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item.Type = models.TypePost
	if createdAt.Valid {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			item.CreatedAt = &t
		}
	}
	if rawJSON.Valid && rawJSON.String != "" {
		var raw models.RawData
		if err := json.Unmarshal([]byte(rawJSON.String), &raw); err == nil {
			item.Raw = &raw
		}
	}
	item.RecomputeEngagement()
	return &item, nil
}

// DeletePosts removes cached posts by URI, used after a remote delete so
// the cache never resurrects deleted content.
func (s *Store) DeletePosts(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM posts WHERE uri IN (%s)`, placeholders(len(uris)))
	args := make([]any, len(uris))
	for i, u := range uris {
		args[i] = u
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return fmt.Errorf("delete posts: %w", err)
	}
	return nil
}

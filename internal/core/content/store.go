package content

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/config"
	"Skymarshal/internal/core/models"
	"Skymarshal/internal/core/progress"
)

// Store is the in-memory index of ContentItems per handle. Items are
// created by the exporter, mutated only by hydration, and removed only by
// user-initiated deletion.
type Store struct {
	exporter *Exporter
	hydrator Hydrator
	cache    PostCache // nil disables write-through
	settings config.Settings

	mu       sync.Mutex
	byHandle map[string][]*models.ContentItem
}

// NewStore creates a content store backed by the given exporter and
// hydrator.
func NewStore(exporter *Exporter, hydrator Hydrator, cache PostCache, settings config.Settings) *Store {
	return &Store{
		exporter: exporter,
		hydrator: hydrator,
		cache:    cache,
		settings: settings,
		byHandle: make(map[string][]*models.ContentItem),
	}
}

// EnsureLoaded returns the cached items for handle, exporting them first
// when absent or when forceRefresh is set. Idempotent per handle.
func (s *Store) EnsureLoaded(ctx context.Context, did, handle string, categories []models.ContentType, limit int, forceRefresh bool, rep progress.Reporter) ([]*models.ContentItem, error) {
	s.mu.Lock()
	items, ok := s.byHandle[handle]
	s.mu.Unlock()
	if ok && !forceRefresh {
		return items, nil
	}

	items, err := s.exporter.Export(ctx, did, handle, categories, limit, rep)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.byHandle[handle] = items
	s.mu.Unlock()
	return items, nil
}

// Items returns the currently loaded items for handle (possibly nil).
func (s *Store) Items(handle string) []*models.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byHandle[handle]
}

// Summary aggregates per-type counts of the loaded set.
func (s *Store) Summary(handle string) models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum models.Summary
	for _, item := range s.byHandle[handle] {
		switch item.Type {
		case models.TypePost:
			sum.Posts++
		case models.TypeReply:
			sum.Replies++
		case models.TypeLike:
			sum.Likes++
		case models.TypeRepost:
			sum.Reposts++
		}
		sum.Total++
	}
	return sum
}

// Remove drops the given URIs from the loaded set and the write-through
// cache, so subsequent searches reflect a completed deletion.
func (s *Store) Remove(ctx context.Context, handle string, uris []string) {
	drop := make(map[string]bool, len(uris))
	for _, u := range uris {
		drop[u] = true
	}
	s.mu.Lock()
	items := s.byHandle[handle]
	kept := items[:0]
	for _, item := range items {
		if !drop[item.URI] {
			kept = append(kept, item)
		}
	}
	s.byHandle[handle] = kept
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.DeletePosts(ctx, uris); err != nil {
			log.Printf("[CONTENT] Failed to evict deleted posts from cache: %v", err)
		}
	}
}

// Hydrate fills engagement counts for posts/replies and subject counts for
// likes/reposts via batched getPosts calls. When collectDetails is true,
// interaction samples are attached, capped by the configured detail limit.
// Per-item failures are collected, never fatal.
func (s *Store) Hydrate(ctx context.Context, handle string, items []*models.ContentItem, collectDetails bool, rep progress.Reporter) []string {
	if rep == nil {
		rep = progress.Noop
	}

	// Own posts/replies hydrate their own counts; likes/reposts hydrate
	// the subject's counts into raw_data.
	own := make(map[string][]*models.ContentItem)
	subject := make(map[string][]*models.ContentItem)
	for _, item := range items {
		switch {
		case item.Type == models.TypePost || item.Type == models.TypeReply:
			own[item.URI] = append(own[item.URI], item)
		case item.IsInteraction() && item.SubjectURI() != "":
			subject[item.SubjectURI()] = append(subject[item.SubjectURI()], item)
		}
	}

	uris := make([]string, 0, len(own)+len(subject))
	for u := range own {
		uris = append(uris, u)
	}
	for u := range subject {
		if _, dup := own[u]; !dup {
			uris = append(uris, u)
		}
	}
	if len(uris) == 0 {
		return nil
	}

	views, errs := s.fetchViews(ctx, uris, rep)

	// Counts are applied single-threaded per URI so parallel fetches
	// never interleave a partial update.
	for uri, view := range views {
		for _, item := range own[uri] {
			item.LikeCount = view.LikeCount
			item.RepostCount = view.RepostCount
			item.ReplyCount = view.ReplyCount
			item.RecomputeEngagement()
		}
		for _, item := range subject[uri] {
			if item.Raw == nil {
				item.Raw = &models.RawData{SubjectURI: uri}
			}
			item.Raw.SubjectLikeCount = view.LikeCount
			item.Raw.SubjectRepostCount = view.RepostCount
			item.Raw.SubjectReplyCount = view.ReplyCount
		}
	}

	if collectDetails {
		errs = append(errs, s.collectDetails(ctx, items, views, rep)...)
	}

	if s.cache != nil {
		hydrated := make([]*models.ContentItem, 0, len(items))
		for _, item := range items {
			if !item.IsInteraction() {
				hydrated = append(hydrated, item)
			}
		}
		if err := s.cache.UpsertPosts(ctx, handle, hydrated); err != nil {
			log.Printf("[CONTENT] Post cache write-through failed: %v", err)
		}
	}
	return errs
}

// fetchViews resolves post views for all URIs in parallel batches.
func (s *Store) fetchViews(ctx context.Context, uris []string, rep progress.Reporter) (map[string]*client.PostView, []string) {
	var mu sync.Mutex
	views := make(map[string]*client.PostView, len(uris))
	var errs []string
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.HydrationWorkers)

	for start := 0; start < len(uris); start += client.MaxPostBatch {
		end := min(start+client.MaxPostBatch, len(uris))
		batch := uris[start:end]
		g.Go(func() error {
			got, err := s.hydrator.GetPosts(gctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("getPosts batch at %d: %v", start, err))
			} else {
				for _, v := range got {
					views[v.URI] = v
				}
			}
			done += len(batch)
			rep.Report("hydrate", done, len(uris))
			return nil
		})
	}
	_ = g.Wait()
	return views, errs
}

// collectDetails attaches like/repost/quote/reply samples to posts that
// have any engagement to sample.
func (s *Store) collectDetails(ctx context.Context, items []*models.ContentItem, views map[string]*client.PostView, rep progress.Reporter) []string {
	limit := s.settings.InteractionDetailLimit
	var mu sync.Mutex
	var errs []string
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.HydrationWorkers)

	for _, item := range items {
		if item.IsInteraction() {
			continue
		}
		view := views[item.URI]
		if view == nil {
			continue
		}
		g.Go(func() error {
			raw := item.Raw
			if raw == nil {
				raw = &models.RawData{}
			}
			record := func(name string, err error) {
				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Sprintf("%s %s: %v", name, item.URI, err))
					mu.Unlock()
				}
			}
			if view.LikeCount > 0 {
				likes, err := s.hydrator.GetLikes(gctx, item.URI, limit)
				record("getLikes", err)
				raw.Likes = capSamples(likes, limit)
			}
			if view.RepostCount > 0 {
				reposts, err := s.hydrator.GetRepostedBy(gctx, item.URI, limit)
				record("getRepostedBy", err)
				raw.RepostedBy = capSamples(reposts, limit)
			}
			if view.QuoteCount > 0 {
				quotes, err := s.hydrator.GetQuotes(gctx, item.URI, limit)
				record("getQuotes", err)
				raw.Quotes = capSamples(quotes, limit)
			}
			if view.ReplyCount > 0 {
				replies, err := s.hydrator.GetReplies(gctx, item.URI, limit)
				record("getReplies", err)
				raw.Replies = capSamples(replies, limit)
			}
			item.Raw = raw

			mu.Lock()
			done++
			rep.Report("hydrate-details", done, 0)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func capSamples(samples []models.InteractionSample, limit int) []models.InteractionSample {
	if limit > 0 && len(samples) > limit {
		return samples[:limit]
	}
	return samples
}

// ExportDir exposes the JSON export directory for the API's file streaming.
func (s *Store) ExportDir() (string, error) {
	return config.JSONDir(s.exporter.root)
}

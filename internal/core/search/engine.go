package search

import (
	"context"
	"strings"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/core/models"
	"Skymarshal/internal/core/progress"
)

// progressThreshold is the set size at which filtering reports progress.
const progressThreshold = 1000

// ProfileResolver resolves subject DIDs to profiles for subject-handle
// filtering.
type ProfileResolver interface {
	GetProfiles(ctx context.Context, actors []string) ([]*models.Profile, error)
}

// Engine evaluates filters against a loaded item set.
type Engine struct {
	resolver             ProfileResolver
	useSubjectEngagement bool
}

// NewEngine creates a search engine. resolver may be nil, which disables
// subject-handle filtering.
func NewEngine(resolver ProfileResolver, useSubjectEngagement bool) *Engine {
	return &Engine{resolver: resolver, useSubjectEngagement: useSubjectEngagement}
}

// Search filters, sorts, and truncates items. The returned total is the
// match count before the limit is applied. Predicates run cheapest first;
// subject-handle resolution, the only network step, runs last against the
// already narrowed set.
func (e *Engine) Search(ctx context.Context, items []*models.ContentItem, f Filter, rep progress.Reporter) ([]*models.ContentItem, int, error) {
	if rep == nil {
		rep = progress.Noop
	}

	query, err := parseKeywords(f.Keywords)
	if err != nil {
		return nil, 0, err
	}
	types, matchAll, err := normalizeTypes(f.ContentTypes)
	if err != nil {
		return nil, 0, err
	}

	report := len(items) >= progressThreshold
	matched := make([]*models.ContentItem, 0, len(items))
	for i, item := range items {
		if report && i%500 == 0 {
			rep.Report("search", i, len(items))
		}
		if !query.empty() && !query.matches(item.Text) {
			continue
		}
		if !e.matchEngagement(item, f) {
			continue
		}
		if !matchDate(item, f) {
			continue
		}
		if !matchAll && !types[item.Type] {
			continue
		}
		if !matchSubjectURI(item, f) {
			continue
		}
		matched = append(matched, item)
	}
	if report {
		rep.Report("search", len(items), len(items))
	}

	if f.SubjectHandleContains != "" {
		matched, err = e.filterBySubjectHandle(ctx, matched, f.SubjectHandleContains)
		if err != nil {
			return nil, 0, err
		}
	}

	sortItems(matched, f.Sort)
	total := len(matched)

	switch {
	case f.Limit == 0:
		return nil, total, nil
	case f.Limit > 0 && total > f.Limit:
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

// matchEngagement checks the count and score bounds. For reposts the
// subject's engagement stands in for the item's own counts when so
// configured, since a repost record carries no engagement of its own.
func (e *Engine) matchEngagement(item *models.ContentItem, f Filter) bool {
	likes, reposts, replies := item.LikeCount, item.RepostCount, item.ReplyCount
	score := item.EngagementScore
	if e.useSubjectEngagement && item.Type == models.TypeRepost && item.Raw != nil {
		likes = item.Raw.SubjectLikeCount
		reposts = item.Raw.SubjectRepostCount
		replies = item.Raw.SubjectReplyCount
		score = models.Engagement(likes, reposts, replies)
	}

	if !boundInt(likes, f.MinLikes, f.MaxLikes) {
		return false
	}
	if !boundInt(reposts, f.MinReposts, f.MaxReposts) {
		return false
	}
	if !boundInt(replies, f.MinReplies, f.MaxReplies) {
		return false
	}
	if f.MinEngagement != nil && score < *f.MinEngagement {
		return false
	}
	if f.MaxEngagement != nil && score > *f.MaxEngagement {
		return false
	}
	return true
}

func boundInt(v int, lo, hi *int) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

// matchDate applies the inclusive creation-time window. Items with no
// parseable creation time only pass an unbounded window.
func matchDate(item *models.ContentItem, f Filter) bool {
	if f.StartDate == nil && f.EndDate == nil {
		return true
	}
	if item.CreatedAt == nil {
		return false
	}
	t := *item.CreatedAt
	if f.StartDate != nil && t.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && t.After(*f.EndDate) {
		return false
	}
	return true
}

// matchSubjectURI applies the subject-URI substring. It only constrains
// interactions; posts and replies have no subject and always pass.
func matchSubjectURI(item *models.ContentItem, f Filter) bool {
	if f.SubjectURIContains == "" || !item.IsInteraction() {
		return true
	}
	return strings.Contains(item.SubjectURI(), f.SubjectURIContains)
}

// filterBySubjectHandle keeps interactions whose subject author's handle
// contains the needle. Subject DIDs are resolved in getProfiles-sized
// batches; unresolvable DIDs drop the item rather than fail the search.
func (e *Engine) filterBySubjectHandle(ctx context.Context, items []*models.ContentItem, needle string) ([]*models.ContentItem, error) {
	if e.resolver == nil {
		return nil, nil
	}
	needle = strings.ToLower(needle)

	dids := make([]string, 0)
	seen := map[string]bool{}
	for _, item := range items {
		if did := subjectDID(item); did != "" && !seen[did] {
			seen[did] = true
			dids = append(dids, did)
		}
	}

	handles := make(map[string]string, len(dids))
	for start := 0; start < len(dids); start += client.MaxProfileBatch {
		end := min(start+client.MaxProfileBatch, len(dids))
		profiles, err := e.resolver.GetProfiles(ctx, dids[start:end])
		if err != nil {
			return nil, err
		}
		for _, p := range profiles {
			handles[p.DID] = strings.ToLower(p.Handle)
		}
	}

	kept := make([]*models.ContentItem, 0, len(items))
	for _, item := range items {
		did := subjectDID(item)
		if did == "" {
			continue
		}
		if strings.Contains(handles[did], needle) {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

// subjectDID extracts the repo DID from an interaction's subject URI.
func subjectDID(item *models.ContentItem) string {
	if !item.IsInteraction() {
		return ""
	}
	rest := strings.TrimPrefix(item.SubjectURI(), "at://")
	if i := strings.IndexByte(rest, '/'); i > 0 {
		rest = rest[:i]
	}
	return rest
}

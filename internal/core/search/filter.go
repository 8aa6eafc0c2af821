// Package search filters and sorts ContentItems against rich predicates.
// Search is a pure function over an in-memory slice; the only I/O is the
// optional subject-handle resolution through the profile resolver.
package search

import (
	"strings"
	"time"

	"Skymarshal/internal/core/models"
	"Skymarshal/pkg/errors"
)

// SortMode orders search results. Ties always break by creation time,
// newest first.
type SortMode string

const (
	SortNewest         SortMode = "newest"
	SortOldest         SortMode = "oldest"
	SortEngagementAsc  SortMode = "engagement_asc"
	SortEngagementDesc SortMode = "engagement_desc"
	SortLikesDesc      SortMode = "likes_desc"
	SortRepliesDesc    SortMode = "replies_desc"
	SortRepostsDesc    SortMode = "reposts_desc"
)

// Filter is an immutable search request. Nil bounds are open; all bounds
// are inclusive. Limit semantics: negative means unbounded, zero returns
// a total with no results.
type Filter struct {
	Keywords     []string `json:"keywords,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	MinLikes   *int `json:"min_likes,omitempty"`
	MaxLikes   *int `json:"max_likes,omitempty"`
	MinReposts *int `json:"min_reposts,omitempty"`
	MaxReposts *int `json:"max_reposts,omitempty"`
	MinReplies *int `json:"min_replies,omitempty"`
	MaxReplies *int `json:"max_replies,omitempty"`

	MinEngagement *float64 `json:"min_engagement,omitempty"`
	MaxEngagement *float64 `json:"max_engagement,omitempty"`

	SubjectURIContains    string `json:"subject_uri_contains,omitempty"`
	SubjectHandleContains string `json:"subject_handle_contains,omitempty"`

	Sort  SortMode `json:"sort,omitempty"`
	Limit int      `json:"limit"`
}

// ParseDateBound parses a filter date. Date-only values are interpreted as
// UTC; an end bound is expanded to the last representable instant of the
// day.
func ParseDateBound(raw string, end bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		u := t.UTC()
		return &u, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errors.Newf(errors.Validation, "unparsable date %q", raw)
	}
	t = t.UTC()
	if end {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}

// normalizeTypes expands the content-type aliases: ALL matches anything,
// REPLIES and COMMENTS both mean reply. An unrecognized name is a
// validation error.
func normalizeTypes(raw []string) (map[models.ContentType]bool, bool, error) {
	if len(raw) == 0 {
		return nil, true, nil
	}
	set := make(map[models.ContentType]bool, len(raw))
	for _, name := range raw {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "all", "":
			return nil, true, nil
		case "post", "posts":
			set[models.TypePost] = true
		case "reply", "replies", "comment", "comments":
			set[models.TypeReply] = true
		case "repost", "reposts":
			set[models.TypeRepost] = true
		case "like", "likes":
			set[models.TypeLike] = true
		default:
			return nil, false, errors.Newf(errors.Validation, "unknown content type %q", name)
		}
	}
	return set, false, nil
}

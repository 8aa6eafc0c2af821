package search

import (
	"sort"

	"Skymarshal/internal/core/models"
)

// sortItems orders results in place. All modes are stable and break ties
// by creation time, newest first.
func sortItems(items []*models.ContentItem, mode SortMode) {
	less := lessFor(mode)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case less(a, b):
			return true
		case less(b, a):
			return false
		default:
			return createdAfter(a, b)
		}
	})
}

func lessFor(mode SortMode) func(a, b *models.ContentItem) bool {
	switch mode {
	case SortOldest:
		return func(a, b *models.ContentItem) bool { return createdAfter(b, a) }
	case SortEngagementAsc:
		return func(a, b *models.ContentItem) bool { return a.EngagementScore < b.EngagementScore }
	case SortEngagementDesc:
		return func(a, b *models.ContentItem) bool { return a.EngagementScore > b.EngagementScore }
	case SortLikesDesc:
		return func(a, b *models.ContentItem) bool { return a.LikeCount > b.LikeCount }
	case SortRepliesDesc:
		return func(a, b *models.ContentItem) bool { return a.ReplyCount > b.ReplyCount }
	case SortRepostsDesc:
		return func(a, b *models.ContentItem) bool { return a.RepostCount > b.RepostCount }
	default: // SortNewest
		return createdAfter
	}
}

// createdAfter reports whether a was created after b. Items without a
// creation time sort last.
func createdAfter(a, b *models.ContentItem) bool {
	switch {
	case a.CreatedAt == nil:
		return false
	case b.CreatedAt == nil:
		return true
	default:
		return a.CreatedAt.After(*b.CreatedAt)
	}
}

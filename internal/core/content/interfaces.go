package content

import (
	"context"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/core/models"
)

// RepoClient is the slice of the ATProto client the exporter needs: record
// listing for the live strategy and full repo download for the CAR fallback.
type RepoClient interface {
	ListRecords(ctx context.Context, repo, collection, cursor string, limit int) ([]client.Record, string, error)
	GetRepo(ctx context.Context, did string) ([]byte, error)
}

// Hydrator fills engagement counts (and, on request, interaction detail)
// for posts and replies.
type Hydrator interface {
	GetPosts(ctx context.Context, uris []string) ([]*client.PostView, error)
	GetLikes(ctx context.Context, uri string, limit int) ([]models.InteractionSample, error)
	GetRepostedBy(ctx context.Context, uri string, limit int) ([]models.InteractionSample, error)
	GetQuotes(ctx context.Context, uri string, limit int) ([]models.InteractionSample, error)
	GetReplies(ctx context.Context, uri string, limit int) ([]models.InteractionSample, error)
}

// PostCache is the optional write-through cache for hydrated posts.
// A nil cache disables write-through.
type PostCache interface {
	UpsertPosts(ctx context.Context, authorHandle string, items []*models.ContentItem) error
	DeletePosts(ctx context.Context, uris []string) error
}

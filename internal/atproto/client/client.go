// Package client is the typed facade over the ATProto XRPC endpoints
// Skymarshal consumes. Every call goes through the points-based rate
// limiter and the retry policy; errors come back classified on the
// Skymarshal taxonomy so no caller inspects transport details.
package client

import (
	"context"
	"net/http"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"

	"Skymarshal/internal/core/models"
	"Skymarshal/pkg/errors"
)

// Wire batch ceilings. The PDS rejects larger requests.
const (
	MaxProfileBatch = 25
	MaxPostBatch    = 25
	MaxPageSize     = 100
)

// Options tune a Client. Zero values take the documented defaults.
type Options struct {
	Timeout         time.Duration // per-request HTTP timeout, default 30s
	RateLimitPoints int           // sliding-window ceiling, default 3000
	RateLimitWindow time.Duration // sliding window, default 1h
}

// Client wraps an xrpc.Client with rate limiting and retries.
type Client struct {
	xrpcc   *xrpc.Client
	limiter *PointsLimiter
}

// New creates an unauthenticated client for the given PDS host.
func New(host string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		xrpcc: &xrpc.Client{
			Client: &http.Client{Timeout: opts.Timeout},
			Host:   host,
		},
		limiter: NewPointsLimiter(opts.RateLimitPoints, opts.RateLimitWindow),
	}
}

// Authenticated reports whether the client holds a live access token.
func (c *Client) Authenticated() bool {
	return c.xrpcc.Auth != nil && c.xrpcc.Auth.AccessJwt != ""
}

// DID returns the authenticated actor's DID, or "".
func (c *Client) DID() string {
	if c.xrpcc.Auth == nil {
		return ""
	}
	return c.xrpcc.Auth.Did
}

// Handle returns the authenticated actor's handle, or "".
func (c *Client) Handle() string {
	if c.xrpcc.Auth == nil {
		return ""
	}
	return c.xrpcc.Auth.Handle
}

// AuthInfo returns a copy of the current session tokens for persistence.
func (c *Client) AuthInfo() *xrpc.AuthInfo {
	if c.xrpcc.Auth == nil {
		return nil
	}
	cp := *c.xrpcc.Auth
	return &cp
}

// SetAuthInfo installs previously persisted session tokens.
func (c *Client) SetAuthInfo(info *xrpc.AuthInfo) {
	c.xrpcc.Auth = info
}

// ClearAuth drops the session tokens.
func (c *Client) ClearAuth() {
	c.xrpcc.Auth = nil
}

// CreateSession logs in with an identifier and (app) password and installs
// the resulting tokens on the client.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*xrpc.AuthInfo, error) {
	var out *comatproto.ServerCreateSession_Output
	err := c.do(ctx, "createSession", 1, false, func() error {
		var err error
		out, err = comatproto.ServerCreateSession(ctx, c.xrpcc, &comatproto.ServerCreateSession_Input{
			Identifier: identifier,
			Password:   password,
		})
		return err
	})
	if err != nil {
		if errors.KindOf(err) == errors.Validation {
			// The PDS answers bad credentials with a 400/AuthenticationRequired
			// variant; either way the caller sees an auth failure.
			return nil, errors.Wrap(err, errors.Auth, "login failed")
		}
		return nil, err
	}
	info := &xrpc.AuthInfo{
		Did:        out.Did,
		Handle:     out.Handle,
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
	}
	c.xrpcc.Auth = info
	return info, nil
}

// RefreshSession rotates the tokens using the refresh JWT. The refresh
// token is presented as the bearer for this one call.
func (c *Client) RefreshSession(ctx context.Context) error {
	if c.xrpcc.Auth == nil || c.xrpcc.Auth.RefreshJwt == "" {
		return errors.New(errors.Auth, "no session to refresh")
	}
	access := c.xrpcc.Auth.AccessJwt
	c.xrpcc.Auth.AccessJwt = c.xrpcc.Auth.RefreshJwt
	out, err := comatproto.ServerRefreshSession(ctx, c.xrpcc)
	if err != nil {
		c.xrpcc.Auth.AccessJwt = access
		return errors.Wrap(err, Classify(err), "refreshSession failed")
	}
	c.xrpcc.Auth.Did = out.Did
	c.xrpcc.Auth.Handle = out.Handle
	c.xrpcc.Auth.AccessJwt = out.AccessJwt
	c.xrpcc.Auth.RefreshJwt = out.RefreshJwt
	return nil
}

// GetProfile fetches one actor profile (handle or DID).
func (c *Client) GetProfile(ctx context.Context, actor string) (*models.Profile, error) {
	var out *appbsky.ActorDefs_ProfileViewDetailed
	err := c.do(ctx, "getProfile", 1, true, func() error {
		var err error
		out, err = appbsky.ActorGetProfile(ctx, c.xrpcc, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profileFromDetailed(out), nil
}

// GetProfiles fetches up to MaxProfileBatch actor profiles in one call.
func (c *Client) GetProfiles(ctx context.Context, actors []string) ([]*models.Profile, error) {
	if len(actors) == 0 {
		return nil, nil
	}
	if len(actors) > MaxProfileBatch {
		return nil, errors.Newf(errors.Validation, "getProfiles batch of %d exceeds %d", len(actors), MaxProfileBatch)
	}
	var out *appbsky.ActorGetProfiles_Output
	err := c.do(ctx, "getProfiles", 1, true, func() error {
		var err error
		out, err = appbsky.ActorGetProfiles(ctx, c.xrpcc, actors)
		return err
	})
	if err != nil {
		return nil, err
	}
	profiles := make([]*models.Profile, 0, len(out.Profiles))
	for _, v := range out.Profiles {
		profiles = append(profiles, profileFromDetailed(v))
	}
	return profiles, nil
}

// GetFollowers returns one page of an actor's followers.
func (c *Client) GetFollowers(ctx context.Context, actor, cursor string, limit int) ([]*models.Profile, string, error) {
	limit = clampPage(limit)
	var out *appbsky.GraphGetFollowers_Output
	err := c.do(ctx, "getFollowers", 1, true, func() error {
		var err error
		out, err = appbsky.GraphGetFollowers(ctx, c.xrpcc, actor, cursor, int64(limit))
		return err
	})
	if err != nil {
		return nil, "", err
	}
	profiles := make([]*models.Profile, 0, len(out.Followers))
	for _, v := range out.Followers {
		profiles = append(profiles, profileFromView(v))
	}
	return profiles, derefCursor(out.Cursor), nil
}

// GetFollows returns one page of the actors an actor follows.
func (c *Client) GetFollows(ctx context.Context, actor, cursor string, limit int) ([]*models.Profile, string, error) {
	limit = clampPage(limit)
	var out *appbsky.GraphGetFollows_Output
	err := c.do(ctx, "getFollows", 1, true, func() error {
		var err error
		out, err = appbsky.GraphGetFollows(ctx, c.xrpcc, actor, cursor, int64(limit))
		return err
	})
	if err != nil {
		return nil, "", err
	}
	profiles := make([]*models.Profile, 0, len(out.Follows))
	for _, v := range out.Follows {
		profiles = append(profiles, profileFromView(v))
	}
	return profiles, derefCursor(out.Cursor), nil
}

// GetAuthorFeed returns one page of an actor's feed as raw records.
func (c *Client) GetAuthorFeed(ctx context.Context, actor, cursor string, limit int) ([]Record, string, error) {
	limit = clampPage(limit)
	var out *appbsky.FeedGetAuthorFeed_Output
	err := c.do(ctx, "getAuthorFeed", 1, true, func() error {
		var err error
		out, err = appbsky.FeedGetAuthorFeed(ctx, c.xrpcc, actor, cursor, "posts_with_replies", false, int64(limit))
		return err
	})
	if err != nil {
		return nil, "", err
	}
	records := make([]Record, 0, len(out.Feed))
	for _, item := range out.Feed {
		if item.Post == nil {
			continue
		}
		records = append(records, Record{
			URI:   item.Post.Uri,
			CID:   item.Post.Cid,
			Value: decodeRecordValue(item.Post.Record),
		})
	}
	return records, derefCursor(out.Cursor), nil
}

// GetPosts hydrates up to MaxPostBatch posts with engagement counts.
func (c *Client) GetPosts(ctx context.Context, uris []string) ([]*PostView, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	if len(uris) > MaxPostBatch {
		return nil, errors.Newf(errors.Validation, "getPosts batch of %d exceeds %d", len(uris), MaxPostBatch)
	}
	var out *appbsky.FeedGetPosts_Output
	err := c.do(ctx, "getPosts", 1, true, func() error {
		var err error
		out, err = appbsky.FeedGetPosts(ctx, c.xrpcc, uris)
		return err
	})
	if err != nil {
		return nil, err
	}
	views := make([]*PostView, 0, len(out.Posts))
	for _, v := range out.Posts {
		views = append(views, postViewFrom(v))
	}
	return views, nil
}

// ListRecords returns one page of raw records from a repo collection.
func (c *Client) ListRecords(ctx context.Context, repo, collection, cursor string, limit int) ([]Record, string, error) {
	limit = clampPage(limit)
	var out *comatproto.RepoListRecords_Output
	err := c.do(ctx, "listRecords", 1, true, func() error {
		var err error
		out, err = comatproto.RepoListRecords(ctx, c.xrpcc, collection, cursor, int64(limit), repo, false)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	records := make([]Record, 0, len(out.Records))
	for _, rec := range out.Records {
		records = append(records, Record{
			URI:   rec.Uri,
			CID:   rec.Cid,
			Value: decodeRecordValue(rec.Value),
		})
	}
	return records, derefCursor(out.Cursor), nil
}

// DeleteRecord deletes one record from the authenticated repo. Deletes are
// idempotent on the wire, so the retry policy applies.
func (c *Client) DeleteRecord(ctx context.Context, repo, collection, rkey string) error {
	return c.do(ctx, "deleteRecord", 1, true, func() error {
		_, err := comatproto.RepoDeleteRecord(ctx, c.xrpcc, &comatproto.RepoDeleteRecord_Input{
			Collection: collection,
			Repo:       repo,
			Rkey:       rkey,
		})
		return err
	})
}

// GetRepo downloads the full CAR snapshot of a repo. Costs more points
// than a regular call since the PDS bills sync endpoints higher.
func (c *Client) GetRepo(ctx context.Context, did string) ([]byte, error) {
	var data []byte
	err := c.do(ctx, "getRepo", 5, true, func() error {
		var err error
		data, err = comatproto.SyncGetRepo(ctx, c.xrpcc, did, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// GetLikes returns a sample of actors who liked a post.
func (c *Client) GetLikes(ctx context.Context, uri string, limit int) ([]models.InteractionSample, error) {
	limit = clampPage(limit)
	var out *appbsky.FeedGetLikes_Output
	err := c.do(ctx, "getLikes", 1, true, func() error {
		var err error
		out, err = appbsky.FeedGetLikes(ctx, c.xrpcc, "", "", int64(limit), uri)
		return err
	})
	if err != nil {
		return nil, err
	}
	samples := make([]models.InteractionSample, 0, len(out.Likes))
	for _, l := range out.Likes {
		if l.Actor == nil {
			continue
		}
		s := models.InteractionSample{Handle: l.Actor.Handle, IndexedAt: l.IndexedAt}
		if l.Actor.DisplayName != nil {
			s.DisplayName = *l.Actor.DisplayName
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// GetRepostedBy returns a sample of actors who reposted a post.
func (c *Client) GetRepostedBy(ctx context.Context, uri string, limit int) ([]models.InteractionSample, error) {
	limit = clampPage(limit)
	var out *appbsky.FeedGetRepostedBy_Output
	err := c.do(ctx, "getRepostedBy", 1, true, func() error {
		var err error
		out, err = appbsky.FeedGetRepostedBy(ctx, c.xrpcc, "", "", int64(limit), uri)
		return err
	})
	if err != nil {
		return nil, err
	}
	samples := make([]models.InteractionSample, 0, len(out.RepostedBy))
	for _, v := range out.RepostedBy {
		s := models.InteractionSample{Handle: v.Handle}
		if v.DisplayName != nil {
			s.DisplayName = *v.DisplayName
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// GetQuotes returns a sample of posts quoting a post.
func (c *Client) GetQuotes(ctx context.Context, uri string, limit int) ([]models.InteractionSample, error) {
	limit = clampPage(limit)
	var out *appbsky.FeedGetQuotes_Output
	err := c.do(ctx, "getQuotes", 1, true, func() error {
		var err error
		out, err = appbsky.FeedGetQuotes(ctx, c.xrpcc, "", "", int64(limit), uri)
		return err
	})
	if err != nil {
		return nil, err
	}
	samples := make([]models.InteractionSample, 0, len(out.Posts))
	for _, v := range out.Posts {
		samples = append(samples, quoteSample(v))
	}
	return samples, nil
}

// GetReplies returns the direct replies to a post, sampled from the thread.
func (c *Client) GetReplies(ctx context.Context, uri string, limit int) ([]models.InteractionSample, error) {
	var out *appbsky.FeedGetPostThread_Output
	err := c.do(ctx, "getPostThread", 1, true, func() error {
		var err error
		out, err = appbsky.FeedGetPostThread(ctx, c.xrpcc, 1, 0, uri)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.Thread == nil || out.Thread.FeedDefs_ThreadViewPost == nil {
		return nil, nil
	}
	var samples []models.InteractionSample
	for _, reply := range out.Thread.FeedDefs_ThreadViewPost.Replies {
		if len(samples) >= limit {
			break
		}
		if reply.FeedDefs_ThreadViewPost == nil || reply.FeedDefs_ThreadViewPost.Post == nil {
			continue
		}
		samples = append(samples, quoteSample(reply.FeedDefs_ThreadViewPost.Post))
	}
	return samples, nil
}

// quoteSample extracts handle and text from a quoting or replying post view.
func quoteSample(v *appbsky.FeedDefs_PostView) models.InteractionSample {
	s := models.InteractionSample{IndexedAt: v.IndexedAt}
	if v.Author != nil {
		s.Handle = v.Author.Handle
		if v.Author.DisplayName != nil {
			s.DisplayName = *v.Author.DisplayName
		}
	}
	if m := decodeRecordValue(v.Record); m != nil {
		if text, ok := m["text"].(string); ok {
			s.Text = text
		}
	}
	return s
}

func clampPage(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func derefCursor(c *string) string {
	if c == nil {
		return ""
	}
	return *c
}

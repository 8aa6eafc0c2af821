package client

import (
	"encoding/json"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"

	"Skymarshal/internal/core/models"
)

// Record is one raw repository record from listRecords or a CAR import.
// Value is the decoded record object; both sources normalize to the same
// map shape so the converter has a single code path.
type Record struct {
	URI   string
	CID   string
	Value map[string]any
}

// PostView is the hydrated engagement view of a post.
type PostView struct {
	URI          string
	CID          string
	AuthorDID    string
	AuthorHandle string
	LikeCount    int
	RepostCount  int
	ReplyCount   int
	QuoteCount   int
}

// decodeRecordValue flattens an indigo lexicon value into a plain map via a
// JSON round-trip. CAR-imported records arrive as maps already, so this is
// the one place wire records are shaped to match.
func decodeRecordValue(dec *lexutil.LexiconTypeDecoder) map[string]any {
	if dec == nil || dec.Val == nil {
		return nil
	}
	data, err := dec.MarshalJSON()
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

func profileFromView(v *appbsky.ActorDefs_ProfileView) *models.Profile {
	if v == nil {
		return nil
	}
	p := &models.Profile{DID: v.Did, Handle: v.Handle}
	if v.DisplayName != nil {
		p.DisplayName = *v.DisplayName
	}
	if v.Description != nil {
		p.Description = *v.Description
	}
	if v.Avatar != nil {
		p.Avatar = *v.Avatar
	}
	return p
}

func profileFromDetailed(v *appbsky.ActorDefs_ProfileViewDetailed) *models.Profile {
	if v == nil {
		return nil
	}
	p := &models.Profile{DID: v.Did, Handle: v.Handle}
	if v.DisplayName != nil {
		p.DisplayName = *v.DisplayName
	}
	if v.Description != nil {
		p.Description = *v.Description
	}
	if v.Avatar != nil {
		p.Avatar = *v.Avatar
	}
	if v.FollowersCount != nil {
		p.FollowersCount = int(*v.FollowersCount)
	}
	if v.FollowsCount != nil {
		p.FollowingCount = int(*v.FollowsCount)
	}
	if v.PostsCount != nil {
		p.PostsCount = int(*v.PostsCount)
	}
	return p
}

func postViewFrom(v *appbsky.FeedDefs_PostView) *PostView {
	if v == nil {
		return nil
	}
	pv := &PostView{URI: v.Uri, CID: v.Cid}
	if v.Author != nil {
		pv.AuthorDID = v.Author.Did
		pv.AuthorHandle = v.Author.Handle
	}
	if v.LikeCount != nil {
		pv.LikeCount = int(*v.LikeCount)
	}
	if v.RepostCount != nil {
		pv.RepostCount = int(*v.RepostCount)
	}
	if v.ReplyCount != nil {
		pv.ReplyCount = int(*v.ReplyCount)
	}
	if v.QuoteCount != nil {
		pv.QuoteCount = int(*v.QuoteCount)
	}
	return pv
}

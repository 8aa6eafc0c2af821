// Package models holds the normalized record types shared by the content
// store, search engine, deletion engine, and API facade.
package models

import "time"

// ContentType classifies a normalized record. It is computed once at
// ingestion time; consumers switch on it instead of re-testing raw fields.
type ContentType string

const (
	TypePost   ContentType = "post"
	TypeReply  ContentType = "reply"
	TypeRepost ContentType = "repost"
	TypeLike   ContentType = "like"
)

// Valid reports whether t is one of the four known content types.
func (t ContentType) Valid() bool {
	switch t {
	case TypePost, TypeReply, TypeRepost, TypeLike:
		return true
	}
	return false
}

// InteractionSample is one entry of the optional engagement detail collected
// during hydration (who liked, who reposted, quote/reply excerpts).
type InteractionSample struct {
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Text        string `json:"text,omitempty"`
	IndexedAt   string `json:"indexed_at,omitempty"`
}

// RawData carries the known extra fields of a record. Likes and reposts
// always have SubjectURI set; posts may carry an embed. A dedicated struct
// (rather than a free-form map) guards against key typos elsewhere.
type RawData struct {
	SubjectURI         string `json:"subject_uri,omitempty"`
	SubjectCID         string `json:"subject_cid,omitempty"`
	SubjectLikeCount   int    `json:"subject_like_count,omitempty"`
	SubjectRepostCount int    `json:"subject_repost_count,omitempty"`
	SubjectReplyCount  int    `json:"subject_reply_count,omitempty"`

	// Embed retains the raw embed object of a post, if any.
	Embed map[string]any `json:"embed,omitempty"`

	// Interaction detail, populated only when hydration runs with
	// detail collection enabled. Each slice is capped by the configured
	// interaction detail limit.
	Likes      []InteractionSample `json:"likes,omitempty"`
	RepostedBy []InteractionSample `json:"reposted_by,omitempty"`
	Quotes     []InteractionSample `json:"quotes,omitempty"`
	Replies    []InteractionSample `json:"replies,omitempty"`
}

// ContentItem is the normalized view of one repository record.
type ContentItem struct {
	URI  string      `json:"uri"`
	CID  string      `json:"cid"`
	Type ContentType `json:"content_type"`

	// Text is set only for posts and replies.
	Text string `json:"text,omitempty"`

	// CreatedAt is nil when the record carried no parseable timestamp.
	CreatedAt *time.Time `json:"created_at,omitempty"`

	LikeCount   int `json:"like_count"`
	RepostCount int `json:"repost_count"`
	ReplyCount  int `json:"reply_count"`

	// EngagementScore is derived from the counts; recomputed whenever
	// any count changes.
	EngagementScore float64 `json:"engagement_score"`

	Raw *RawData `json:"raw_data,omitempty"`
}

// Engagement is the aggregate score formula used everywhere counts are
// combined: likes + 2*reposts + 2.5*replies.
func Engagement(likes, reposts, replies int) float64 {
	return float64(likes) + 2*float64(reposts) + 2.5*float64(replies)
}

// RecomputeEngagement refreshes the derived score from the current counts.
func (i *ContentItem) RecomputeEngagement() {
	i.EngagementScore = Engagement(i.LikeCount, i.RepostCount, i.ReplyCount)
}

// IsInteraction reports whether the item is a like or repost (records whose
// subject is another actor's post and which never carry text).
func (i *ContentItem) IsInteraction() bool {
	return i.Type == TypeLike || i.Type == TypeRepost
}

// SubjectURI returns the subject URI of a like or repost, or "".
func (i *ContentItem) SubjectURI() string {
	if i.Raw == nil {
		return ""
	}
	return i.Raw.SubjectURI
}

// Summary aggregates per-type counts of a loaded content set.
type Summary struct {
	Posts   int `json:"posts"`
	Replies int `json:"replies"`
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Total   int `json:"total"`
}

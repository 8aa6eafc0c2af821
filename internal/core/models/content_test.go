package models

import "testing"

func TestEngagement(t *testing.T) {
	tests := []struct {
		likes, reposts, replies int
		want                    float64
	}{
		{0, 0, 0, 0},
		{10, 0, 0, 10},
		{0, 4, 0, 8},
		{0, 0, 2, 5},
		{3, 2, 2, 12},
	}
	for _, tt := range tests {
		if got := Engagement(tt.likes, tt.reposts, tt.replies); got != tt.want {
			t.Errorf("Engagement(%d, %d, %d) = %v, want %v", tt.likes, tt.reposts, tt.replies, got, tt.want)
		}
	}
}

func TestRecomputeEngagement(t *testing.T) {
	item := &ContentItem{LikeCount: 5, RepostCount: 1, ReplyCount: 2}
	item.RecomputeEngagement()
	if item.EngagementScore != 12 {
		t.Errorf("EngagementScore = %v, want 12", item.EngagementScore)
	}
}

func TestContentTypeValid(t *testing.T) {
	for _, ct := range []ContentType{TypePost, TypeReply, TypeRepost, TypeLike} {
		if !ct.Valid() {
			t.Errorf("%q should be valid", ct)
		}
	}
	if ContentType("quote").Valid() {
		t.Error("unknown type reported valid")
	}
}

func TestIsInteractionAndSubjectURI(t *testing.T) {
	like := &ContentItem{Type: TypeLike, Raw: &RawData{SubjectURI: "at://did:plc:x/app.bsky.feed.post/1"}}
	if !like.IsInteraction() {
		t.Error("like should be an interaction")
	}
	if like.SubjectURI() != "at://did:plc:x/app.bsky.feed.post/1" {
		t.Errorf("SubjectURI = %q", like.SubjectURI())
	}

	post := &ContentItem{Type: TypePost}
	if post.IsInteraction() {
		t.Error("post should not be an interaction")
	}
	if post.SubjectURI() != "" {
		t.Errorf("SubjectURI of post = %q, want empty", post.SubjectURI())
	}
}

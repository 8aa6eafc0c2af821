package content

import (
	"testing"
	"time"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/core/models"
)

func TestItemFromRecordPost(t *testing.T) {
	item := itemFromRecord(client.Record{
		URI: "at://did:plc:me/app.bsky.feed.post/1",
		CID: "bafy1",
		Value: map[string]any{
			"text":      "hello world",
			"createdAt": "2024-06-01T12:00:00Z",
		},
	})
	if item == nil {
		t.Fatal("expected an item")
	}
	if item.Type != models.TypePost {
		t.Errorf("Type = %q, want post", item.Type)
	}
	if item.Text != "hello world" {
		t.Errorf("Text = %q", item.Text)
	}
	if item.CreatedAt == nil || !item.CreatedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", item.CreatedAt)
	}
}

func TestItemFromRecordReply(t *testing.T) {
	item := itemFromRecord(client.Record{
		URI: "at://did:plc:me/app.bsky.feed.post/2",
		Value: map[string]any{
			"text":  "me too",
			"reply": map[string]any{"parent": map[string]any{"uri": "at://did:plc:x/app.bsky.feed.post/9"}},
		},
	})
	if item == nil || item.Type != models.TypeReply {
		t.Fatalf("item = %+v, want a reply", item)
	}
}

func TestItemFromRecordLikeAndRepost(t *testing.T) {
	for _, tt := range []struct {
		collection string
		want       models.ContentType
	}{
		{"app.bsky.feed.like", models.TypeLike},
		{"app.bsky.feed.repost", models.TypeRepost},
	} {
		item := itemFromRecord(client.Record{
			URI: "at://did:plc:me/" + tt.collection + "/3",
			Value: map[string]any{
				"subject":   map[string]any{"uri": "at://did:plc:x/app.bsky.feed.post/9", "cid": "bafy9"},
				"createdAt": "2024-06-01T12:00:00Z",
			},
		})
		if item == nil || item.Type != tt.want {
			t.Fatalf("item for %s = %+v, want type %q", tt.collection, item, tt.want)
		}
		if item.SubjectURI() != "at://did:plc:x/app.bsky.feed.post/9" {
			t.Errorf("SubjectURI = %q", item.SubjectURI())
		}
		if item.Raw.SubjectCID != "bafy9" {
			t.Errorf("SubjectCID = %q", item.Raw.SubjectCID)
		}
		if item.CreatedAt == nil {
			t.Error("like/repost createdAt not parsed")
		}
	}
}

func TestItemFromRecordSkipsUnknownCollections(t *testing.T) {
	if item := itemFromRecord(client.Record{URI: "at://did:plc:me/app.bsky.graph.follow/4"}); item != nil {
		t.Errorf("follow record produced item %+v", item)
	}
	if item := itemFromRecord(client.Record{URI: "garbage"}); item != nil {
		t.Errorf("unparsable URI produced item %+v", item)
	}
}

func TestParseRecordTime(t *testing.T) {
	tests := []struct {
		raw  string
		want *time.Time
	}{
		{"", nil},
		{"not a time", nil},
	}
	for _, tt := range tests {
		if got := parseRecordTime(tt.raw); got != tt.want {
			t.Errorf("parseRecordTime(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	// Naive timestamps are read as UTC.
	got := parseRecordTime("2024-06-01T08:30:00.123456")
	if got == nil {
		t.Fatal("naive timestamp did not parse")
	}
	if got.Location() != time.UTC || got.Hour() != 8 {
		t.Errorf("naive timestamp = %v, want 08:30 UTC", got)
	}
}

func TestCollectionsFor(t *testing.T) {
	all := collectionsFor(nil)
	if len(all) != 3 {
		t.Fatalf("default collections = %v", all)
	}

	got := collectionsFor([]models.ContentType{models.TypePost, models.TypeReply, models.TypeLike})
	if len(got) != 2 {
		t.Fatalf("collections = %v, want posts deduped with replies plus likes", got)
	}
	if got[0] != "app.bsky.feed.post" || got[1] != "app.bsky.feed.like" {
		t.Errorf("collections = %v", got)
	}
}

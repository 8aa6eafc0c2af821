package firehose

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []string
	posts  []Post
}

func (c *capturePublisher) Publish(event string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	if p, ok := data.(Post); ok {
		c.posts = append(c.posts, p)
	}
}

func commitEvent(did, rkey, text string, langs []string) *jetstreamEvent {
	rec, _ := json.Marshal(postRecord{Text: text, CreatedAt: "2024-01-01T00:00:00Z", Langs: langs})
	var e jetstreamEvent
	raw := fmt.Sprintf(`{"did":%q,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":%q,"record":%s}}`, did, rkey, rec)
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		panic(err)
	}
	return &e
}

func TestHandleEventPublishesTaggedPost(t *testing.T) {
	pub := &capturePublisher{}
	r := NewRelay("", pub)

	r.handleEvent(commitEvent("did:plc:alice", "abc", "I love this network", []string{"en"}))

	if len(pub.posts) != 1 {
		t.Fatalf("published posts = %d, want 1", len(pub.posts))
	}
	p := pub.posts[0]
	if p.URI != "at://did:plc:alice/app.bsky.feed.post/abc" {
		t.Errorf("uri = %s", p.URI)
	}
	if p.Sentiment != "positive" {
		t.Errorf("sentiment = %s, want positive", p.Sentiment)
	}
	if p.Language != "en" {
		t.Errorf("language = %s, want en", p.Language)
	}
	if got := r.Stats().TotalPosts; got != 1 {
		t.Errorf("total posts = %d, want 1", got)
	}
}

func TestHandleEventIgnoresNonPosts(t *testing.T) {
	pub := &capturePublisher{}
	r := NewRelay("", pub)

	var del jetstreamEvent
	_ = json.Unmarshal([]byte(`{"did":"did:plc:x","kind":"commit","commit":{"operation":"delete","collection":"app.bsky.feed.post","rkey":"r"}}`), &del)
	r.handleEvent(&del)

	var identity jetstreamEvent
	_ = json.Unmarshal([]byte(`{"did":"did:plc:x","kind":"identity"}`), &identity)
	r.handleEvent(&identity)

	if len(pub.posts) != 0 {
		t.Fatalf("non-post events should not publish, got %d", len(pub.posts))
	}
}

func TestRecentRingBuffer(t *testing.T) {
	pub := &capturePublisher{}
	r := NewRelay("", pub)

	for i := 0; i < ringSize+10; i++ {
		r.handleEvent(commitEvent("did:plc:alice", fmt.Sprintf("r%d", i), "hello", nil))
	}

	recent := r.Recent()
	if len(recent) != ringSize {
		t.Fatalf("ring size = %d, want %d", len(recent), ringSize)
	}
	if recent[len(recent)-1].URI != fmt.Sprintf("at://did:plc:alice/app.bsky.feed.post/r%d", ringSize+9) {
		t.Errorf("newest entry = %s", recent[len(recent)-1].URI)
	}
}

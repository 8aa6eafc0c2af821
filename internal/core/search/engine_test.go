package search

import (
	"context"
	"testing"
	"time"

	"Skymarshal/internal/core/models"
	"Skymarshal/pkg/errors"
)

type fakeResolver struct {
	profiles map[string]string // did -> handle
	calls    int
}

func (f *fakeResolver) GetProfiles(_ context.Context, actors []string) ([]*models.Profile, error) {
	f.calls++
	var out []*models.Profile
	for _, did := range actors {
		if h, ok := f.profiles[did]; ok {
			out = append(out, &models.Profile{DID: did, Handle: h})
		}
	}
	return out, nil
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func post(uri, text string, created string, likes, reposts, replies int) *models.ContentItem {
	item := &models.ContentItem{
		URI:         uri,
		Type:        models.TypePost,
		Text:        text,
		CreatedAt:   ts(created),
		LikeCount:   likes,
		RepostCount: reposts,
		ReplyCount:  replies,
	}
	item.RecomputeEngagement()
	return item
}

func like(uri, subjectURI string, created string) *models.ContentItem {
	return &models.ContentItem{
		URI:       uri,
		Type:      models.TypeLike,
		CreatedAt: ts(created),
		Raw:       &models.RawData{SubjectURI: subjectURI},
	}
}

func testItems() []*models.ContentItem {
	return []*models.ContentItem{
		post("at://did:plc:me/app.bsky.feed.post/1", "hello world", "2024-01-01T10:00:00Z", 10, 2, 1),
		post("at://did:plc:me/app.bsky.feed.post/2", "hello there", "2024-01-02T10:00:00Z", 0, 0, 0),
		post("at://did:plc:me/app.bsky.feed.post/3", "goodbye world", "2024-01-03T10:00:00Z", 5, 0, 0),
		like("at://did:plc:me/app.bsky.feed.like/1", "at://did:plc:alice/app.bsky.feed.post/9", "2024-01-04T10:00:00Z"),
		like("at://did:plc:me/app.bsky.feed.like/2", "at://did:plc:bob/app.bsky.feed.post/7", "2024-01-05T10:00:00Z"),
	}
}

func TestSearchKeywordOperators(t *testing.T) {
	e := NewEngine(nil, true)
	items := testItems()

	tests := []struct {
		name     string
		keywords []string
		want     []string
	}{
		{
			name:     "required and negative",
			keywords: []string{"+hello", "-there"},
			want:     []string{"at://did:plc:me/app.bsky.feed.post/1"},
		},
		{
			name:     "plain substring is case-insensitive",
			keywords: []string{"HELLO"},
			want: []string{
				"at://did:plc:me/app.bsky.feed.post/2",
				"at://did:plc:me/app.bsky.feed.post/1",
			},
		},
		{
			name:     "quoted phrase is case-sensitive",
			keywords: []string{`"Hello world"`},
			want:     nil,
		},
		{
			name:     "word boundary",
			keywords: []string{`\bworld\b`},
			want: []string{
				"at://did:plc:me/app.bsky.feed.post/3",
				"at://did:plc:me/app.bsky.feed.post/1",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := e.Search(context.Background(), items, Filter{Keywords: tt.keywords, Limit: -1}, nil)
			if err != nil {
				t.Fatalf("Search() error: %v", err)
			}
			if total != len(tt.want) {
				t.Fatalf("total = %d, want %d", total, len(tt.want))
			}
			for i, uri := range tt.want {
				if got[i].URI != uri {
					t.Errorf("result[%d] = %s, want %s", i, got[i].URI, uri)
				}
			}
		})
	}
}

func TestSearchDeadThreads(t *testing.T) {
	// Replies older than the cutoff with zero engagement.
	cutoff := ts("2024-01-02T00:00:00Z")
	zero := 0
	items := testItems()
	items[1].Type = models.TypeReply

	e := NewEngine(nil, true)
	got, total, err := e.Search(context.Background(), items, Filter{
		ContentTypes:  []string{"replies"},
		EndDate:       cutoff,
		MaxLikes:      &zero,
		MaxReposts:    &zero,
		MaxReplies:    &zero,
		MaxEngagement: func() *float64 { f := 0.0; return &f }(),
		Limit:         -1,
	}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if total != 0 || len(got) != 0 {
		t.Fatalf("expected no dead threads before cutoff, got %d", total)
	}

	// Widen the window; post/2 (now a reply, zero engagement) qualifies.
	later := ts("2024-01-03T00:00:00Z")
	got, _, err = e.Search(context.Background(), items, Filter{
		ContentTypes: []string{"replies"},
		EndDate:      later,
		MaxLikes:     &zero,
		Limit:        -1,
	}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 1 || got[0].URI != "at://did:plc:me/app.bsky.feed.post/2" {
		t.Fatalf("expected the zero-engagement reply, got %v", got)
	}
}

func TestSearchSubjectFilters(t *testing.T) {
	resolver := &fakeResolver{profiles: map[string]string{
		"did:plc:alice": "alice.bsky.social",
		"did:plc:bob":   "bob.example.com",
	}}
	e := NewEngine(resolver, true)
	items := testItems()

	got, total, err := e.Search(context.Background(), items, Filter{
		ContentTypes:          []string{"likes"},
		SubjectHandleContains: "alice",
		Limit:                 -1,
	}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if total != 1 || got[0].URI != "at://did:plc:me/app.bsky.feed.like/1" {
		t.Fatalf("expected alice's like only, got total=%d %v", total, got)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls = %d, want 1 batch", resolver.calls)
	}

	got, _, err = e.Search(context.Background(), items, Filter{
		SubjectURIContains: "did:plc:bob",
		Limit:              -1,
	}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	// Posts pass the subject-URI predicate untouched; only interactions
	// are constrained by it.
	wantURIs := map[string]bool{
		"at://did:plc:me/app.bsky.feed.post/1": true,
		"at://did:plc:me/app.bsky.feed.post/2": true,
		"at://did:plc:me/app.bsky.feed.post/3": true,
		"at://did:plc:me/app.bsky.feed.like/2": true,
	}
	if len(got) != len(wantURIs) {
		t.Fatalf("got %d results, want %d", len(got), len(wantURIs))
	}
	for _, item := range got {
		if !wantURIs[item.URI] {
			t.Errorf("unexpected result %s", item.URI)
		}
	}
}

func TestSearchRepostSubjectEngagement(t *testing.T) {
	repost := &models.ContentItem{
		URI:  "at://did:plc:me/app.bsky.feed.repost/1",
		Type: models.TypeRepost,
		Raw: &models.RawData{
			SubjectURI:         "at://did:plc:alice/app.bsky.feed.post/9",
			SubjectLikeCount:   40,
			SubjectRepostCount: 3,
			SubjectReplyCount:  2,
		},
		CreatedAt: ts("2024-01-06T10:00:00Z"),
	}
	items := []*models.ContentItem{repost}
	minLikes := 10

	withSubject := NewEngine(nil, true)
	got, _, err := withSubject.Search(context.Background(), items, Filter{MinLikes: &minLikes, Limit: -1}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("subject engagement should satisfy min_likes, got %d results", len(got))
	}

	withoutSubject := NewEngine(nil, false)
	got, _, err = withoutSubject.Search(context.Background(), items, Filter{MinLikes: &minLikes, Limit: -1}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("own counts are zero, expected no results, got %d", len(got))
	}
}

func TestSearchBoundaries(t *testing.T) {
	e := NewEngine(nil, true)

	got, total, err := e.Search(context.Background(), nil, Filter{Keywords: []string{"hello"}, Limit: -1}, nil)
	if err != nil {
		t.Fatalf("Search() on empty set: %v", err)
	}
	if total != 0 || len(got) != 0 {
		t.Fatalf("empty set should yield nothing, got total=%d", total)
	}

	got, total, err = e.Search(context.Background(), testItems(), Filter{Limit: 0}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if total != 5 || got != nil {
		t.Fatalf("limit 0 should return total only, got total=%d results=%v", total, got)
	}

	lo, hi := 10, 5
	got, total, err = e.Search(context.Background(), testItems(), Filter{MinLikes: &lo, MaxLikes: &hi, Limit: -1}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if total != 0 || len(got) != 0 {
		t.Fatalf("contradictory bounds must match nothing, got total=%d", total)
	}

	_, _, err = e.Search(context.Background(), testItems(), Filter{ContentTypes: []string{"bogus"}, Limit: -1}, nil)
	if errors.KindOf(err) != errors.Validation {
		t.Fatalf("unknown content type should be a validation error, got %v", err)
	}
}

func TestSearchSortAndLimit(t *testing.T) {
	e := NewEngine(nil, true)
	items := testItems()

	got, total, err := e.Search(context.Background(), items, Filter{
		ContentTypes: []string{"posts"},
		Sort:         SortEngagementDesc,
		Limit:        2,
	}, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3 before limit", total)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want limit of 2", len(got))
	}
	if got[0].URI != "at://did:plc:me/app.bsky.feed.post/1" {
		t.Errorf("highest engagement first, got %s", got[0].URI)
	}
	if got[1].URI != "at://did:plc:me/app.bsky.feed.post/3" {
		t.Errorf("second by engagement, got %s", got[1].URI)
	}
}

func TestParseDateBound(t *testing.T) {
	got, err := ParseDateBound("2024-03-05", true)
	if err != nil {
		t.Fatalf("ParseDateBound() error: %v", err)
	}
	want := time.Date(2024, 3, 5, 23, 59, 59, 999999000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("end bound = %v, want %v", got, want)
	}

	if _, err := ParseDateBound("yesterday", false); errors.KindOf(err) != errors.Validation {
		t.Errorf("expected validation error, got %v", err)
	}

	got, err = ParseDateBound("", false)
	if err != nil || got != nil {
		t.Errorf("empty bound should be open, got %v %v", got, err)
	}
}

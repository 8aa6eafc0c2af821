package client

import (
	"context"
	"fmt"
	"testing"
)

// pages builds a PageFunc serving fixed batches keyed by cursor.
func pages(batches map[string]struct {
	items []int
	next  string
}) PageFunc[int] {
	return func(_ context.Context, cursor string) ([]int, string, error) {
		b, ok := batches[cursor]
		if !ok {
			return nil, "", fmt.Errorf("unexpected cursor %q", cursor)
		}
		return b.items, b.next, nil
	}
}

func TestPaginateWalksAllPages(t *testing.T) {
	fetch := pages(map[string]struct {
		items []int
		next  string
	}{
		"":  {items: []int{1, 2}, next: "a"},
		"a": {items: []int{3, 4}, next: "b"},
		"b": {items: []int{5}, next: ""},
	})

	got, err := Paginate(context.Background(), 0, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 || got[4] != 5 {
		t.Fatalf("got %v, want [1 2 3 4 5]", got)
	}
}

func TestPaginateHonorsLimit(t *testing.T) {
	fetch := pages(map[string]struct {
		items []int
		next  string
	}{
		"":  {items: []int{1, 2, 3}, next: "a"},
		"a": {items: []int{4, 5, 6}, next: "b"},
	})

	got, err := Paginate(context.Background(), 4, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d items, want 4", len(got))
	}
}

func TestPaginateStopsOnEmptyBatchWithDanglingCursor(t *testing.T) {
	fetch := pages(map[string]struct {
		items []int
		next  string
	}{
		"":  {items: []int{1}, next: "a"},
		"a": {items: nil, next: "b"}, // dangling cursor, empty page
	})

	got, err := Paginate(context.Background(), 0, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
}

func TestPaginateReturnsPartialOnError(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, cursor string) ([]int, string, error) {
		calls++
		if cursor == "" {
			return []int{1, 2}, "a", nil
		}
		return nil, "", fmt.Errorf("boom")
	}

	got, err := Paginate(context.Background(), 0, fetch)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want the first page preserved", got)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

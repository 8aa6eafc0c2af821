package client

import "context"

// PageFunc fetches one page of results for a cursor. An empty returned
// cursor means the listing is exhausted.
type PageFunc[T any] func(ctx context.Context, cursor string) ([]T, string, error)

// Paginate walks a cursor-returning endpoint, accumulating results until
// the caller-supplied limit is reached or the cursor runs out. An empty
// batch terminates the walk even when a cursor is present; some PDS
// implementations return a dangling cursor on the final page.
// limit <= 0 means unbounded.
func Paginate[T any](ctx context.Context, limit int, fetch PageFunc[T]) ([]T, error) {
	var all []T
	cursor := ""
	for {
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return all, err
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

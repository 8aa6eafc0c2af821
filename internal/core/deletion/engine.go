// Package deletion removes records from the authenticated repo in bulk.
// Ownership is enforced locally: a URI belonging to another DID is
// rejected before any network call is made.
package deletion

import (
	"context"
	"fmt"
	"log"
	"time"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/atproto/identity"
	"Skymarshal/pkg/errors"
)

// defaultPause is the inter-call delay between sequential deleteRecord
// calls, keeping bulk deletions well inside the rate-limit budget.
const defaultPause = 100 * time.Millisecond

// Deleter is the wire surface the engine needs.
type Deleter interface {
	DeleteRecord(ctx context.Context, repo, collection, rkey string) error
	ListRecords(ctx context.Context, repo, collection, cursor string, limit int) ([]client.Record, string, error)
}

// ContentRemover evicts deleted URIs from the loaded content set. May be
// nil when no store is attached.
type ContentRemover interface {
	Remove(ctx context.Context, handle string, uris []string)
}

// ItemError records one failed URI within a batch.
type ItemError struct {
	URI     string      `json:"uri"`
	Kind    errors.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Engine performs batched deletions for one authenticated account.
type Engine struct {
	deleter Deleter
	store   ContentRemover
	pause   time.Duration
	sleep   func(context.Context, time.Duration) error
}

// New creates a deletion engine. store may be nil.
func New(deleter Deleter, store ContentRemover) *Engine {
	return &Engine{
		deleter: deleter,
		store:   store,
		pause:   defaultPause,
		sleep:   ctxSleep,
	}
}

// Delete removes the given record URIs from the repo owned by did. Every
// URI yields either a deletion or an entry in the returned errors; a
// single failure never aborts the batch. Successfully deleted URIs are
// evicted from the content store so searches reflect the result.
func (e *Engine) Delete(ctx context.Context, did, handle string, uris []string) (int, []ItemError) {
	type target struct {
		uri    string
		parsed identity.RecordURI
	}

	var itemErrs []ItemError
	byCollection := make(map[string][]target)
	for _, raw := range uris {
		parsed, err := identity.ParseRecordURI(raw)
		if err != nil {
			itemErrs = append(itemErrs, ItemError{URI: raw, Kind: errors.Validation, Message: err.Error()})
			continue
		}
		if parsed.DID != did {
			itemErrs = append(itemErrs, ItemError{
				URI:     raw,
				Kind:    errors.Conflict,
				Message: "record belongs to another account",
			})
			continue
		}
		byCollection[parsed.Collection] = append(byCollection[parsed.Collection], target{uri: raw, parsed: parsed})
	}

	var deleted []string
	first := true
	for collection, targets := range byCollection {
		for _, t := range targets {
			if !first {
				if err := e.sleep(ctx, e.pause); err != nil {
					itemErrs = append(itemErrs, ItemError{URI: t.uri, Kind: errors.Internal, Message: err.Error()})
					continue
				}
			}
			first = false
			if err := e.deleter.DeleteRecord(ctx, did, collection, t.parsed.RKey); err != nil {
				itemErrs = append(itemErrs, ItemError{URI: t.uri, Kind: errors.KindOf(err), Message: err.Error()})
				continue
			}
			deleted = append(deleted, t.uri)
		}
	}

	if len(deleted) > 0 {
		log.Printf("[DELETE] Removed %d of %d records for %s", len(deleted), len(uris), handle)
		if e.store != nil {
			e.store.Remove(ctx, handle, deleted)
		}
	}
	return len(deleted), itemErrs
}

// Unfollow removes the follow record pointing at targetDID. The follow
// collection is paginated in full because only the record listing carries
// the rkey needed for deletion.
func (e *Engine) Unfollow(ctx context.Context, did, targetDID string) error {
	cursor := ""
	for {
		records, next, err := e.deleter.ListRecords(ctx, did, identity.CollectionFollow, cursor, client.MaxPageSize)
		if err != nil {
			return fmt.Errorf("scan follows: %w", err)
		}
		for _, rec := range records {
			subject, _ := rec.Value["subject"].(string)
			if subject != targetDID {
				continue
			}
			parsed, err := identity.ParseRecordURI(rec.URI)
			if err != nil {
				return errors.Wrap(err, errors.Internal, "malformed follow record URI")
			}
			if err := e.deleter.DeleteRecord(ctx, did, identity.CollectionFollow, parsed.RKey); err != nil {
				return fmt.Errorf("delete follow record: %w", err)
			}
			log.Printf("[DELETE] Unfollowed %s", targetDID)
			return nil
		}
		if next == "" || len(records) == 0 {
			return errors.Newf(errors.NotFound, "not following %s", targetDID)
		}
		cursor = next
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

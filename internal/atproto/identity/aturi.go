package identity

import (
	"fmt"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"Skymarshal/pkg/errors"
)

// Record collections Skymarshal operates on.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionRepost = "app.bsky.feed.repost"
	CollectionFollow = "app.bsky.graph.follow"
)

// RecordURI is a parsed at:// URI.
type RecordURI struct {
	DID        string
	Collection string
	RKey       string
}

// String reassembles the at:// form.
func (u RecordURI) String() string {
	return fmt.Sprintf("at://%s/%s/%s", u.DID, u.Collection, u.RKey)
}

// ParseRecordURI parses an at://<did>/<collection>/<rkey> string. Anything
// that does not carry all three components is a Validation error.
func ParseRecordURI(raw string) (RecordURI, error) {
	aturi, err := syntax.ParseATURI(raw)
	if err != nil {
		return RecordURI{}, errors.Wrap(err, errors.Validation, fmt.Sprintf("invalid record URI %q", raw))
	}
	u := RecordURI{
		DID:        aturi.Authority().String(),
		Collection: aturi.Collection().String(),
		RKey:       aturi.RecordKey().String(),
	}
	if u.DID == "" || u.Collection == "" || u.RKey == "" {
		return RecordURI{}, errors.Newf(errors.Validation, "incomplete record URI %q", raw)
	}
	return u, nil
}

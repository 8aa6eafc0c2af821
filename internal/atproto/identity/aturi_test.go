package identity

import (
	"testing"

	"Skymarshal/pkg/errors"
)

func TestParseRecordURI(t *testing.T) {
	u, err := ParseRecordURI("at://did:plc:abc123/app.bsky.feed.post/3k2a")
	if err != nil {
		t.Fatal(err)
	}
	if u.DID != "did:plc:abc123" {
		t.Errorf("DID = %q", u.DID)
	}
	if u.Collection != CollectionPost {
		t.Errorf("Collection = %q", u.Collection)
	}
	if u.RKey != "3k2a" {
		t.Errorf("RKey = %q", u.RKey)
	}
	if got := u.String(); got != "at://did:plc:abc123/app.bsky.feed.post/3k2a" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseRecordURIRejectsIncomplete(t *testing.T) {
	for _, raw := range []string{
		"",
		"not-a-uri",
		"https://bsky.app/profile/alice",
		"at://did:plc:abc123",
		"at://did:plc:abc123/app.bsky.feed.post",
	} {
		_, err := ParseRecordURI(raw)
		if err == nil {
			t.Errorf("ParseRecordURI(%q) succeeded, want error", raw)
			continue
		}
		if errors.KindOf(err) != errors.Validation {
			t.Errorf("ParseRecordURI(%q) kind = %q, want validation", raw, errors.KindOf(err))
		}
	}
}

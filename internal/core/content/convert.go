// Package content downloads, normalizes, and indexes the authenticated
// user's records. The exporter produces a JSON snapshot per handle; the
// store keeps the in-memory index and hydrates engagement counts.
package content

import (
	"time"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/atproto/identity"
	"Skymarshal/internal/core/models"
)

// timeLayouts are the timestamp shapes seen in the wild. Records written
// by older clients carry naive timestamps with no zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseRecordTime parses a record timestamp, interpreting naive values as
// UTC. Returns nil when nothing parses.
func parseRecordTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// itemFromRecord normalizes one raw record into a ContentItem. The content
// type is computed here, once: a post with a reply field is a reply; likes
// and reposts are classified by collection. Records from collections we do
// not manage return nil.
func itemFromRecord(rec client.Record) *models.ContentItem {
	uri, err := identity.ParseRecordURI(rec.URI)
	if err != nil {
		return nil
	}

	item := &models.ContentItem{URI: rec.URI, CID: rec.CID}

	switch uri.Collection {
	case identity.CollectionPost:
		item.Type = models.TypePost
		if rec.Value != nil {
			if text, ok := rec.Value["text"].(string); ok {
				item.Text = text
			}
			if _, hasReply := rec.Value["reply"]; hasReply {
				item.Type = models.TypeReply
			}
			if embed, ok := rec.Value["embed"].(map[string]any); ok {
				item.Raw = &models.RawData{Embed: embed}
			}
			if created, ok := rec.Value["createdAt"].(string); ok {
				item.CreatedAt = parseRecordTime(created)
			}
		}
	case identity.CollectionLike:
		item.Type = models.TypeLike
		item.Raw = subjectRaw(rec.Value)
	case identity.CollectionRepost:
		item.Type = models.TypeRepost
		item.Raw = subjectRaw(rec.Value)
	default:
		return nil
	}

	if item.CreatedAt == nil && rec.Value != nil {
		if created, ok := rec.Value["createdAt"].(string); ok {
			item.CreatedAt = parseRecordTime(created)
		}
	}
	item.RecomputeEngagement()
	return item
}

// subjectRaw extracts the subject strong ref of a like or repost.
func subjectRaw(value map[string]any) *models.RawData {
	if value == nil {
		return nil
	}
	subject, ok := value["subject"].(map[string]any)
	if !ok {
		return nil
	}
	raw := &models.RawData{}
	if uri, ok := subject["uri"].(string); ok {
		raw.SubjectURI = uri
	}
	if cid, ok := subject["cid"].(string); ok {
		raw.SubjectCID = cid
	}
	if raw.SubjectURI == "" && raw.SubjectCID == "" {
		return nil
	}
	return raw
}

package feed

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rdnply/matchsync/pkg/model"
)

// millisecond timestamps are larger than this, unix seconds are not
const msThreshold = int64(1e12)

// recognized is the set of keys extracted into StreamRecord fields.
// Everything else lands in the Extra bag.
var recognized = map[string]bool{
	"id": true, "matchId": true, "match_id": true,
	"tag":     true,
	"uriName": true, "uri_name": true, "slug": true,
	"name":  true,
	"title": true,
	"timestamp": true, "startTimestamp": true, "starts_at": true,
	"iframe": true, "iframeUrl": true, "embed": true,
	"poster": true, "posterUrl": true, "poster_url": true,
	"streams": true, "sources": true,
	"category": true,
}

// Normalize turns a raw feed document into a flat, ordered list of stream
// records. Two shapes are supported: a plain JSON array of stream objects,
// and an object whose "events" array holds category groups, each carrying
// its own "streams" array. Group order and within-group order are preserved,
// and each stream inherits the group's display name as its category.
// Anything else produces an empty list, not an error: a malformed feed
// simply means there is nothing to publish.
func Normalize(doc []byte) []model.StreamRecord {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil
	}

	if doc[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(doc, &items); err != nil {
			return nil
		}

		return decodeList(items, "")
	}

	var envelope struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(doc, &envelope); err != nil {
		return nil
	}

	var records []model.StreamRecord
	for _, raw := range envelope.Events {
		group := asObject(raw)
		if group == nil {
			continue
		}

		var streams []json.RawMessage
		if field, ok := group["streams"]; ok {
			_ = json.Unmarshal(field, &streams)
		}

		category := pickString(group, "name", "category", "id")
		records = append(records, decodeList(streams, category)...)
	}

	return records
}

func decodeList(items []json.RawMessage, category string) []model.StreamRecord {
	var records []model.StreamRecord
	for _, raw := range items {
		obj := asObject(raw)
		if obj == nil {
			continue
		}

		records = append(records, decodeRecord(obj, category))
	}

	return records
}

// decodeRecord copies fields through verbatim with no validation. Feed
// producers disagree on key names, so each field is picked from a list of
// known aliases, first present wins.
func decodeRecord(obj map[string]json.RawMessage, category string) model.StreamRecord {
	record := model.StreamRecord{
		RawID:     pickString(obj, "id", "matchId", "match_id"),
		Tag:       pickString(obj, "tag"),
		URIName:   pickString(obj, "uriName", "uri_name", "slug"),
		Name:      pickString(obj, "name"),
		Title:     pickString(obj, "title"),
		StartsAt:  pickTimestamp(obj, "timestamp", "startTimestamp", "starts_at"),
		IframeURL: pickString(obj, "iframe", "iframeUrl", "embed"),
		PosterURL: pickString(obj, "poster", "posterUrl", "poster_url"),
		Streams:   pickStreams(obj, "streams", "sources"),
		Category:  category,
	}

	if record.Category == "" {
		record.Category = pickString(obj, "category")
	}

	for key, value := range obj {
		if recognized[key] {
			continue
		}
		if record.Extra == nil {
			record.Extra = make(map[string]json.RawMessage)
		}
		record.Extra[key] = value
	}

	return record
}

func asObject(raw json.RawMessage) map[string]json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}

	return obj
}

// pickString returns the first non-empty string among the given keys.
// Numeric values are coerced to their decimal form, since some feeds send
// ids as numbers.
func pickString(obj map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}

		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}

	return ""
}

// pickTimestamp reads a unix timestamp, accepting either a number or a
// numeric string. Millisecond values are converted to seconds.
func pickTimestamp(obj map[string]json.RawMessage, keys ...string) int64 {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}

		var value int64

		var n int64
		if err := json.Unmarshal(raw, &n); err == nil {
			value = n
		} else {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
					value = parsed
				}
			}
		}

		if value == 0 {
			continue
		}

		if value > msThreshold {
			value /= 1000
		}

		return value
	}

	return 0
}

// pickStreams reads a list of stream sources. Elements can be either plain
// URL strings or objects with url/label fields. Duplicate URLs are dropped,
// first occurrence wins.
func pickStreams(obj map[string]json.RawMessage, keys ...string) []model.StreamSource {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			continue
		}

		var (
			sources []model.StreamSource
			seen    = make(map[string]bool)
		)

		for _, item := range items {
			var url string
			if err := json.Unmarshal(item, &url); err == nil {
				if url != "" && !seen[url] {
					seen[url] = true
					sources = append(sources, model.StreamSource{URL: url})
				}
				continue
			}

			entry := asObject(item)
			if entry == nil {
				continue
			}

			url = pickString(entry, "url", "resolvedUrl", "src", "source")
			if url == "" || seen[url] {
				continue
			}

			seen[url] = true
			sources = append(sources, model.StreamSource{
				Label: pickString(entry, "label", "quality", "language"),
				URL:   url,
			})
		}

		if len(sources) > 0 {
			return sources
		}
	}

	return nil
}

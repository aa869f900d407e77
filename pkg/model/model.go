package model

import (
	"encoding/json"
	"time"
)

// StreamSource is a single playable URL attached to a stream record.
type StreamSource struct {
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// StreamRecord is one feed entry, a candidate for publication.
// The feed schema is best effort, so every field is optional. Keys the
// normalizer does not recognize are kept in Extra verbatim.
type StreamRecord struct {
	RawID     string
	Tag       string
	URIName   string
	Name      string
	Title     string
	StartsAt  int64 // unix seconds, 0 when the feed did not provide one
	IframeURL string
	Streams   []StreamSource
	PosterURL string
	Category  string
	Extra     map[string]json.RawMessage
}

// PublishedEntry is the durable record of a single successful publish.
// Entries are written exactly once and never mutated afterwards.
type PublishedEntry struct {
	// Identity is the stable key derived from the stream record
	Identity string `json:"identity"`
	// PostID is the opaque identifier returned by the publisher
	PostID string `json:"post_id"`
	// Title is kept for audit and debugging
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatedPost describes one post created during a sync pass.
type CreatedPost struct {
	Identity string `json:"identity"`
	PostID   string `json:"post_id"`
	Title    string `json:"title"`
}

// SyncResult is the outcome of one sync pass. Created preserves feed order.
type SyncResult struct {
	Created []CreatedPost `json:"created"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
}

// Package render builds publishable titles and HTML bodies from stream
// records. It is a pure function of its inputs: no network, no ledger.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rdnply/matchsync/pkg/model"
)

const (
	kickoffLayout = "Monday, 02 Jan 2006 15:04 MST"

	// shown when the feed carries no start time
	kickoffPlaceholder = "TBA"

	footer = `<p><small>This post was generated automatically from the live streams feed.</small></p>`
)

// Title picks the post title for a record: the stream name, then the raw
// title, then a synthesized one based on the identity.
func Title(record model.StreamRecord, identity string) string {
	if record.Name != "" {
		return record.Name
	}

	if record.Title != "" {
		return record.Title
	}

	return "Match " + identity
}

// Body builds the HTML body for a record. Every feed-controlled value goes
// through html.EscapeString before interpolation, so feed content can not
// inject markup into the post.
func Body(record model.StreamRecord, identity string) string {
	var b strings.Builder

	category := record.Category
	if category == "" {
		category = "Unknown"
	}

	fmt.Fprintf(&b, "<p><b>Category:</b> %s</p>\n", html.EscapeString(category))
	fmt.Fprintf(&b, "<p><b>Kick-off:</b> %s</p>\n", html.EscapeString(kickoff(record)))

	if record.PosterURL != "" {
		fmt.Fprintf(&b, "<p><img src=\"%s\" alt=\"%s\"/></p>\n",
			html.EscapeString(record.PosterURL),
			html.EscapeString(Title(record, identity)),
		)
	}

	fmt.Fprintf(&b, "<p><b>Tag:</b> %s</p>\n", html.EscapeString(record.Tag))

	if embed := embedURL(record); embed != "" {
		fmt.Fprintf(&b, "<p><iframe src=\"%s\" width=\"640\" height=\"360\" frameborder=\"0\" allowfullscreen></iframe></p>\n",
			html.EscapeString(embed),
		)
	}

	b.WriteString(footer)

	return b.String()
}

// Render returns the title and HTML body for a record in one call.
func Render(record model.StreamRecord, identity string) (string, string) {
	return Title(record, identity), Body(record, identity)
}

func kickoff(record model.StreamRecord) string {
	if record.StartsAt == 0 {
		return kickoffPlaceholder
	}

	return time.Unix(record.StartsAt, 0).UTC().Format(kickoffLayout)
}

// embedURL prefers an explicit iframe URL and falls back to the first
// resolved stream URL. An empty result means no embed block at all.
func embedURL(record model.StreamRecord) string {
	if record.IframeURL != "" {
		return record.IframeURL
	}

	if len(record.Streams) > 0 {
		return record.Streams[0].URL
	}

	return ""
}

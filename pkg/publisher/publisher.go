package publisher

import (
	"context"
)

// Post is the rendered content handed to a publisher.
type Post struct {
	Title   string
	Content string
	Labels  []string
}

// Publisher turns rendered content into a live post and returns the post's
// opaque identifier. A failed publish leaves the entry eligible for retry
// on the next pass.
type Publisher interface {
	Publish(ctx context.Context, post Post) (string, error)
}

// Factory builds a Publisher from the stored credential. A fresh client is
// built for every sync pass, so a credential granted after startup is
// picked up without a restart.
type Factory func(ctx context.Context, credential string) (Publisher, error)

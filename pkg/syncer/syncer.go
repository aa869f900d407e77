// Package syncer implements the reconciliation pass that maps feed entries
// to durable identities and publishes each distinct stream at most once.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rdnply/matchsync/pkg/feed"
	"github.com/rdnply/matchsync/pkg/ledger"
	"github.com/rdnply/matchsync/pkg/model"
	"github.com/rdnply/matchsync/pkg/publisher"
	"github.com/rdnply/matchsync/pkg/render"
)

// Source produces the current list of stream records from the remote feed.
type Source interface {
	Fetch(ctx context.Context) ([]model.StreamRecord, error)
}

// Config is the sync pass configuration loaded from TOML.
type Config struct {
	// PublishDelay is the pause between successful publish calls.
	// Format is "300ms", "1.5h" or "2h45m".
	PublishDelay model.Duration `toml:"publish_delay"`
	// Schedule is an optional cron expression for periodic passes
	Schedule string `toml:"schedule"`
	// Labels are attached to every created post in addition to the
	// record's category
	Labels []string `toml:"labels"`
}

// Syncer runs reconciliation passes. Two passes over the same ledger could
// both read "not yet published" for one identity and double-publish, so
// invocations are serialized: a second Run while one is in flight fails
// with model.ErrSyncInProgress.
type Syncer struct {
	storage      ledger.Storage
	source       Source
	newPublisher publisher.Factory
	delay        time.Duration
	labels       []string

	mu sync.Mutex
}

func New(storage ledger.Storage, source Source, factory publisher.Factory, cfg Config) *Syncer {
	delay := cfg.PublishDelay.Duration
	if delay == 0 {
		delay = model.DefaultPublishDelay
	}

	return &Syncer{
		storage:      storage,
		source:       source,
		newPublisher: factory,
		delay:        delay,
		labels:       cfg.Labels,
	}
}

// Run performs one sync pass: fetch the feed, publish every record whose
// identity is not yet in the ledger, record each success, and return what
// was created, in feed order. A feed fetch failure aborts the pass with
// zero side effects. One record's publish failure never aborts the rest of
// the pass and never marks that identity as published.
func (s *Syncer) Run(ctx context.Context) (*model.SyncResult, error) {
	if !s.mu.TryLock() {
		return nil, model.ErrSyncInProgress
	}
	defer s.mu.Unlock()

	started := time.Now()

	// The credential check comes before any feed I/O, so a misconfigured
	// instance fails fast without touching the network.
	token, err := s.storage.GetCredential(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read stored credential")
	}

	if token == "" {
		return nil, model.ErrMissingCredential
	}

	records, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch feed")
	}

	log.Infof("-> syncing %d feed record(s)", len(records))

	pub, err := s.newPublisher(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create publisher")
	}

	result := &model.SyncResult{}

	for idx, record := range records {
		identity, ok := feed.Identity(record)
		if !ok {
			log.WithField("index", idx).Debug("skipping record without identity")
			result.Skipped++
			continue
		}

		logger := log.WithFields(log.Fields{
			"index":    idx,
			"identity": identity,
		})

		published, err := s.storage.IsPublished(ctx, identity)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to query ledger for %q", identity)
		}

		if published {
			logger.Debug("already published, skipping")
			result.Skipped++
			continue
		}

		title, body := render.Render(record, identity)

		postID, err := pub.Publish(ctx, publisher.Post{
			Title:   title,
			Content: body,
			Labels:  s.postLabels(record),
		})
		if err != nil {
			logger.WithError(err).Error("failed to publish post, will retry next pass")
			result.Failed++
			continue
		}

		entry := model.PublishedEntry{
			Identity:  identity,
			PostID:    postID,
			Title:     title,
			CreatedAt: time.Now().UTC(),
		}

		// A ledger write failure is fatal: the post exists but its record
		// does not, and silently losing that is worse than failing the pass.
		if err := s.storage.RecordPublished(ctx, entry); err != nil {
			return nil, errors.Wrapf(err, "failed to record published post %q (post id %s)", identity, postID)
		}

		logger.Infof("created post %s", postID)
		result.Created = append(result.Created, model.CreatedPost{
			Identity: identity,
			PostID:   postID,
			Title:    title,
		})

		if err := s.pause(ctx); err != nil {
			return nil, err
		}
	}

	log.Infof("sync pass finished in %s: %d created, %d skipped, %d failed",
		time.Since(started).Round(time.Millisecond), len(result.Created), result.Skipped, result.Failed)

	return result, nil
}

func (s *Syncer) postLabels(record model.StreamRecord) []string {
	labels := append([]string{}, s.labels...)
	if record.Category != "" {
		labels = append(labels, record.Category)
	}

	return labels
}

func (s *Syncer) pause(ctx context.Context) error {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

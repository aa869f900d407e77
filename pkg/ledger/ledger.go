package ledger

import (
	"context"

	"github.com/pkg/errors"

	"github.com/rdnply/matchsync/pkg/model"
)

// Storage is the durable record of which stream identities have already
// been published, plus the single stored long-lived publisher credential.
// The set of published identities only grows, entries are never deleted.
type Storage interface {
	Close() error

	// IsPublished reports whether a post for the identity was ever created.
	IsPublished(ctx context.Context, identity string) (bool, error)

	// RecordPublished inserts the entry for a newly created post.
	// model.ErrAlreadyExists is returned when the identity is already
	// recorded. The orchestrator reads before it writes, so a conflict
	// signals concurrent misuse rather than normal operation.
	RecordPublished(ctx context.Context, entry model.PublishedEntry) error

	// WalkPublished iterates over recorded entries.
	WalkPublished(ctx context.Context, cb func(entry model.PublishedEntry) error) error

	// GetCredential returns the stored refresh token, or "" when unset.
	GetCredential(ctx context.Context) (string, error)

	// SetCredential stores the refresh token, replacing any previous value.
	SetCredential(ctx context.Context, token string) error
}

// New opens the ledger backend selected by the configuration.
func New(config *Config) (Storage, error) {
	switch config.Type {
	case "", TypeBadger:
		return NewBadger(config)
	case TypeFile:
		return NewFile(config.Dir)
	case TypeS3:
		if config.S3 == nil {
			return nil, errors.New("s3 ledger requires a [database.s3] section")
		}
		return NewS3(*config.S3)
	default:
		return nil, errors.Errorf("unsupported ledger type %q", config.Type)
	}
}

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rdnply/matchsync/pkg/model"
)

const (
	currentVersion = 1

	versionPath    = "matchsync/version"
	credentialPath = "credential"
	postPrefix     = "post/"
	postPath       = "post/%s"
)

// BadgerConfig represents BadgerDB configuration parameters
type BadgerConfig struct {
	Truncate bool `toml:"truncate"`
	FileIO   bool `toml:"file_io"`
}

// Badger keeps the publish ledger in an embedded BadgerDB. Each published
// identity is a separate key, so a record insert commits durably before the
// pass moves on to the next stream.
type Badger struct {
	db *badger.DB
}

var _ Storage = (*Badger)(nil)

func NewBadger(config *Config) (*Badger, error) {
	dir := config.Dir

	log.Infof("opening ledger database %q", dir)

	// Make sure database directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "could not mkdir ledger dir")
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(log.StandardLogger()).
		WithTruncate(true)

	if config.Badger != nil {
		opts.Truncate = config.Badger.Truncate
		if config.Badger.FileIO {
			opts.ValueLogLoadingMode = options.FileIO
		}
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger database")
	}

	storage := &Badger{db: db}

	if err := db.Update(func(txn *badger.Txn) error {
		if err := storage.setObj(txn, []byte(versionPath), currentVersion, false); err != nil && err != model.ErrAlreadyExists {
			return err
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "failed to write ledger version")
	}

	return storage, nil
}

func (b *Badger) Close() error {
	log.Debug("closing ledger database")
	return b.db.Close()
}

func (b *Badger) Version() (int, error) {
	version := -1

	err := b.db.View(func(txn *badger.Txn) error {
		return b.getObj(txn, []byte(versionPath), &version)
	})

	return version, err
}

func (b *Badger) IsPublished(_ context.Context, identity string) (bool, error) {
	var entry model.PublishedEntry

	err := b.db.View(func(txn *badger.Txn) error {
		return b.getObj(txn, b.getKey(postPath, identity), &entry)
	})

	if err == model.ErrNotFound {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

func (b *Badger) RecordPublished(_ context.Context, entry model.PublishedEntry) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := b.getKey(postPath, entry.Identity)
		if err := b.setObj(txn, key, &entry, false); err != nil {
			if err == model.ErrAlreadyExists {
				return err
			}
			return errors.Wrapf(err, "failed to save published entry %q", entry.Identity)
		}
		return nil
	})
}

func (b *Badger) WalkPublished(_ context.Context, cb func(entry model.PublishedEntry) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.getKey(postPrefix)
		opts.PrefetchValues = true
		return b.iterator(txn, opts, func(item *badger.Item) error {
			entry := model.PublishedEntry{}
			if err := b.unmarshalObj(item, &entry); err != nil {
				return err
			}

			return cb(entry)
		})
	})
}

func (b *Badger) GetCredential(_ context.Context) (string, error) {
	var token string

	err := b.db.View(func(txn *badger.Txn) error {
		return b.getObj(txn, b.getKey(credentialPath), &token)
	})

	if err == model.ErrNotFound {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	return token, nil
}

func (b *Badger) SetCredential(_ context.Context, token string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return b.setObj(txn, b.getKey(credentialPath), token, true)
	})
}

func (b *Badger) iterator(txn *badger.Txn, opts badger.IteratorOptions, callback func(item *badger.Item) error) error {
	iter := txn.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()

		if err := callback(item); err != nil {
			return err
		}
	}

	return nil
}

func (b *Badger) getKey(format string, a ...interface{}) []byte {
	resourcePath := fmt.Sprintf(format, a...)
	fullPath := fmt.Sprintf("matchsync/v%d/%s", currentVersion, resourcePath)

	return []byte(fullPath)
}

func (b *Badger) setObj(txn *badger.Txn, key []byte, obj interface{}, overwrite bool) error {
	if !overwrite {
		// Overwrites are not allowed, make sure there is no object with the given key
		_, err := txn.Get(key)
		if err == nil {
			return model.ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return errors.Wrap(err, "failed to check whether key exists")
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize object for key %q", key)
	}

	return txn.Set(key, data)
}

func (b *Badger) getObj(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return model.ErrNotFound
		}

		return err
	}

	return b.unmarshalObj(item, out)
}

func (b *Badger) unmarshalObj(item *badger.Item, out interface{}) error {
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

package ledger

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rdnply/matchsync/pkg/model"
)

const ledgerFileName = "ledger.json"

// state is the JSON document persisted by the File and S3 backends.
type state struct {
	Published  map[string]model.PublishedEntry `json:"published"`
	Credential string                          `json:"credential,omitempty"`
}

func emptyState() state {
	return state{Published: make(map[string]model.PublishedEntry)}
}

// decodeState parses a persisted ledger document. Corruption is treated as
// "no prior state": the ledger is the sole source of already-published
// truth, and a duplicate post costs less than a service that refuses to run.
func decodeState(data []byte, origin string) state {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		log.WithError(err).Warnf("ledger %s is unreadable, starting with empty state", origin)
		return emptyState()
	}

	if s.Published == nil {
		s.Published = make(map[string]model.PublishedEntry)
	}

	return s
}

func encodeState(s *state) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize ledger")
	}

	return data, nil
}

// File keeps the ledger as a single JSON file. Every mutation rewrites the
// file through a temp file and rename, so a crash never leaves a
// half-written ledger behind.
type File struct {
	path string

	mu    sync.Mutex
	state state
}

var _ Storage = (*File)(nil)

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "could not mkdir ledger dir")
	}

	f := &File{
		path:  filepath.Join(dir, ledgerFileName),
		state: emptyState(),
	}

	data, err := ioutil.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warnf("ledger file %s is unreadable, starting with empty state", f.path)
		}
		return f, nil
	}

	f.state = decodeState(data, f.path)

	log.Infof("loaded ledger %s with %d published post(s)", f.path, len(f.state.Published))
	return f, nil
}

func (f *File) Close() error {
	return nil
}

func (f *File) IsPublished(_ context.Context, identity string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.state.Published[identity]
	return ok, nil
}

func (f *File) RecordPublished(_ context.Context, entry model.PublishedEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.state.Published[entry.Identity]; ok {
		return model.ErrAlreadyExists
	}

	f.state.Published[entry.Identity] = entry

	if err := f.persist(); err != nil {
		// The entry is not durable, keep it out of memory as well so a
		// retry within the same process stays possible.
		delete(f.state.Published, entry.Identity)
		return err
	}

	return nil
}

func (f *File) WalkPublished(_ context.Context, cb func(entry model.PublishedEntry) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range f.state.Published {
		if err := cb(entry); err != nil {
			return err
		}
	}

	return nil
}

func (f *File) GetCredential(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state.Credential, nil
}

func (f *File) SetCredential(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	previous := f.state.Credential
	f.state.Credential = token

	if err := f.persist(); err != nil {
		f.state.Credential = previous
		return err
	}

	return nil
}

func (f *File) persist() error {
	data, err := encodeState(&f.state)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := ioutil.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrapf(err, "failed to write ledger file %s", tmp)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrapf(err, "failed to replace ledger file %s", f.path)
	}

	return nil
}

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdnply/matchsync/pkg/model"
)

var testCtx = context.TODO()

func getEntry() model.PublishedEntry {
	return model.PublishedEntry{
		Identity:  "m1",
		PostID:    "post-123",
		Title:     "Team A vs Team B",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestNewBadger(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)

	err = db.Close()
	assert.NoError(t, err)
}

func TestBadger_Version(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)
	defer db.Close()

	ver, err := db.Version()
	assert.NoError(t, err)
	assert.Equal(t, currentVersion, ver)
}

func TestBadger_RecordPublished(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)
	defer db.Close()

	entry := getEntry()

	published, err := db.IsPublished(testCtx, entry.Identity)
	require.NoError(t, err)
	assert.False(t, published)

	err = db.RecordPublished(testCtx, entry)
	assert.NoError(t, err)

	published, err = db.IsPublished(testCtx, entry.Identity)
	require.NoError(t, err)
	assert.True(t, published)
}

func TestBadger_RecordPublishedConflict(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)
	defer db.Close()

	entry := getEntry()

	err = db.RecordPublished(testCtx, entry)
	require.NoError(t, err)

	err = db.RecordPublished(testCtx, entry)
	assert.Equal(t, model.ErrAlreadyExists, err)
}

func TestBadger_WalkPublished(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)
	defer db.Close()

	entry := getEntry()
	err = db.RecordPublished(testCtx, entry)
	require.NoError(t, err)

	called := 0
	err = db.WalkPublished(testCtx, func(actual model.PublishedEntry) error {
		assert.EqualValues(t, entry, actual)
		called++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, called)
}

func TestBadger_Reopen(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)

	entry := getEntry()
	require.NoError(t, db.RecordPublished(testCtx, entry))
	require.NoError(t, db.Close())

	db, err = NewBadger(&Config{Dir: dir})
	require.NoError(t, err)
	defer db.Close()

	published, err := db.IsPublished(testCtx, entry.Identity)
	require.NoError(t, err)
	assert.True(t, published, "published entries survive reopen")
}

func TestBadger_Credential(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(&Config{Dir: dir})
	require.NoError(t, err)
	defer db.Close()

	token, err := db.GetCredential(testCtx)
	require.NoError(t, err)
	assert.Empty(t, token)

	err = db.SetCredential(testCtx, "refresh-token-1")
	require.NoError(t, err)

	// overwrite is allowed for the credential
	err = db.SetCredential(testCtx, "refresh-token-2")
	require.NoError(t, err)

	token, err = db.GetCredential(testCtx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token-2", token)
}

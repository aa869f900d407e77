package main

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdnply/matchsync/pkg/ledger"
	"github.com/rdnply/matchsync/pkg/model"
)

func TestLoadConfig(t *testing.T) {
	const file = `
[server]
port = 7979
bind_address = "127.0.0.1"
api_key = "secret"
cookie_secret = "cookie-secret"

[feed]
url = "https://feed.example.com/events.json"
timeout = "15s"

[database]
type = "badger"
dir = "/home/user/db"
[database.badger]
truncate = true
file_io = true

[blogger]
blog_id = "1234567890"
client_id = "client-id"
client_secret = "client-secret"
redirect_url = "https://sync.example.com/oauth/callback"

[sync]
publish_delay = "500ms"
schedule = "@every 5m"
labels = ["live", "auto"]
`
	path := setupTestConfig(t, file)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7979, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.BindAddress)
	assert.Equal(t, "secret", config.Server.APIKey)

	assert.Equal(t, "https://feed.example.com/events.json", config.Feed.URL)
	assert.Equal(t, 15*time.Second, config.Feed.Timeout.Duration)

	assert.Equal(t, ledger.TypeBadger, config.Database.Type)
	assert.Equal(t, "/home/user/db", config.Database.Dir)
	require.NotNil(t, config.Database.Badger)
	assert.True(t, config.Database.Badger.Truncate)
	assert.True(t, config.Database.Badger.FileIO)

	assert.Equal(t, "1234567890", config.Blogger.BlogID)
	assert.Equal(t, "client-id", config.Blogger.ClientID)
	assert.Equal(t, "client-secret", config.Blogger.ClientSecret)
	assert.Equal(t, "https://sync.example.com/oauth/callback", config.Blogger.RedirectURL)

	assert.Equal(t, 500*time.Millisecond, config.Sync.PublishDelay.Duration)
	assert.Equal(t, "@every 5m", config.Sync.Schedule)
	assert.Equal(t, []string{"live", "auto"}, config.Sync.Labels)
}

func TestLoadConfig_Defaults(t *testing.T) {
	const file = `
[feed]
url = "https://feed.example.com/events.json"

[blogger]
blog_id = "1234567890"
client_id = "client-id"
client_secret = "client-secret"
`
	path := setupTestConfig(t, file)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, model.DefaultPort, config.Server.Port)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "db"), config.Database.Dir)
	assert.Equal(t, model.DefaultPublishDelay, config.Sync.PublishDelay.Duration)
}

func TestLoadConfig_Validation(t *testing.T) {
	const file = `
[server]
port = 8080
`
	path := setupTestConfig(t, file)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed URL is required")
	assert.Contains(t, err.Error(), "blog id is required")
	assert.Contains(t, err.Error(), "client id and secret are required")
}

func TestLoadConfig_S3RequiresSection(t *testing.T) {
	const file = `
[feed]
url = "https://feed.example.com/events.json"

[database]
type = "s3"

[blogger]
blog_id = "1234567890"
client_id = "client-id"
client_secret = "client-secret"
`
	path := setupTestConfig(t, file)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[database.s3]")
}

func TestLoadConfig_NoFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func setupTestConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0600))

	return path
}

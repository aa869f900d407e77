package main

import (
	"io/ioutil"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/rdnply/matchsync/pkg/feed"
	"github.com/rdnply/matchsync/pkg/ledger"
	"github.com/rdnply/matchsync/pkg/model"
	"github.com/rdnply/matchsync/pkg/publisher"
	"github.com/rdnply/matchsync/pkg/syncer"
)

type Config struct {
	// Server is the web server configuration
	Server Server `toml:"server"`
	// Feed is the remote feed source
	Feed feed.Config `toml:"feed"`
	// Database is the ledger storage configuration
	Database ledger.Config `toml:"database"`
	// Blogger is the publisher configuration
	Blogger publisher.Config `toml:"blogger"`
	// Sync controls pacing and scheduling of sync passes
	Sync syncer.Config `toml:"sync"`
}

type Server struct {
	// Port to listen on
	Port int `toml:"port"`
	// Bind a specific IP address, "*" binds all
	BindAddress string `toml:"bind_address"`
	// APIKey is the shared secret required to trigger a sync pass
	APIKey string `toml:"api_key"`
	// CookieSecret signs the OAuth state session cookie
	CookieSecret string `toml:"cookie_secret"`
}

// LoadConfig loads TOML configuration from a file path
func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	config := Config{}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal toml")
	}

	config.applyDefaults(path)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.Feed.URL == "" {
		result = multierror.Append(result, errors.New("feed URL is required"))
	}

	if c.Blogger.BlogID == "" {
		result = multierror.Append(result, errors.New("blogger blog id is required"))
	}

	if c.Blogger.ClientID == "" || c.Blogger.ClientSecret == "" {
		result = multierror.Append(result, errors.New("blogger OAuth client id and secret are required"))
	}

	if c.Database.Type == ledger.TypeS3 && c.Database.S3 == nil {
		result = multierror.Append(result, errors.New("s3 ledger requires a [database.s3] section"))
	}

	return result.ErrorOrNil()
}

func (c *Config) applyDefaults(configPath string) {
	if c.Server.Port == 0 {
		c.Server.Port = model.DefaultPort
	}

	if c.Database.Dir == "" {
		c.Database.Dir = filepath.Join(filepath.Dir(configPath), "db")
	}

	if c.Sync.PublishDelay.Duration == 0 {
		c.Sync.PublishDelay.Duration = model.DefaultPublishDelay
	}
}

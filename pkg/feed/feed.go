package feed

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rdnply/matchsync/pkg/model"
)

const (
	defaultUserAgent = "matchsync/1.0 (+https://github.com/rdnply/matchsync)"

	// feeds are small, anything bigger than this is not a feed
	maxBodySize = 10 << 20
)

// Config is the feed source configuration loaded from TOML.
type Config struct {
	// URL of the JSON feed document
	URL string `toml:"url"`
	// Timeout for a single fetch.
	// Format is "300ms", "1.5h" or "2h45m".
	Timeout model.Duration `toml:"timeout"`
	// UserAgent to send with fetch requests
	UserAgent string `toml:"user_agent"`
}

// Client fetches and normalizes the remote feed document.
type Client struct {
	url       string
	userAgent string
	client    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout.Duration
	if timeout == 0 {
		timeout = model.DefaultFeedTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		url:       cfg.URL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the feed document and returns its stream records. Any
// transport error, non-2xx status or unparsable body makes the whole fetch
// fail, so a sync pass can abort with zero side effects. A well-formed
// document of an unexpected shape is not an error, it just holds no records.
func (c *Client) Fetch(ctx context.Context) ([]model.StreamRecord, error) {
	log.Debugf("fetching feed %s", c.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build feed request")
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(model.ErrFeedUnavailable, "failed to fetch %s: %v", c.url, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(model.ErrFeedUnavailable, "feed returned status code %d", resp.StatusCode)
	}

	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(model.ErrFeedUnavailable, "failed to read feed body: %v", err)
	}

	if !json.Valid(body) {
		return nil, errors.Wrap(model.ErrFeedUnavailable, "feed body is not valid JSON")
	}

	records := Normalize(body)
	log.Debugf("feed returned %d record(s)", len(records))

	return records, nil
}

package model

import "time"

const (
	// DefaultPublishDelay is the pause between successful publish calls.
	// Serial pacing is friendlier to the publisher's quota than bursts.
	DefaultPublishDelay = 2 * time.Second

	// DefaultFeedTimeout limits a single feed fetch.
	DefaultFeedTimeout = 30 * time.Second

	DefaultPort = 8080
)

// Duration is a TOML-friendly wrapper that accepts values like "300ms",
// "1.5h" or "2h45m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

package ledger

const (
	TypeBadger = "badger"
	TypeFile   = "file"
	TypeS3     = "s3"
)

type Config struct {
	// Type selects the ledger backend: "badger" (default), "file" or "s3"
	Type string `toml:"type"`
	// Dir is a directory to keep ledger files (badger and file backends)
	Dir    string        `toml:"dir"`
	Badger *BadgerConfig `toml:"badger"`
	S3     *S3Config     `toml:"s3"`
}

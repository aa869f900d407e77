package feed

import (
	"github.com/rdnply/matchsync/pkg/model"
)

// Identity derives the stable key that decides whether a stream has already
// been published. Feed producers are inconsistent about which identifying
// field they populate, so candidates are tried in a fixed order. The same
// record must resolve to the same identity on every pass, forever, or the
// ledger key stops being meaningful.
func Identity(record model.StreamRecord) (string, bool) {
	for _, candidate := range []string{
		record.RawID,
		record.URIName,
		record.Name,
		record.Title,
		record.Tag,
	} {
		if candidate != "" {
			return candidate, true
		}
	}

	return "", false
}

package frontier

import (
	"strconv"
	"strings"
	"time"

	"hdymonitor/internal/snapshot"
)

// Record is the persisted form of a Steady frontier, keyed the same way as the files
// earlier deployments wrote.
type Record struct {
	LastID    int       `json:"LastId"`
	UpdatedAt time.Time `json:"UpdatedAt"`
}

// decodeLegacy accepts the old file format which was just the id as a number.
func decodeLegacy(contents []byte) (Record, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || id <= 0 {
		return Record{}, false
	}
	return Record{LastID: id}, true
}

// NewStore returns a snapshot store for frontier records at path.
func NewStore(path string) snapshot.Store[Record] {
	return snapshot.New(path, snapshot.WithFallback[Record](decodeLegacy))
}

package state

import "time"

// FileState records how far into a server's log file processing has
// advanced. It is written before event extraction runs, so a crash during
// extraction never causes the same lines to be reprocessed.
type FileState struct {
	LineCount   int       `json:"line_count"`
	LastUpdated time.Time `json:"last_updated"`
}

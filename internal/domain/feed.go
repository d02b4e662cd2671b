package domain

import "time"

// Feed records one ingested bank feed file, keyed by content hash so the same
// file is never processed twice.
type Feed struct {
	ID          string    `json:"id"`
	Company     string    `json:"company"`
	FileHash    string    `json:"file_hash"`
	RecordCount int       `json:"record_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}

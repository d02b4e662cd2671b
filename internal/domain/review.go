package domain

import "time"

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "Pending Review"
	ReviewApproved ReviewStatus = "Approved"
	ReviewRejected ReviewStatus = "Rejected"
)

// ReviewRecord queues a non-exact match for human disposition. Records are
// kept after processing for audit; they are never deleted.
type ReviewRecord struct {
	ID            string       `json:"id"`
	Company       string       `json:"company"`
	TransactionID string       `json:"transaction_id"`
	DocumentID    string       `json:"document_id,omitempty"`
	DocumentKind  DocumentKind `json:"document_kind,omitempty"`
	MatchType     MatchType    `json:"match_type"`
	Confidence    int          `json:"confidence"`
	Notes         string       `json:"notes,omitempty"`
	Status        ReviewStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	ProcessedAt   *time.Time   `json:"processed_at,omitempty"`
	ProcessedBy   string       `json:"processed_by,omitempty"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records a settlement created for a matched transaction. At most one
// payment exists per transaction.
type Payment struct {
	ID            string          `json:"id"`
	Company       string          `json:"company"`
	TransactionID string          `json:"transaction_id"`
	DocumentID    string          `json:"document_id"`
	DocumentKind  DocumentKind    `json:"document_kind"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference,omitempty"`
	Remarks       string          `json:"remarks,omitempty"`
	PostingDate   time.Time       `json:"posting_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionCredit Direction = "Credit"
	DirectionDebit  Direction = "Debit"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "Pending"
	StatusMatched    TransactionStatus = "Matched"
	StatusReconciled TransactionStatus = "Reconciled"
	StatusIgnored    TransactionStatus = "Ignored"
	StatusError      TransactionStatus = "Error"
)

// Transaction is a bank transaction as delivered by the feed. Amount is always
// non-negative; the sign of the original feed amount is carried by Direction.
type Transaction struct {
	ID                  string            `json:"id"`
	ExternalID          string            `json:"external_id"`
	Company             string            `json:"company"`
	Amount              decimal.Decimal   `json:"amount"`
	Currency            string            `json:"currency"`
	Direction           Direction         `json:"direction"`
	CounterpartName     string            `json:"counterpart_name,omitempty"`
	CounterpartIBAN     string            `json:"counterpart_iban,omitempty"`
	StructuredReference string            `json:"structured_reference,omitempty"`
	RemittanceInfo      string            `json:"remittance_info,omitempty"`
	Status              TransactionStatus `json:"status"`
	MatchStatus         string            `json:"match_status,omitempty"`
	MatchNotes          string            `json:"match_notes,omitempty"`
	MatchedDocument     string            `json:"matched_document,omitempty"`
	PaymentID           string            `json:"payment_id,omitempty"`
	TransactionDate     time.Time         `json:"transaction_date"`
	ValueDate           *time.Time        `json:"value_date,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	KindSalesInvoice  DocumentKind = "sales_invoice"
	KindPurchaseOrder DocumentKind = "purchase_order"
)

type DocumentStatus string

const (
	DocStatusUnpaid     DocumentStatus = "unpaid"
	DocStatusPartlyPaid DocumentStatus = "partly_paid"
	DocStatusOverdue    DocumentStatus = "overdue"
	DocStatusPaid       DocumentStatus = "paid"
)

// OpenStatuses is the status subset a document must be in to be considered a
// match target.
var OpenStatuses = []DocumentStatus{DocStatusUnpaid, DocStatusPartlyPaid, DocStatusOverdue}

// OpenDocument is a ledger document a bank transaction can settle: a sales
// invoice for incoming payments or a purchase order for outgoing ones.
// Outstanding is the remaining unpaid portion; for purchase orders it is
// derived from linked purchase invoices, not stored.
type OpenDocument struct {
	ID                  string          `json:"id"`
	Kind                DocumentKind    `json:"kind"`
	Company             string          `json:"company"`
	PartyName           string          `json:"party_name"`
	PartyAliases        string          `json:"party_aliases,omitempty"`
	GrandTotal          decimal.Decimal `json:"grand_total"`
	Outstanding         decimal.Decimal `json:"outstanding"`
	Status              DocumentStatus  `json:"status"`
	StructuredReference string          `json:"structured_reference,omitempty"`
	PostingDate         time.Time       `json:"posting_date"`
}

// PurchaseInvoice is a supplier invoice linked to a purchase order. The
// order's outstanding amount is its grand total minus the paid portions of
// its finalized purchase invoices.
type PurchaseInvoice struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	Company    string          `json:"company"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Finalized  bool            `json:"finalized"`
}

// IsOpen reports whether the document can still receive a payment.
func (d *OpenDocument) IsOpen() bool {
	for _, s := range OpenStatuses {
		if d.Status == s {
			return true
		}
	}
	return false
}

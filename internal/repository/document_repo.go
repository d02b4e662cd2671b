package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betoled/reconciler/internal/domain"
)

// DocumentRepo reads the open-document pool: sales invoices, purchase orders,
// their parties' aliases, and the purchase invoices linked to orders. It
// satisfies matching.DocumentPool.
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `d.id, d.kind, d.company, d.party_name, d.grand_total,
	d.outstanding, d.status, d.structured_reference, d.posting_date,
	COALESCE(p.aliases, '')`

// InvoicesByReference returns finalized sales invoices carrying exactly this
// structured reference. Paid invoices are included: the caller needs to see
// that a reference resolved even when nothing is left to settle.
func (r *DocumentRepo) InvoicesByReference(company, ref string) ([]domain.OpenDocument, error) {
	if ref == "" {
		return nil, nil
	}
	rows, err := r.db.Query(`
		SELECT `+documentColumns+`
		FROM documents d
		LEFT JOIN parties p ON p.company = d.company AND p.name = d.party_name
		WHERE d.company = ? AND d.kind = ? AND d.docstatus = 1
		  AND d.structured_reference = ?
		ORDER BY d.posting_date DESC`,
		company, string(domain.KindSalesInvoice), ref,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return r.scanDocuments(rows)
}

// OpenDocuments returns finalized documents of the given kind still in the
// open status subset. For purchase orders the outstanding amount is derived
// from linked finalized purchase invoices.
func (r *DocumentRepo) OpenDocuments(company string, kind domain.DocumentKind) ([]domain.OpenDocument, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(domain.OpenStatuses)), ",")
	args := []any{company, string(kind)}
	for _, s := range domain.OpenStatuses {
		args = append(args, string(s))
	}

	rows, err := r.db.Query(`
		SELECT `+documentColumns+`
		FROM documents d
		LEFT JOIN parties p ON p.company = d.company AND p.name = d.party_name
		WHERE d.company = ? AND d.kind = ? AND d.docstatus = 1
		  AND d.status IN (`+placeholders+`)
		ORDER BY d.posting_date DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return r.scanDocuments(rows)
}

// GetByID fetches one document regardless of status, with outstanding derived
// for purchase orders.
func (r *DocumentRepo) GetByID(id string) (*domain.OpenDocument, error) {
	rows, err := r.db.Query(`
		SELECT `+documentColumns+`
		FROM documents d
		LEFT JOIN parties p ON p.company = d.company AND p.name = d.party_name
		WHERE d.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	docs, err := r.scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &docs[0], nil
}

// PaidAmountForOrder sums the paid portions of finalized purchase invoices
// linked to a purchase order. No linked invoices means nothing is paid.
func (r *DocumentRepo) PaidAmountForOrder(orderID string) (decimal.Decimal, error) {
	rows, err := r.db.Query(
		"SELECT paid_amount FROM purchase_invoices WHERE order_id = ? AND docstatus = 1",
		orderID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return decimal.Zero, fmt.Errorf("scan: %w", err)
		}
		paid, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse paid amount %q: %w", s, err)
		}
		total = total.Add(paid)
	}
	return total, rows.Err()
}

func (r *DocumentRepo) Insert(d *domain.OpenDocument) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO documents
		(id, kind, company, party_name, grand_total, outstanding, status,
		 structured_reference, posting_date, docstatus)
		VALUES (?,?,?,?,?,?,?,?,?,1)`,
		d.ID, string(d.Kind), d.Company, d.PartyName,
		d.GrandTotal.String(), d.Outstanding.String(), string(d.Status),
		d.StructuredReference, d.PostingDate.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpsertParty(company, name, aliases string) error {
	_, err := r.db.Exec(
		`INSERT INTO parties (company, name, aliases) VALUES (?,?,?)
		ON CONFLICT(company, name) DO UPDATE SET aliases = excluded.aliases`,
		company, name, aliases,
	)
	if err != nil {
		return fmt.Errorf("upsert party: %w", err)
	}
	return nil
}

func (r *DocumentRepo) InsertPurchaseInvoice(pi *domain.PurchaseInvoice) error {
	docstatus := 0
	if pi.Finalized {
		docstatus = 1
	}
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO purchase_invoices
		(id, order_id, company, grand_total, paid_amount, docstatus)
		VALUES (?,?,?,?,?,?)`,
		pi.ID, pi.OrderID, pi.Company, pi.GrandTotal.String(),
		pi.PaidAmount.String(), docstatus,
	)
	if err != nil {
		return fmt.Errorf("insert purchase invoice: %w", err)
	}
	return nil
}

// UpdateOutstanding adjusts a sales invoice's stored outstanding amount and
// status after a payment.
func (r *DocumentRepo) UpdateOutstanding(id string, outstanding decimal.Decimal, status domain.DocumentStatus) error {
	_, err := r.db.Exec(
		"UPDATE documents SET outstanding = ?, status = ? WHERE id = ?",
		outstanding.String(), string(status), id,
	)
	return err
}

func (r *DocumentRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

// --- helpers ---

func (r *DocumentRepo) scanDocuments(rows *sql.Rows) ([]domain.OpenDocument, error) {
	var docs []domain.OpenDocument
	for rows.Next() {
		var d domain.OpenDocument
		var kind, status, grandTotal, outstanding, postingDate string

		err := rows.Scan(
			&d.ID, &kind, &d.Company, &d.PartyName, &grandTotal,
			&outstanding, &status, &d.StructuredReference, &postingDate,
			&d.PartyAliases,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		d.Kind = domain.DocumentKind(kind)
		d.Status = domain.DocumentStatus(status)
		if d.GrandTotal, err = decimal.NewFromString(grandTotal); err != nil {
			return nil, fmt.Errorf("parse grand total %q: %w", grandTotal, err)
		}
		if d.Outstanding, err = decimal.NewFromString(outstanding); err != nil {
			return nil, fmt.Errorf("parse outstanding %q: %w", outstanding, err)
		}
		d.PostingDate, _ = time.Parse(time.RFC3339, postingDate)

		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Purchase orders carry no stored outstanding: derive it.
	for i := range docs {
		if docs[i].Kind != domain.KindPurchaseOrder {
			continue
		}
		paid, err := r.PaidAmountForOrder(docs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("derive outstanding for %s: %w", docs[i].ID, err)
		}
		docs[i].Outstanding = docs[i].GrandTotal.Sub(paid)
	}

	return docs, nil
}

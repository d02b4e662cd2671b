package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betoled/reconciler/internal/domain"
)

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// Create inserts a payment. The transaction_id UNIQUE constraint rejects a
// second payment for the same transaction.
func (r *PaymentRepo) Create(p *domain.Payment) error {
	_, err := r.db.Exec(
		`INSERT INTO payments
		(id, company, transaction_id, document_id, document_kind, amount,
		 reference, remarks, posting_date, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Company, p.TransactionID, p.DocumentID, string(p.DocumentKind),
		p.Amount.String(), p.Reference, p.Remarks,
		p.PostingDate.Format(time.RFC3339), p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepo) ExistsForTransaction(transactionID string) (bool, error) {
	var n int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM payments WHERE transaction_id = ?", transactionID,
	).Scan(&n)
	return n > 0, err
}

func (r *PaymentRepo) GetByID(id string) (*domain.Payment, error) {
	var p domain.Payment
	var kind, amount, postingDate, createdAt string

	err := r.db.QueryRow(
		`SELECT id, company, transaction_id, document_id, document_kind, amount,
		 reference, remarks, posting_date, created_at
		 FROM payments WHERE id = ?`, id,
	).Scan(
		&p.ID, &p.Company, &p.TransactionID, &p.DocumentID, &kind, &amount,
		&p.Reference, &p.Remarks, &postingDate, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.DocumentKind = domain.DocumentKind(kind)
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	p.PostingDate, _ = time.Parse(time.RFC3339, postingDate)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

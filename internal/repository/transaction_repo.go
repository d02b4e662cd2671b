package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betoled/reconciler/internal/domain"
)

type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

const transactionColumns = `id, external_id, company, amount, currency, direction,
	counterpart_name, counterpart_iban, structured_reference, remittance_info,
	status, match_status, match_notes, matched_document, payment_id,
	transaction_date, value_date, created_at`

// Insert stores a transaction, ignoring duplicates by external feed ID. The
// returned bool reports whether a row was actually written.
func (r *TransactionRepo) Insert(tx *domain.Transaction) (bool, error) {
	res, err := r.db.Exec(
		`INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		tx.ID, tx.ExternalID, tx.Company, tx.Amount.String(), tx.Currency,
		string(tx.Direction), tx.CounterpartName, tx.CounterpartIBAN,
		tx.StructuredReference, tx.RemittanceInfo, string(tx.Status),
		tx.MatchStatus, tx.MatchNotes, tx.MatchedDocument, tx.PaymentID,
		tx.TransactionDate.Format(time.RFC3339), formatNullableTime(tx.ValueDate),
		tx.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra > 0, nil
}

func (r *TransactionRepo) GetByID(id string) (*domain.Transaction, error) {
	rows, err := r.db.Query(
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, sql.ErrNoRows
	}
	return &txns[0], nil
}

// ListPending returns the company's unprocessed transactions in feed order.
func (r *TransactionRepo) ListPending(company string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT `+transactionColumns+` FROM transactions
		WHERE company = ? AND status = ?
		ORDER BY transaction_date, id`,
		company, string(domain.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

type TransactionFilter struct {
	Company   string
	Status    string
	Direction string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

func (r *TransactionRepo) List(f TransactionFilter) ([]domain.Transaction, int, error) {
	where, args := buildTransactionWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT " + transactionColumns + " FROM transactions" + where +
		" ORDER BY transaction_date DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	txns, err := scanTransactions(rows)
	return txns, total, err
}

// UpdateMatchOutcome records the result of a matching pass: new lifecycle
// status, classification, note trail, and the matched document if any.
func (r *TransactionRepo) UpdateMatchOutcome(id string, status domain.TransactionStatus, matchStatus, notes, matchedDocument string) error {
	_, err := r.db.Exec(
		`UPDATE transactions
		SET status = ?, match_status = ?, match_notes = ?, matched_document = ?
		WHERE id = ?`,
		string(status), matchStatus, notes, matchedDocument, id,
	)
	return err
}

// SetReconciled marks a transaction settled by the given payment.
func (r *TransactionRepo) SetReconciled(id, matchedDocument, paymentID, matchStatus, notes string) error {
	_, err := r.db.Exec(
		`UPDATE transactions
		SET status = ?, match_status = ?, match_notes = ?, matched_document = ?, payment_id = ?
		WHERE id = ?`,
		string(domain.StatusReconciled), matchStatus, notes, matchedDocument, paymentID, id,
	)
	return err
}

func (r *TransactionRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count)
	return count, err
}

// Summary aggregates reconciliation activity for a company over a lookback
// window.
type Summary struct {
	PeriodDays       int             `json:"period_days"`
	Total            int             `json:"total_transactions"`
	Reconciled       int             `json:"reconciled"`
	Matched          int             `json:"matched_pending_review"`
	Pending          int             `json:"unmatched"`
	Ignored          int             `json:"ignored"`
	Errors           int             `json:"errors"`
	ReconciledAmount decimal.Decimal `json:"reconciled_amount"`
}

func (r *TransactionRepo) GetSummary(company string, days int) (*Summary, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	s := &Summary{PeriodDays: days, ReconciledAmount: decimal.Zero}

	rows, err := r.db.Query(
		`SELECT status, COUNT(*) FROM transactions
		WHERE company = ? AND transaction_date >= ?
		GROUP BY status`,
		company, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		s.Total += n
		switch domain.TransactionStatus(status) {
		case domain.StatusReconciled:
			s.Reconciled = n
		case domain.StatusMatched:
			s.Matched = n
		case domain.StatusPending:
			s.Pending = n
		case domain.StatusIgnored:
			s.Ignored = n
		case domain.StatusError:
			s.Errors = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Amounts are decimal strings; sum them in Go.
	amountRows, err := r.db.Query(
		`SELECT amount FROM transactions
		WHERE company = ? AND status = ? AND transaction_date >= ?`,
		company, string(domain.StatusReconciled), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("reconciled amounts: %w", err)
	}
	defer amountRows.Close()
	for amountRows.Next() {
		var a string
		if err := amountRows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		amount, err := decimal.NewFromString(a)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", a, err)
		}
		s.ReconciledAmount = s.ReconciledAmount.Add(amount)
	}
	return s, amountRows.Err()
}

// FeedExistsByHash reports whether a feed file with this content hash was
// already ingested.
func (r *TransactionRepo) FeedExistsByHash(hash string) (bool, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds WHERE file_hash = ?", hash).Scan(&n)
	return n > 0, err
}

func (r *TransactionRepo) InsertFeed(f *domain.Feed) error {
	_, err := r.db.Exec(
		`INSERT INTO feeds (id, company, file_hash, record_count, ingested_at)
		VALUES (?,?,?,?,?)`,
		f.ID, f.Company, f.FileHash, f.RecordCount, f.IngestedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}
	return nil
}

// --- helpers ---

func buildTransactionWhere(f TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Company != "" {
		clauses = append(clauses, "company = ?")
		args = append(args, f.Company)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Direction != "" {
		clauses = append(clauses, "direction = ?")
		args = append(args, f.Direction)
	}
	if f.From != nil {
		clauses = append(clauses, "transaction_date >= ?")
		args = append(args, f.From.Format(time.RFC3339))
	}
	if f.To != nil {
		clauses = append(clauses, "transaction_date <= ?")
		args = append(args, f.To.Format(time.RFC3339))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var amount, direction, status, txnDate, createdAt string
		var valueDateNull sql.NullString

		err := rows.Scan(
			&tx.ID, &tx.ExternalID, &tx.Company, &amount, &tx.Currency,
			&direction, &tx.CounterpartName, &tx.CounterpartIBAN,
			&tx.StructuredReference, &tx.RemittanceInfo, &status,
			&tx.MatchStatus, &tx.MatchNotes, &tx.MatchedDocument, &tx.PaymentID,
			&txnDate, &valueDateNull, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		tx.Direction = domain.Direction(direction)
		tx.Status = domain.TransactionStatus(status)
		tx.TransactionDate, _ = time.Parse(time.RFC3339, txnDate)
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if valueDateNull.Valid {
			t, _ := time.Parse(time.RFC3339, valueDateNull.String)
			tx.ValueDate = &t
		}

		txns = append(txns, tx)
	}
	return txns, rows.Err()
}

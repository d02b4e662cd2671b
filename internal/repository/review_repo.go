package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/betoled/reconciler/internal/domain"
)

type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

const reviewColumns = `id, company, transaction_id, document_id, document_kind,
	match_type, confidence, notes, status, created_at, processed_at, processed_by`

func (r *ReviewRepo) Create(rec *domain.ReviewRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO reviews (`+reviewColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Company, rec.TransactionID, rec.DocumentID,
		string(rec.DocumentKind), string(rec.MatchType), rec.Confidence,
		rec.Notes, string(rec.Status), rec.CreatedAt.Format(time.RFC3339),
		formatNullableTime(rec.ProcessedAt), rec.ProcessedBy,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepo) GetByID(id string) (*domain.ReviewRecord, error) {
	rows, err := r.db.Query(
		"SELECT "+reviewColumns+" FROM reviews WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	recs, err := scanReviews(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &recs[0], nil
}

type ReviewFilter struct {
	Company string
	Status  string
}

func (r *ReviewRepo) List(f ReviewFilter) ([]domain.ReviewRecord, error) {
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
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := r.db.Query(
		"SELECT "+reviewColumns+" FROM reviews"+where+" ORDER BY created_at DESC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

// MarkProcessed closes a review with an approve or reject decision.
func (r *ReviewRepo) MarkProcessed(id string, status domain.ReviewStatus, processedBy string) error {
	_, err := r.db.Exec(
		"UPDATE reviews SET status = ?, processed_at = ?, processed_by = ? WHERE id = ?",
		string(status), time.Now().Format(time.RFC3339), processedBy, id,
	)
	return err
}

// AppendNote adds a line to the review's note trail without changing its
// status.
func (r *ReviewRepo) AppendNote(id, note string) error {
	_, err := r.db.Exec(
		`UPDATE reviews SET notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END
		WHERE id = ?`,
		note, note, id,
	)
	return err
}

func scanReviews(rows *sql.Rows) ([]domain.ReviewRecord, error) {
	var recs []domain.ReviewRecord
	for rows.Next() {
		var rec domain.ReviewRecord
		var kind, matchType, status, createdAt string
		var processedAtNull sql.NullString

		err := rows.Scan(
			&rec.ID, &rec.Company, &rec.TransactionID, &rec.DocumentID,
			&kind, &matchType, &rec.Confidence, &rec.Notes, &status,
			&createdAt, &processedAtNull, &rec.ProcessedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec.DocumentKind = domain.DocumentKind(kind)
		rec.MatchType = domain.MatchType(matchType)
		rec.Status = domain.ReviewStatus(status)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if processedAtNull.Valid {
			t, _ := time.Parse(time.RFC3339, processedAtNull.String)
			rec.ProcessedAt = &t
		}

		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

package reconciliation

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betoled/reconciler/internal/domain"
	"github.com/betoled/reconciler/internal/matching"
	"github.com/betoled/reconciler/internal/reference"
	"github.com/betoled/reconciler/internal/repository"
)

// RunResult summarises one reconciliation run over a company's pending
// transactions.
type RunResult struct {
	Processed      int `json:"processed"`
	AutoReconciled int `json:"auto_reconciled"`
	QueuedReview   int `json:"queued_for_review"`
	Unmatched      int `json:"unmatched"`
	Errors         int `json:"errors"`
}

// PaymentCreator persists settlements. Creating a second payment for the same
// transaction must fail.
type PaymentCreator interface {
	Create(p *domain.Payment) error
	ExistsForTransaction(transactionID string) (bool, error)
}

// Service drives the reconciliation workflow: matching pending transactions,
// settling exact matches, queueing the rest for review, and applying human
// review decisions.
type Service struct {
	txns     *repository.TransactionRepo
	docs     *repository.DocumentRepo
	reviews  *repository.ReviewRepo
	payments PaymentCreator
	engine   *matching.Engine
	cfg      matching.Config
}

func NewService(
	txns *repository.TransactionRepo,
	docs *repository.DocumentRepo,
	reviews *repository.ReviewRepo,
	payments PaymentCreator,
	cfg matching.Config,
) *Service {
	return &Service{
		txns:     txns,
		docs:     docs,
		reviews:  reviews,
		payments: payments,
		engine:   matching.NewEngine(docs, cfg),
		cfg:      cfg,
	}
}

// Run matches every pending transaction of the company and disposes of each
// result. One failing transaction never aborts the run; it is marked Error and
// the run continues.
func (s *Service) Run(company string) (*RunResult, error) {
	pending, err := s.txns.ListPending(company)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	result := &RunResult{}
	for i := range pending {
		txn := &pending[i]
		result.Processed++

		res, err := s.engine.Match(txn)
		if err != nil {
			log.Printf("[reconciliation] WARNING: matching %s failed: %v", txn.ID, err)
			if uerr := s.txns.UpdateMatchOutcome(txn.ID, domain.StatusError, "",
				fmt.Sprintf("Matching failed: %v", err), ""); uerr != nil {
				log.Printf("[reconciliation] WARNING: recording error for %s failed: %v", txn.ID, uerr)
			}
			result.Errors++
			continue
		}

		switch Dispose(res, s.cfg) {
		case ActionNone:
			// Stays pending so a later run can retry after documents arrive.
			if err := s.txns.UpdateMatchOutcome(txn.ID, domain.StatusPending,
				string(res.Type), joinNotes(res.Notes), ""); err != nil {
				log.Printf("[reconciliation] WARNING: updating %s failed: %v", txn.ID, err)
				result.Errors++
				continue
			}
			result.Unmatched++

		case ActionAutoSettle:
			if err := s.settle(txn, res.Document, string(res.Type), joinNotes(res.Notes)); err != nil {
				// Settlement failure is not fatal: downgrade to review so a
				// human can retry.
				log.Printf("[reconciliation] WARNING: auto-settle %s failed, queueing for review: %v",
					txn.ID, err)
				notes := append(res.Notes, fmt.Sprintf("Automatic settlement failed: %v", err))
				if qerr := s.queueForReview(txn, res, notes); qerr != nil {
					log.Printf("[reconciliation] WARNING: queueing %s failed: %v", txn.ID, qerr)
					result.Errors++
					continue
				}
				result.QueuedReview++
				continue
			}
			log.Printf("[reconciliation] Auto-reconciled %s against %s (%s)",
				txn.ID, res.Document.ID, txn.Amount.StringFixed(2))
			result.AutoReconciled++

		case ActionQueueForReview:
			if err := s.queueForReview(txn, res, res.Notes); err != nil {
				log.Printf("[reconciliation] WARNING: queueing %s failed: %v", txn.ID, err)
				result.Errors++
				continue
			}
			result.QueuedReview++
		}
	}

	log.Printf("[reconciliation] Run for %q: processed=%d auto=%d review=%d unmatched=%d errors=%d",
		company, result.Processed, result.AutoReconciled, result.QueuedReview,
		result.Unmatched, result.Errors)
	return result, nil
}

// settle creates the payment, marks the transaction reconciled, and rolls the
// settled amount into the document.
func (s *Service) settle(txn *domain.Transaction, doc *domain.OpenDocument, matchStatus, notes string) error {
	exists, err := s.payments.ExistsForTransaction(txn.ID)
	if err != nil {
		return fmt.Errorf("check existing payment: %w", err)
	}
	if exists {
		return fmt.Errorf("transaction %s already has a payment", txn.ID)
	}

	payment := buildPayment(txn, doc)
	if err := s.payments.Create(payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	if err := s.txns.SetReconciled(txn.ID, doc.ID, payment.ID, matchStatus, notes); err != nil {
		return fmt.Errorf("mark reconciled: %w", err)
	}

	// Purchase-order outstanding is derived from purchase invoices, not stored;
	// only sales invoices carry their own balance.
	if doc.Kind == domain.KindSalesInvoice {
		remaining := doc.Outstanding.Sub(txn.Amount)
		status := domain.DocStatusPartlyPaid
		if remaining.LessThanOrEqual(decimal.Zero) {
			remaining = decimal.Zero
			status = domain.DocStatusPaid
		}
		if err := s.docs.UpdateOutstanding(doc.ID, remaining, status); err != nil {
			return fmt.Errorf("update outstanding: %w", err)
		}
	}

	return nil
}

func (s *Service) queueForReview(txn *domain.Transaction, res *domain.MatchResult, notes []string) error {
	rec := &domain.ReviewRecord{
		ID:            uuid.NewString(),
		Company:       txn.Company,
		TransactionID: txn.ID,
		MatchType:     res.Type,
		Confidence:    res.Confidence,
		Notes:         joinNotes(notes),
		Status:        domain.ReviewPending,
		CreatedAt:     time.Now().UTC(),
	}
	matchedDocument := ""
	if res.Document != nil {
		rec.DocumentID = res.Document.ID
		rec.DocumentKind = res.Document.Kind
		matchedDocument = res.Document.ID
	}

	if err := s.reviews.Create(rec); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	if err := s.txns.UpdateMatchOutcome(txn.ID, domain.StatusMatched,
		string(res.Type), joinNotes(notes), matchedDocument); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// ApproveReview settles the reviewed transaction against the review's
// document and closes the review.
func (s *Service) ApproveReview(reviewID, processedBy string) error {
	rec, err := s.reviews.GetByID(reviewID)
	if err != nil {
		return fmt.Errorf("get review: %w", err)
	}
	if rec.Status != domain.ReviewPending {
		return fmt.Errorf("review %s already processed (%s)", reviewID, rec.Status)
	}
	if rec.DocumentID == "" {
		return errors.New("review carries no document; use a manual match instead")
	}

	txn, err := s.txns.GetByID(rec.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	doc, err := s.docs.GetByID(rec.DocumentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	notes := fmt.Sprintf("Approved by %s (%s, confidence %d)", processedBy, rec.MatchType, rec.Confidence)
	if err := s.settle(txn, doc, string(rec.MatchType), notes); err != nil {
		return err
	}
	return s.reviews.MarkProcessed(reviewID, domain.ReviewApproved, processedBy)
}

// RejectReview closes the review and returns the transaction to the pending
// pool so it can be re-matched or handled manually.
func (s *Service) RejectReview(reviewID, processedBy string) error {
	rec, err := s.reviews.GetByID(reviewID)
	if err != nil {
		return fmt.Errorf("get review: %w", err)
	}
	if rec.Status != domain.ReviewPending {
		return fmt.Errorf("review %s already processed (%s)", reviewID, rec.Status)
	}

	if err := s.reviews.MarkProcessed(reviewID, domain.ReviewRejected, processedBy); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return s.txns.UpdateMatchOutcome(rec.TransactionID, domain.StatusPending,
		string(domain.MatchNone), fmt.Sprintf("Match rejected by %s", processedBy), "")
}

// ManualMatch settles a transaction against an explicitly chosen document,
// bypassing the engine. The decision is recorded as a review: approved when
// settlement succeeds, left pending with the failure in its notes when it
// does not, so the operator can see what happened and retry.
func (s *Service) ManualMatch(transactionID, documentID, processedBy string) error {
	txn, err := s.txns.GetByID(transactionID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if txn.Status == domain.StatusReconciled || txn.Status == domain.StatusIgnored {
		return fmt.Errorf("transaction %s is %s", transactionID, txn.Status)
	}

	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("document %s not found", documentID)
		}
		return fmt.Errorf("get document: %w", err)
	}
	if doc.Company != txn.Company {
		return fmt.Errorf("document %s belongs to %q, not %q", documentID, doc.Company, txn.Company)
	}
	if !doc.IsOpen() {
		return fmt.Errorf("document %s is not open (%s)", documentID, doc.Status)
	}

	note := fmt.Sprintf("Manually matched by %s", processedBy)
	rec := &domain.ReviewRecord{
		ID:            uuid.NewString(),
		Company:       txn.Company,
		TransactionID: txn.ID,
		DocumentID:    doc.ID,
		DocumentKind:  doc.Kind,
		MatchType:     domain.MatchExact,
		Confidence:    100,
		Notes:         note,
		Status:        domain.ReviewPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.reviews.Create(rec); err != nil {
		return fmt.Errorf("create review: %w", err)
	}

	if err := s.settle(txn, doc, string(domain.MatchExact), note); err != nil {
		if aerr := s.reviews.AppendNote(rec.ID,
			fmt.Sprintf("Settlement failed: %v", err)); aerr != nil {
			log.Printf("[reconciliation] WARNING: recording failure on review %s: %v", rec.ID, aerr)
		}
		return err
	}
	return s.reviews.MarkProcessed(rec.ID, domain.ReviewApproved, processedBy)
}

// IgnoreTransaction takes a transaction out of the matching pool permanently.
func (s *Service) IgnoreTransaction(transactionID, reason string) error {
	txn, err := s.txns.GetByID(transactionID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if txn.Status == domain.StatusReconciled {
		return fmt.Errorf("transaction %s is already reconciled", transactionID)
	}

	note := "Ignored"
	if reason != "" {
		note = "Ignored: " + reason
	}
	return s.txns.UpdateMatchOutcome(transactionID, domain.StatusIgnored,
		txn.MatchStatus, note, txn.MatchedDocument)
}

// Suggestions returns ranked candidate documents for a transaction, for the
// review UI.
func (s *Service) Suggestions(transactionID string, limit int) ([]matching.Suggestion, error) {
	txn, err := s.txns.GetByID(transactionID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return s.engine.Suggest(txn, limit)
}

func buildPayment(txn *domain.Transaction, doc *domain.OpenDocument) *domain.Payment {
	ref := txn.StructuredReference
	if ref != "" {
		ref = reference.Format(ref)
	}
	return &domain.Payment{
		ID:            uuid.NewString(),
		Company:       txn.Company,
		TransactionID: txn.ID,
		DocumentID:    doc.ID,
		DocumentKind:  doc.Kind,
		Amount:        txn.Amount,
		Reference:     ref,
		Remarks:       fmt.Sprintf("Bank transaction %s from %s", txn.ExternalID, txn.CounterpartName),
		PostingDate:   txn.TransactionDate,
		CreatedAt:     time.Now().UTC(),
	}
}

func joinNotes(notes []string) string {
	return strings.Join(notes, "\n")
}

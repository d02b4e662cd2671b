package reconciliation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betoled/reconciler/internal/domain"
	"github.com/betoled/reconciler/internal/matching"
	"github.com/betoled/reconciler/internal/repository"
)

// 1234567890 mod 97 = 2, so this reference carries a valid check.
const testRef = "123456789002"

type fixture struct {
	svc     *Service
	txns    *repository.TransactionRepo
	docs    *repository.DocumentRepo
	reviews *repository.ReviewRepo
	pays    *repository.PaymentRepo
}

func newFixture(t *testing.T, cfg matching.Config) *fixture {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		txns:    repository.NewTransactionRepo(db),
		docs:    repository.NewDocumentRepo(db),
		reviews: repository.NewReviewRepo(db),
		pays:    repository.NewPaymentRepo(db),
	}
	f.svc = NewService(f.txns, f.docs, f.reviews, f.pays, cfg)
	return f
}

func (f *fixture) seedTxn(t *testing.T, id, ref, name, amount string) {
	t.Helper()
	_, err := f.txns.Insert(&domain.Transaction{
		ID:                  id,
		ExternalID:          "ext-" + id,
		Company:             "Acme BV",
		Amount:              decimal.RequireFromString(amount),
		Currency:            "EUR",
		Direction:           domain.DirectionCredit,
		CounterpartName:     name,
		StructuredReference: ref,
		RemittanceInfo:      "payment",
		Status:              domain.StatusPending,
		TransactionDate:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		CreatedAt:           time.Now().UTC(),
	})
	require.NoError(t, err)
}

func (f *fixture) seedInvoice(t *testing.T, id, ref, party, outstanding string) {
	t.Helper()
	require.NoError(t, f.docs.Insert(&domain.OpenDocument{
		ID:                  id,
		Kind:                domain.KindSalesInvoice,
		Company:             "Acme BV",
		PartyName:           party,
		GrandTotal:          decimal.RequireFromString(outstanding),
		Outstanding:         decimal.RequireFromString(outstanding),
		Status:              domain.DocStatusUnpaid,
		StructuredReference: ref,
		PostingDate:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
}

func TestRunAutoReconcilesExactReferenceMatch(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.seedInvoice(t, "SINV-001", testRef, "Jan Janssens", "150.00")
	f.seedTxn(t, "t-1", testRef, "Jan Janssens", "150.00")

	res, err := f.svc.Run("Acme BV")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.AutoReconciled)
	assert.Zero(t, res.QueuedReview)

	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReconciled, txn.Status)
	assert.Equal(t, string(domain.MatchExact), txn.MatchStatus)
	assert.Equal(t, "SINV-001", txn.MatchedDocument)
	require.NotEmpty(t, txn.PaymentID)

	pay, err := f.pays.GetByID(txn.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "+++123/4567/89002+++", pay.Reference)
	assert.True(t, pay.Amount.Equal(decimal.RequireFromString("150.00")))

	doc, err := f.docs.GetByID("SINV-001")
	require.NoError(t, err)
	assert.True(t, doc.Outstanding.IsZero())
	assert.Equal(t, domain.DocStatusPaid, doc.Status)
}

func TestRunQueuesPartialPaymentForReview(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.seedInvoice(t, "SINV-001", testRef, "Jan Janssens", "200.00")
	f.seedTxn(t, "t-1", testRef, "Jan Janssens", "150.00")

	res, err := f.svc.Run("Acme BV")
	require.NoError(t, err)
	assert.Equal(t, 1, res.QueuedReview)
	assert.Zero(t, res.AutoReconciled)

	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMatched, txn.Status)
	assert.Equal(t, string(domain.MatchPartial), txn.MatchStatus)

	pending, err := f.reviews.List(repository.ReviewFilter{Status: string(domain.ReviewPending)})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "t-1", pending[0].TransactionID)
	assert.Equal(t, "SINV-001", pending[0].DocumentID)
	assert.Equal(t, domain.MatchPartial, pending[0].MatchType)
	assert.Equal(t, 85, pending[0].Confidence)

	// No payment without a review decision.
	exists, err := f.pays.ExistsForTransaction("t-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunLeavesUnmatchedPending(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.seedTxn(t, "t-1", "", "Total Stranger", "150.00")

	res, err := f.svc.Run("Acme BV")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unmatched)

	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, txn.Status)
	assert.Equal(t, string(domain.MatchNone), txn.MatchStatus)

	// A later run picks it up again.
	res, err = f.svc.Run("Acme BV")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func TestRunSkipsAutoReconcileWhenDisabled(t *testing.T) {
	cfg := matching.DefaultConfig()
	cfg.AutoReconcileExactMatches = false
	f := newFixture(t, cfg)
	f.seedInvoice(t, "SINV-001", testRef, "Jan Janssens", "150.00")
	f.seedTxn(t, "t-1", testRef, "Jan Janssens", "150.00")

	res, err := f.svc.Run("Acme BV")
	require.NoError(t, err)
	assert.Zero(t, res.AutoReconciled)
	assert.Equal(t, 1, res.QueuedReview)
}

type failingPayments struct{}

func (failingPayments) Create(*domain.Payment) error { return errors.New("ledger unavailable") }
func (failingPayments) ExistsForTransaction(string) (bool, error) { return false, nil }

func TestRunDowngradesFailedSettlementToReview(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.svc = NewService(f.txns, f.docs, f.reviews, failingPayments{}, matching.DefaultConfig())
	f.seedInvoice(t, "SINV-001", testRef, "Jan Janssens", "150.00")
	f.seedTxn(t, "t-1", testRef, "Jan Janssens", "150.00")

	res, err := f.svc.Run("Acme BV")
	require.NoError(t, err)
	assert.Zero(t, res.AutoReconciled)
	assert.Equal(t, 1, res.QueuedReview)
	assert.Zero(t, res.Errors)

	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMatched, txn.Status)
	assert.Contains(t, txn.MatchNotes, "Automatic settlement failed")

	pending, err := f.reviews.List(repository.ReviewFilter{Status: string(domain.ReviewPending)})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.MatchExact, pending[0].MatchType)
}

func TestApproveReviewSettles(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.seedInvoice(t, "SINV-001", testRef, "Jan Janssens", "200.00")
	f.seedTxn(t, "t-1", testRef, "Jan Janssens", "150.00")

	_, err := f.svc.Run("Acme BV")
	require.NoError(t, err)
	pending, err := f.reviews.List(repository.ReviewFilter{})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.svc.ApproveReview(pending[0].ID, "ops@acme.be"))

	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReconciled, txn.Status)
	require.NotEmpty(t, txn.PaymentID)

	doc, err := f.docs.GetByID("SINV-001")
	require.NoError(t, err)
	assert.True(t, doc.Outstanding.Equal(decimal.RequireFromString("50.00")),
		"outstanding = %s", doc.Outstanding)
	assert.Equal(t, domain.DocStatusPartlyPaid, doc.Status)

	rec, err := f.reviews.GetByID(pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, rec.Status)
	assert.Equal(t, "ops@acme.be", rec.ProcessedBy)

	// Approving twice must fail.
	assert.Error(t, f.svc.ApproveReview(pending[0].ID, "ops@acme.be"))
}

func TestRejectReviewReturnsTransactionToPending(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.seedInvoice(t, "SINV-001", testRef, "Jan Janssens", "200.00")
	f.seedTxn(t, "t-1", testRef, "Jan Janssens", "150.00")

	_, err := f.svc.Run("Acme BV")
	require.NoError(t, err)
	pending, err := f.reviews.List(repository.ReviewFilter{})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.svc.RejectReview(pending[0].ID, "ops@acme.be"))

	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, txn.Status)
	assert.Contains(t, txn.MatchNotes, "rejected")

	rec, err := f.reviews.GetByID(pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewRejected, rec.Status)

	exists, err := f.pays.ExistsForTransaction("t-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManualMatch(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.seedInvoice(t, "SINV-001", "", "Jan Janssens", "150.00")
	f.seedTxn(t, "t-1", "", "Someone Else", "150.00")

	require.NoError(t, f.svc.ManualMatch("t-1", "SINV-001", "ops@acme.be"))

	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReconciled, txn.Status)
	assert.Equal(t, "SINV-001", txn.MatchedDocument)

	// The decision leaves an approved audit record.
	recs, err := f.reviews.List(repository.ReviewFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReviewApproved, recs[0].Status)
	assert.Equal(t, "SINV-001", recs[0].DocumentID)
	assert.Equal(t, "ops@acme.be", recs[0].ProcessedBy)
	assert.Contains(t, recs[0].Notes, "Manually matched by ops@acme.be")

	// Already settled; a second manual match must fail.
	assert.Error(t, f.svc.ManualMatch("t-1", "SINV-001", "ops@acme.be"))
}

func TestManualMatchRejectsCrossCompanyDocument(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	require.NoError(t, f.docs.Insert(&domain.OpenDocument{
		ID: "SINV-001", Kind: domain.KindSalesInvoice, Company: "Other BV",
		PartyName:   "Jan Janssens",
		GrandTotal:  decimal.RequireFromString("150.00"),
		Outstanding: decimal.RequireFromString("150.00"),
		Status:      domain.DocStatusUnpaid,
		PostingDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
	f.seedTxn(t, "t-1", "", "Jan Janssens", "150.00")

	err := f.svc.ManualMatch("t-1", "SINV-001", "ops@acme.be")
	assert.ErrorContains(t, err, "belongs to")

	recs, err := f.reviews.List(repository.ReviewFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestManualMatchSettlementFailureStaysPending(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.svc = NewService(f.txns, f.docs, f.reviews, failingPayments{}, matching.DefaultConfig())
	f.seedInvoice(t, "SINV-001", "", "Jan Janssens", "150.00")
	f.seedTxn(t, "t-1", "", "Jan Janssens", "150.00")

	err := f.svc.ManualMatch("t-1", "SINV-001", "ops@acme.be")
	require.ErrorContains(t, err, "ledger unavailable")

	// The transaction is untouched and can be matched again.
	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, txn.Status)

	// The audit record stays open and carries the failure.
	pending, err := f.reviews.List(repository.ReviewFilter{Status: string(domain.ReviewPending)})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "SINV-001", pending[0].DocumentID)
	assert.Contains(t, pending[0].Notes, "Manually matched by ops@acme.be")
	assert.Contains(t, pending[0].Notes, "Settlement failed")
	assert.Contains(t, pending[0].Notes, "ledger unavailable")
}

func TestManualMatchRejectsClosedDocument(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	paid := &domain.OpenDocument{
		ID: "SINV-001", Kind: domain.KindSalesInvoice, Company: "Acme BV",
		PartyName:  "Jan Janssens",
		GrandTotal: decimal.RequireFromString("150.00"),
		Status:     domain.DocStatusPaid,
		PostingDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.docs.Insert(paid))
	f.seedTxn(t, "t-1", "", "Jan Janssens", "150.00")

	err := f.svc.ManualMatch("t-1", "SINV-001", "ops@acme.be")
	assert.ErrorContains(t, err, "not open")

	assert.ErrorContains(t, f.svc.ManualMatch("t-1", "SINV-404", "ops@acme.be"), "not found")
}

func TestIgnoreTransaction(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.seedTxn(t, "t-1", "", "Jan Janssens", "150.00")

	require.NoError(t, f.svc.IgnoreTransaction("t-1", "internal transfer"))

	txn, err := f.txns.GetByID("t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIgnored, txn.Status)
	assert.Equal(t, "Ignored: internal transfer", txn.MatchNotes)

	// Ignored transactions never enter a run.
	res, err := f.svc.Run("Acme BV")
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
}

func TestIgnoreRejectsReconciled(t *testing.T) {
	f := newFixture(t, matching.DefaultConfig())
	f.seedInvoice(t, "SINV-001", testRef, "Jan Janssens", "150.00")
	f.seedTxn(t, "t-1", testRef, "Jan Janssens", "150.00")

	_, err := f.svc.Run("Acme BV")
	require.NoError(t, err)

	assert.ErrorContains(t, f.svc.IgnoreTransaction("t-1", ""), "already reconciled")
}

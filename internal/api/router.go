package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/betoled/reconciler/internal/ingestion"
	"github.com/betoled/reconciler/internal/reconciliation"
	"github.com/betoled/reconciler/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	txnRepo *repository.TransactionRepo,
	reviewRepo *repository.ReviewRepo,
	reconSvc *reconciliation.Service,
	ingestionSvc *ingestion.Service,
) http.Handler {
	h := &Handlers{
		txnRepo:      txnRepo,
		reviewRepo:   reviewRepo,
		reconSvc:     reconSvc,
		ingestionSvc: ingestionSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion.
		r.Post("/feeds/ingest", h.IngestFeed)

		// Reconciliation.
		r.Post("/reconciliation/run", h.RunReconciliation)

		// Transactions.
		r.Get("/transactions", h.ListTransactions)
		r.Get("/transactions/unmatched", h.ListUnmatched)
		r.Get("/transactions/{id}", h.GetTransaction)
		r.Get("/transactions/{id}/suggestions", h.GetSuggestions)
		r.Post("/transactions/{id}/ignore", h.IgnoreTransaction)
		r.Post("/transactions/{id}/match", h.ManualMatch)

		// Reviews.
		r.Get("/reviews", h.ListReviews)
		r.Post("/reviews/{id}/approve", h.ApproveReview)
		r.Post("/reviews/{id}/reject", h.RejectReview)

		// Summary.
		r.Get("/summary", h.GetSummary)
	})

	return r
}

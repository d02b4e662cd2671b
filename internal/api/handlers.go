package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/betoled/reconciler/internal/ingestion"
	"github.com/betoled/reconciler/internal/reconciliation"
	"github.com/betoled/reconciler/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	txnRepo      *repository.TransactionRepo
	reviewRepo   *repository.ReviewRepo
	reconSvc     *reconciliation.Service
	ingestionSvc *ingestion.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- IngestFeed ---

func (h *Handlers) IngestFeed(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	company := r.FormValue("company")
	format := r.FormValue("format")
	if company == "" || format == "" {
		writeError(w, http.StatusBadRequest, "company and format are required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := h.ingestionSvc.IngestFeed(data, company, format)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- RunReconciliation ---

func (h *Handlers) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("company")
	if company == "" {
		writeError(w, http.StatusBadRequest, "company is required")
		return
	}

	result, err := h.reconSvc.Run(company)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- Transactions ---

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TransactionFilter{
		Company:   q.Get("company"),
		Status:    q.Get("status"),
		Direction: q.Get("direction"),
		From:      parseTime(q.Get("from")),
		To:        parseTime(q.Get("to")),
		Page:      parseIntDefault(q.Get("page"), 1),
		Limit:     parseIntDefault(q.Get("limit"), 50),
	}

	txns, total, err := h.txnRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        total,
		"page":         filter.Page,
		"limit":        filter.Limit,
	})
}

func (h *Handlers) ListUnmatched(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("company")
	if company == "" {
		writeError(w, http.StatusBadRequest, "company is required")
		return
	}

	txns, err := h.txnRepo.ListPending(company)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        len(txns),
	})
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	txn, err := h.txnRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, txn)
}

func (h *Handlers) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := parseIntDefault(r.URL.Query().Get("limit"), 5)

	suggestions, err := h.reconSvc.Suggestions(id, limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": id,
		"suggestions":    suggestions,
	})
}

func (h *Handlers) IgnoreTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Reason string `json:"reason"`
	}
	// An empty body is fine; the reason is optional.
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := h.reconSvc.IgnoreTransaction(id, body.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
}

func (h *Handlers) ManualMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		DocumentID  string `json:"document_id"`
		ProcessedBy string `json:"processed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	if err := h.reconSvc.ManualMatch(id, body.DocumentID, body.ProcessedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reconciled"})
}

// --- Reviews ---

func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reviews, err := h.reviewRepo.List(repository.ReviewFilter{
		Company: q.Get("company"),
		Status:  q.Get("status"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reviews": reviews,
		"total":   len(reviews),
	})
}

func (h *Handlers) ApproveReview(w http.ResponseWriter, r *http.Request) {
	h.processReview(w, r, h.reconSvc.ApproveReview, "approved")
}

func (h *Handlers) RejectReview(w http.ResponseWriter, r *http.Request) {
	h.processReview(w, r, h.reconSvc.RejectReview, "rejected")
}

func (h *Handlers) processReview(w http.ResponseWriter, r *http.Request, fn func(id, by string) error, status string) {
	id := chi.URLParam(r, "id")

	var body struct {
		ProcessedBy string `json:"processed_by"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := fn(id, body.ProcessedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// --- Summary ---

func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	company := q.Get("company")
	if company == "" {
		writeError(w, http.StatusBadRequest, "company is required")
		return
	}
	days := parseIntDefault(q.Get("days"), 30)

	summary, err := h.txnRepo.GetSummary(company, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

package ingestion

import (
	"crypto/sha256"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/betoled/reconciler/internal/domain"
	"github.com/betoled/reconciler/internal/reconciliation"
	"github.com/betoled/reconciler/internal/repository"
)

// IngestResult is returned from a successful feed ingestion.
type IngestResult struct {
	FeedID            string                    `json:"feed_id,omitempty"`
	AlreadyIngested   bool                      `json:"already_ingested"`
	RecordsIngested   int                       `json:"records_ingested"`
	DuplicatesSkipped int                       `json:"duplicates_skipped"`
	Reconciliation    *reconciliation.RunResult `json:"reconciliation,omitempty"`
}

// Service ingests bank feed files, deduplicates them, and kicks off a
// reconciliation run over the new transactions.
type Service struct {
	txns     *repository.TransactionRepo
	reconSvc *reconciliation.Service
}

func NewService(txns *repository.TransactionRepo, reconSvc *reconciliation.Service) *Service {
	return &Service{txns: txns, reconSvc: reconSvc}
}

// IngestFeed parses a bank feed file and stores its transactions. A file that
// was already ingested (by content hash) is a no-op, and individual
// transactions seen before (by external ID) are skipped.
//
// format must be one of: json, csv
func (s *Service) IngestFeed(data []byte, company, format string) (*IngestResult, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.txns.FeedExistsByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		return &IngestResult{AlreadyIngested: true}, nil
	}

	var txns []domain.Transaction
	switch format {
	case "json":
		txns, err = ParsePontoJSON(data, company)
	case "csv":
		txns, err = ParseBankCSV(data, company)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}

	inserted := 0
	for i := range txns {
		ok, err := s.txns.Insert(&txns[i])
		if err != nil {
			return nil, fmt.Errorf("insert transaction %s: %w", txns[i].ExternalID, err)
		}
		if ok {
			inserted++
		}
	}

	feed := &domain.Feed{
		ID:          uuid.NewString(),
		Company:     company,
		FileHash:    hash,
		RecordCount: len(txns),
		IngestedAt:  time.Now().UTC(),
	}
	if err := s.txns.InsertFeed(feed); err != nil {
		return nil, fmt.Errorf("insert feed: %w", err)
	}

	log.Printf("[ingestion] Ingested feed %s for %q: %d records (%d new)",
		feed.ID, company, len(txns), inserted)

	// Reconciliation problems never fail the ingestion; the transactions are
	// stored and a later run can retry.
	runResult, err := s.reconSvc.Run(company)
	if err != nil {
		log.Printf("[ingestion] WARNING: reconciliation failed: %v", err)
	}

	return &IngestResult{
		FeedID:            feed.ID,
		RecordsIngested:   inserted,
		DuplicatesSkipped: len(txns) - inserted,
		Reconciliation:    runResult,
	}, nil
}

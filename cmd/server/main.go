package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/betoled/reconciler/internal/api"
	"github.com/betoled/reconciler/internal/domain"
	"github.com/betoled/reconciler/internal/ingestion"
	"github.com/betoled/reconciler/internal/matching"
	"github.com/betoled/reconciler/internal/reconciliation"
	"github.com/betoled/reconciler/internal/repository"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "reconciler.db"
	}

	cfg := configFromEnv()

	log.Printf("Initializing database at %s", dbPath)
	db, err := repository.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	// Create repositories.
	txnRepo := repository.NewTransactionRepo(db)
	docRepo := repository.NewDocumentRepo(db)
	reviewRepo := repository.NewReviewRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)

	// Create services.
	reconSvc := reconciliation.NewService(txnRepo, docRepo, reviewRepo, paymentRepo, cfg)
	ingestionSvc := ingestion.NewService(txnRepo, reconSvc)

	// Seed documents if the pool is empty.
	count, err := docRepo.Count()
	if err != nil {
		log.Fatalf("Failed to count documents: %v", err)
	}
	if count == 0 {
		log.Println("Database is empty, seeding documents from testdata...")
		if err := seedDocuments(docRepo); err != nil {
			log.Printf("WARNING: Failed to seed documents: %v", err)
		}
	} else {
		log.Printf("Database already has %d documents, skipping seed", count)
	}

	// Create router.
	router := api.NewRouter(txnRepo, reviewRepo, reconSvc, ingestionSvc)

	log.Printf("Bank Transaction Reconciler")
	log.Printf("Matching: tolerance=%.1f%% threshold=%d fuzzy=%v auto-reconcile=%v",
		cfg.AmountTolerancePercent, cfg.FuzzyNameThreshold,
		cfg.FuzzyMatchingEnabled, cfg.AutoReconcileExactMatches)
	log.Printf("Listening on http://localhost:%s", port)
	log.Printf("API base: http://localhost:%s/api/v1", port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/v1/feeds/ingest")
	log.Printf("  POST   /api/v1/reconciliation/run")
	log.Printf("  GET    /api/v1/transactions")
	log.Printf("  GET    /api/v1/transactions/unmatched")
	log.Printf("  GET    /api/v1/transactions/{id}")
	log.Printf("  GET    /api/v1/transactions/{id}/suggestions")
	log.Printf("  POST   /api/v1/transactions/{id}/ignore")
	log.Printf("  POST   /api/v1/transactions/{id}/match")
	log.Printf("  GET    /api/v1/reviews")
	log.Printf("  POST   /api/v1/reviews/{id}/approve")
	log.Printf("  POST   /api/v1/reviews/{id}/reject")
	log.Printf("  GET    /api/v1/summary")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// configFromEnv builds the matching configuration from environment variables,
// falling back to the documented defaults.
func configFromEnv() matching.Config {
	cfg := matching.DefaultConfig()

	if v := os.Getenv("AMOUNT_TOLERANCE_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.AmountTolerancePercent = f
		} else {
			log.Printf("WARNING: invalid AMOUNT_TOLERANCE_PCT %q, using %.1f", v, cfg.AmountTolerancePercent)
		}
	}
	if v := os.Getenv("FUZZY_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			cfg.FuzzyNameThreshold = n
		} else {
			log.Printf("WARNING: invalid FUZZY_THRESHOLD %q, using %d", v, cfg.FuzzyNameThreshold)
		}
	}
	if v := os.Getenv("FUZZY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.FuzzyMatchingEnabled = b
		}
	}
	if v := os.Getenv("AUTO_RECONCILE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoReconcileExactMatches = b
		}
	}

	return cfg
}

// seedFile is the on-disk shape of testdata/documents.json.
type seedFile struct {
	Documents []domain.OpenDocument `json:"documents"`
	Parties   []struct {
		Company string `json:"company"`
		Name    string `json:"name"`
		Aliases string `json:"aliases"`
	} `json:"parties"`
	PurchaseInvoices []domain.PurchaseInvoice `json:"purchase_invoices"`
}

func seedDocuments(repo *repository.DocumentRepo) error {
	// Try multiple possible locations for testdata.
	candidates := []string{
		"testdata/documents.json",
		filepath.Join(".", "testdata", "documents.json"),
	}

	// Also try to find relative to the executable.
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "documents.json"),
			filepath.Join(dir, "..", "..", "testdata", "documents.json"),
		)
	}

	var data []byte
	var loadErr error
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			log.Printf("Loaded documents from %s", path)
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find documents.json in any candidate path: %w", loadErr)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("unmarshal documents: %w", err)
	}

	for i := range seed.Documents {
		if err := repo.Insert(&seed.Documents[i]); err != nil {
			return fmt.Errorf("insert %s: %w", seed.Documents[i].ID, err)
		}
	}
	for _, p := range seed.Parties {
		if err := repo.UpsertParty(p.Company, p.Name, p.Aliases); err != nil {
			return fmt.Errorf("upsert party %s: %w", p.Name, err)
		}
	}
	for i := range seed.PurchaseInvoices {
		if err := repo.InsertPurchaseInvoice(&seed.PurchaseInvoices[i]); err != nil {
			return fmt.Errorf("insert purchase invoice %s: %w", seed.PurchaseInvoices[i].ID, err)
		}
	}

	log.Printf("Seeded %d documents, %d parties, %d purchase invoices",
		len(seed.Documents), len(seed.Parties), len(seed.PurchaseInvoices))
	return nil
}

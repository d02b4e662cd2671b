package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// A single connection keeps an in-memory database coherent (every pooled
	// connection would otherwise see its own empty copy) and serializes writes.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

// Monetary columns are stored as exact decimal strings, never REAL: the
// matching tolerances are defined down to the cent.
func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			external_id TEXT UNIQUE NOT NULL,
			company TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			direction TEXT NOT NULL,
			counterpart_name TEXT NOT NULL DEFAULT '',
			counterpart_iban TEXT NOT NULL DEFAULT '',
			structured_reference TEXT NOT NULL DEFAULT '',
			remittance_info TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			match_status TEXT NOT NULL DEFAULT '',
			match_notes TEXT NOT NULL DEFAULT '',
			matched_document TEXT NOT NULL DEFAULT '',
			payment_id TEXT NOT NULL DEFAULT '',
			transaction_date DATETIME NOT NULL,
			value_date DATETIME,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_company_status ON transactions(company, status)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(structured_reference)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date)`,

		// docstatus 1 marks a finalized document; drafts are never matched.
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			company TEXT NOT NULL,
			party_name TEXT NOT NULL,
			grand_total TEXT NOT NULL,
			outstanding TEXT NOT NULL DEFAULT '0',
			status TEXT NOT NULL,
			structured_reference TEXT NOT NULL DEFAULT '',
			posting_date DATETIME NOT NULL,
			docstatus INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(company, kind, status)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_reference ON documents(structured_reference)`,

		`CREATE TABLE IF NOT EXISTS parties (
			company TEXT NOT NULL,
			name TEXT NOT NULL,
			aliases TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (company, name)
		)`,

		`CREATE TABLE IF NOT EXISTS purchase_invoices (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			company TEXT NOT NULL,
			grand_total TEXT NOT NULL,
			paid_amount TEXT NOT NULL DEFAULT '0',
			docstatus INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (order_id) REFERENCES documents(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchase_invoices_order ON purchase_invoices(order_id)`,

		`CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			document_id TEXT NOT NULL DEFAULT '',
			document_kind TEXT NOT NULL DEFAULT '',
			match_type TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			processed_at DATETIME,
			processed_by TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (transaction_id) REFERENCES transactions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_status ON reviews(company, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_transaction ON reviews(transaction_id)`,

		// transaction_id is UNIQUE: settlement creation is at most once per
		// transaction.
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			transaction_id TEXT UNIQUE NOT NULL,
			document_id TEXT NOT NULL,
			document_kind TEXT NOT NULL,
			amount TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			remarks TEXT NOT NULL DEFAULT '',
			posting_date DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (transaction_id) REFERENCES transactions(id)
		)`,

		`CREATE TABLE IF NOT EXISTS feeds (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			record_count INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}

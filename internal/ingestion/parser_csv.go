package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betoled/reconciler/internal/currency"
	"github.com/betoled/reconciler/internal/domain"
)

// ParseBankCSV parses a generic bank CSV statement export.
//
// Expected header:
//
//	external_id,date,amount,currency,counterpart_name,counterpart_iban,description
//
// The amount is signed from the bank's perspective.
func ParseBankCSV(data []byte, company string) ([]domain.Transaction, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 7 {
		return nil, fmt.Errorf("expected 7 columns, got %d", len(header))
	}

	var txns []domain.Transaction
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(row) < 7 {
			continue
		}

		externalID := strings.TrimSpace(row[0])
		if externalID == "" {
			return nil, fmt.Errorf("line %d: missing external_id", lineNum)
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}
		amount, err = normalizeCurrency(amount, row[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		txnDate, err := parseFeedDate(row[1])
		if err != nil {
			return nil, fmt.Errorf("line %d date: %w", lineNum, err)
		}

		description := strings.TrimSpace(row[6])

		txn := domain.Transaction{
			ID:              uuid.NewString(),
			ExternalID:      externalID,
			Company:         company,
			Currency:        currency.Base,
			CounterpartName: strings.TrimSpace(row[4]),
			CounterpartIBAN: strings.TrimSpace(row[5]),
			RemittanceInfo:  description,
			Status:          domain.StatusPending,
			TransactionDate: txnDate,
			CreatedAt:       time.Now().UTC(),
		}
		txn.Amount, txn.Direction = splitSignedAmount(amount)
		txn.StructuredReference = extractReference(description, "")

		txns = append(txns, txn)
	}

	return txns, nil
}

package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betoled/reconciler/internal/currency"
	"github.com/betoled/reconciler/internal/domain"
	"github.com/betoled/reconciler/internal/reference"
)

// pontoFile is the top-level structure of a Ponto-style bank feed export.
type pontoFile struct {
	AccountIBAN  string       `json:"account_iban"`
	Transactions []pontoEntry `json:"transactions"`
}

type pontoEntry struct {
	ID                   string      `json:"id"`
	Amount               json.Number `json:"amount"`
	Currency             string      `json:"currency"`
	CounterpartName      string      `json:"counterpart_name"`
	CounterpartReference string      `json:"counterpart_reference"`
	RemittanceInfo       string      `json:"remittance_information"`
	RemittanceInfoType   string      `json:"remittance_information_type"`
	ExecutionDate        string      `json:"execution_date"`
	ValueDate            string      `json:"value_date"`
}

// ParsePontoJSON parses a Ponto-style JSON bank feed. Amounts arrive signed
// from the bank's perspective: positive is money in, negative money out.
func ParsePontoJSON(data []byte, company string) ([]domain.Transaction, error) {
	var file pontoFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	var txns []domain.Transaction
	for i, entry := range file.Transactions {
		if entry.ID == "" {
			return nil, fmt.Errorf("record %d: missing id", i)
		}

		amount, err := decimal.NewFromString(entry.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("record %d amount: %w", i, err)
		}
		amount, err = normalizeCurrency(amount, entry.Currency)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		executed, err := parseFeedDate(entry.ExecutionDate)
		if err != nil {
			return nil, fmt.Errorf("record %d date: %w", i, err)
		}

		txn := domain.Transaction{
			ID:              uuid.NewString(),
			ExternalID:      entry.ID,
			Company:         company,
			Currency:        currency.Base,
			CounterpartName: strings.TrimSpace(entry.CounterpartName),
			CounterpartIBAN: strings.TrimSpace(entry.CounterpartReference),
			RemittanceInfo:  strings.TrimSpace(entry.RemittanceInfo),
			Status:          domain.StatusPending,
			TransactionDate: executed,
			CreatedAt:       time.Now().UTC(),
		}
		txn.Amount, txn.Direction = splitSignedAmount(amount)
		txn.StructuredReference = extractReference(entry.RemittanceInfo, entry.RemittanceInfoType)

		if entry.ValueDate != "" {
			if vd, err := parseFeedDate(entry.ValueDate); err == nil {
				txn.ValueDate = &vd
			}
		}

		txns = append(txns, txn)
	}

	return txns, nil
}

// normalizeCurrency converts a feed amount to the ledger currency. A missing
// currency code is taken as the ledger currency itself.
func normalizeCurrency(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == currency.Base {
		return amount, nil
	}
	return currency.ToEUR(amount, code)
}

// splitSignedAmount maps a signed feed amount to a non-negative amount plus a
// direction.
func splitSignedAmount(amount decimal.Decimal) (decimal.Decimal, domain.Direction) {
	if amount.IsNegative() {
		return amount.Neg(), domain.DirectionDebit
	}
	return amount, domain.DirectionCredit
}

// extractReference pulls a structured reference out of the remittance text.
// When the bank already flags the remittance as structured, the digits are
// trusted as long as they form a well-formed reference; free text goes through
// the extraction strategies.
func extractReference(remittance, remittanceType string) string {
	if strings.TrimSpace(remittance) == "" {
		return ""
	}
	if strings.EqualFold(remittanceType, "structured") {
		digits := digitsOnly(remittance)
		if len(digits) == 12 {
			return digits
		}
	}
	if ref, ok := reference.Extract(remittance); ok {
		return ref
	}
	return ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseFeedDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

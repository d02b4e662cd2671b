// Command generate produces deterministic test fixtures: a document pool
// (documents.json) and two bank feed files that together exercise every match
// classification the engine knows.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betoled/reconciler/internal/domain"
	"github.com/betoled/reconciler/internal/reference"
)

const company = "Acme BV"

func main() {
	baseDir := findTestdataDir()

	docs, parties, purchaseInvoices := buildDocumentPool()
	writeJSONFile(filepath.Join(baseDir, "documents.json"), map[string]any{
		"documents":         docs,
		"parties":           parties,
		"purchase_invoices": purchaseInvoices,
	})
	fmt.Printf("Generated %d documents, %d parties, %d purchase invoices -> documents.json\n",
		len(docs), len(parties), len(purchaseInvoices))

	generatePontoFeed(baseDir)
	generateBankCSV(baseDir)

	fmt.Println("Test data generation complete.")
}

// makeRef builds a valid structured reference from a 10-digit base by
// appending the modulo-97 check (0 maps to 97).
func makeRef(base int64) string {
	check := base % 97
	if check == 0 {
		check = 97
	}
	ref := fmt.Sprintf("%010d%02d", base, check)
	if !reference.Valid(ref) {
		panic("generated invalid reference: " + ref)
	}
	return ref
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type partyRow struct {
	Company string `json:"company"`
	Name    string `json:"name"`
	Aliases string `json:"aliases"`
}

func buildDocumentPool() ([]domain.OpenDocument, []partyRow, []domain.PurchaseInvoice) {
	posting := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	seq := 0
	invoice := func(id string, base int64, party, total, outstanding string, status domain.DocumentStatus) domain.OpenDocument {
		ref := ""
		if base > 0 {
			ref = makeRef(base)
		}
		seq++
		return domain.OpenDocument{
			ID: id, Kind: domain.KindSalesInvoice, Company: company,
			PartyName: party, GrandTotal: dec(total), Outstanding: dec(outstanding),
			Status: status, StructuredReference: ref,
			PostingDate: posting.AddDate(0, 0, seq),
		}
	}

	docs := []domain.OpenDocument{
		// Exact match target: feed pays 150.00 with this reference.
		invoice("SINV-2601", 1000000001, "Jan Janssens", "150.00", "150.00", domain.DocStatusUnpaid),
		// Partial payment target: feed pays 100.00 against 250.00.
		invoice("SINV-2602", 1000000002, "Maria Peeters", "250.00", "250.00", domain.DocStatusUnpaid),
		// Overpayment target: feed pays 320.00 against 300.00.
		invoice("SINV-2603", 1000000003, "Bakkerij De Smet", "300.00", "300.00", domain.DocStatusOverdue),
		// Already paid: the feed still references it.
		invoice("SINV-2604", 1000000004, "Lucas Willems", "90.00", "0", domain.DocStatusPaid),
		// Duplicate reference pair: two invoices share one reference.
		invoice("SINV-2605", 1000000005, "Garage Mertens", "400.00", "400.00", domain.DocStatusUnpaid),
		invoice("SINV-2606", 1000000005, "Garage Mertens", "400.00", "400.00", domain.DocStatusUnpaid),
		// Fuzzy target: no reference, matched by name and amount.
		invoice("SINV-2607", 0, "Sofie Claes", "75.00", "75.00", domain.DocStatusUnpaid),
		// Ambiguity pair: same outstanding, near-identical names.
		invoice("SINV-2608", 0, "De Vries Consulting", "200.00", "200.00", domain.DocStatusUnpaid),
		invoice("SINV-2609", 0, "De Vries Consultancy", "200.00", "200.00", domain.DocStatusUnpaid),
	}

	// Purchase orders for the debit side. PO-2702's outstanding is reduced by a
	// finalized purchase invoice.
	docs = append(docs,
		domain.OpenDocument{
			ID: "PO-2701", Kind: domain.KindPurchaseOrder, Company: company,
			PartyName: "Kantoor Supplies BVBA", GrandTotal: dec("480.00"),
			Outstanding: dec("480.00"), Status: domain.DocStatusUnpaid,
			PostingDate: posting,
		},
		domain.OpenDocument{
			ID: "PO-2702", Kind: domain.KindPurchaseOrder, Company: company,
			PartyName: "Drukkerij Verhoeven", GrandTotal: dec("1200.00"),
			Outstanding: dec("1200.00"), Status: domain.DocStatusPartlyPaid,
			PostingDate: posting,
		},
	)

	parties := []partyRow{
		{company, "Jan Janssens", "Janssens Jan, J. Janssens"},
		{company, "Sofie Claes", "Claes Sofie BVBA"},
		{company, "Kantoor Supplies BVBA", "Kantoor Supplies"},
	}

	purchaseInvoices := []domain.PurchaseInvoice{
		{ID: "PINV-2801", OrderID: "PO-2702", Company: company,
			GrandTotal: dec("500.00"), PaidAmount: dec("500.00"), Finalized: true},
	}

	return docs, parties, purchaseInvoices
}

func generatePontoFeed(baseDir string) {
	type entry struct {
		ID                 string `json:"id"`
		Amount             string `json:"amount"`
		Currency           string `json:"currency"`
		CounterpartName    string `json:"counterpart_name"`
		CounterpartRef     string `json:"counterpart_reference,omitempty"`
		RemittanceInfo     string `json:"remittance_information"`
		RemittanceInfoType string `json:"remittance_information_type"`
		ExecutionDate      string `json:"execution_date"`
		ValueDate          string `json:"value_date,omitempty"`
	}

	day := func(d int) string {
		return time.Date(2026, 3, d, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	}

	entries := []entry{
		// Exact match: settles SINV-2601 automatically.
		{"ponto-001", "150.00", "EUR", "Jan Janssens", "BE71096123456769",
			reference.Format(makeRef(1000000001)), "structured", day(10), "2026-03-11"},
		// Partial payment against SINV-2602.
		{"ponto-002", "100.00", "EUR", "Maria Peeters", "",
			reference.Format(makeRef(1000000002)), "structured", day(10), ""},
		// Overpayment against SINV-2603.
		{"ponto-003", "320.00", "EUR", "Bakkerij De Smet", "",
			reference.Format(makeRef(1000000003)), "structured", day(11), ""},
		// Reference resolves to the already-paid SINV-2604.
		{"ponto-004", "90.00", "EUR", "Lucas Willems", "",
			"payment " + makeRef(1000000004), "unstructured", day(11), ""},
		// Reference shared by SINV-2605 and SINV-2606.
		{"ponto-005", "400.00", "EUR", "Garage Mertens", "",
			reference.Format(makeRef(1000000005)), "structured", day(12), ""},
		// Fuzzy match: no reference, name plus exact amount finds SINV-2607.
		{"ponto-006", "75.00", "EUR", "Claes Sofie BVBA", "",
			"met vriendelijke groeten", "unstructured", day(12), ""},
		// Ambiguous: both De Vries invoices fit.
		{"ponto-007", "200.00", "EUR", "De Vries", "",
			"consulting fees", "unstructured", day(13), ""},
		// No match at all.
		{"ponto-008", "19.99", "EUR", "Unknown Webshop", "",
			"order 99812", "unstructured", day(13), ""},
		// Debit settling PO-2702 (outstanding 700.00 after PINV-2801).
		{"ponto-009", "-700.00", "EUR", "Drukkerij Verhoeven", "",
			"factuur maart", "unstructured", day(14), ""},
	}

	writeJSONFile(filepath.Join(baseDir, "bank_feed.json"), map[string]any{
		"account_iban": "BE68539007547034",
		"transactions": entries,
	})
	fmt.Printf("Generated %d feed entries -> bank_feed.json\n", len(entries))
}

func generateBankCSV(baseDir string) {
	filePath := filepath.Join(baseDir, "bank_statement.csv")
	f, err := os.Create(filePath)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{
		"external_id", "date", "amount", "currency",
		"counterpart_name", "counterpart_iban", "description",
	})

	rows := [][]string{
		// Overlaps with the JSON feed: same external IDs are deduplicated.
		{"ponto-001", "2026-03-10", "150.00", "EUR", "Jan Janssens",
			"BE71096123456769", reference.Format(makeRef(1000000001))},
		// Debit partially covering PO-2701.
		{"stmt-101", "2026-03-15", "-250.00", "EUR", "Kantoor Supplies",
			"", "bestelling kantoormateriaal"},
		// Credit with a reference embedded in free text.
		{"stmt-102", "2026-03-15", "100.00", "EUR", "Maria Peeters",
			"", "aanvulling " + makeRef(1000000002)},
	}
	for _, row := range rows {
		w.Write(row)
	}

	fmt.Printf("Generated %d statement rows -> bank_statement.csv\n", len(rows))
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	candidates := []string{
		"testdata",
		"./testdata",
		filepath.Join("..", "testdata"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}

// Package matching implements the two-phase payment matching engine: an
// authoritative structured-reference lookup, then an amount-window plus
// name-similarity fallback.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/betoled/reconciler/internal/domain"
	"github.com/betoled/reconciler/internal/fuzzy"
)

// DocumentPool is the document-query capability the engine consumes from the
// surrounding application. Implementations must scope every query to the
// given company and to finalized documents only.
type DocumentPool interface {
	// InvoicesByReference returns finalized sales invoices carrying exactly
	// this structured reference, including already-paid ones.
	InvoicesByReference(company, ref string) ([]domain.OpenDocument, error)
	// OpenDocuments returns finalized documents of the given kind that are
	// still open (unpaid, partly paid, or overdue), with Outstanding filled.
	OpenDocuments(company string, kind domain.DocumentKind) ([]domain.OpenDocument, error)
}

// centTolerance is the fixed equality tolerance for amount comparison: two
// amounts closer than one cent are the same payment.
var centTolerance = decimal.New(1, -2)

// Engine matches one bank transaction against the open document pool.
type Engine struct {
	pool DocumentPool
	cfg  Config
}

func NewEngine(pool DocumentPool, cfg Config) *Engine {
	return &Engine{pool: pool, cfg: cfg}
}

// Match routes by direction: credits target sales invoices, debits purchase
// orders. The result always carries a note trail explaining the outcome.
func (e *Engine) Match(txn *domain.Transaction) (*domain.MatchResult, error) {
	switch txn.Direction {
	case domain.DirectionCredit:
		return e.matchCredit(txn)
	case domain.DirectionDebit:
		return e.matchDebit(txn)
	default:
		return noMatch(1, fmt.Sprintf("Unknown transaction direction: %q", txn.Direction)), nil
	}
}

// matchCredit runs phase 1 (structured reference) and, only when the
// reference produced no decision, phase 2 (amount window + name). Phase 1 is
// authoritative: a bank-verified reference must never be outranked by the
// name heuristic.
func (e *Engine) matchCredit(txn *domain.Transaction) (*domain.MatchResult, error) {
	var carried []string

	if txn.StructuredReference != "" {
		res, err := e.matchByReference(txn)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
		carried = append(carried,
			fmt.Sprintf("No invoice found with structured reference %s", txn.StructuredReference))
	}

	return e.matchByAmountAndName(txn, domain.KindSalesInvoice, 2, carried)
}

// matchDebit has no reference phase: purchase orders carry no structured
// reference, so the fallback is the only pass. Its result is tagged phase 1.
func (e *Engine) matchDebit(txn *domain.Transaction) (*domain.MatchResult, error) {
	return e.matchByAmountAndName(txn, domain.KindPurchaseOrder, 1, nil)
}

// matchByReference resolves the structured reference against sales invoices.
// It returns nil when the reference matched nothing, letting phase 2 run.
func (e *Engine) matchByReference(txn *domain.Transaction) (*domain.MatchResult, error) {
	invoices, err := e.pool.InvoicesByReference(txn.Company, txn.StructuredReference)
	if err != nil {
		return nil, fmt.Errorf("invoices by reference: %w", err)
	}

	if len(invoices) == 0 {
		return nil, nil
	}

	if len(invoices) > 1 {
		ids := make([]string, len(invoices))
		for i := range invoices {
			ids[i] = invoices[i].ID
		}
		// Two invoices sharing one reference is a data-quality problem the
		// engine must not resolve on its own.
		return &domain.MatchResult{
			Type:       domain.MatchMultiple,
			Confidence: 50,
			Phase:      1,
			Notes: []string{fmt.Sprintf("Multiple invoices found with reference %s: %s",
				txn.StructuredReference, strings.Join(ids, ", "))},
		}, nil
	}

	inv := invoices[0]

	if !inv.IsOpen() || inv.Outstanding.LessThanOrEqual(decimal.Zero) {
		// The reference resolved but there is nothing left to settle. Phase 2
		// must not run: the reference already identified the payment target.
		return &domain.MatchResult{
			Type:       domain.MatchNone,
			Confidence: 90,
			Phase:      1,
			Notes:      []string{fmt.Sprintf("Invoice %s is already fully paid", inv.ID)},
		}, nil
	}

	res := classifyByAmount(txn.Amount, &inv, domain.MatchExact, 100, 85, 70)
	res.Phase = 1
	return res, nil
}

// scoredCandidate is a phase-2 candidate that cleared the name threshold.
type scoredCandidate struct {
	doc        domain.OpenDocument
	name       string
	nameScore  int
	confidence int
}

// matchByAmountAndName is the heuristic fallback shared by credit and debit
// matching: collect open documents whose outstanding amount falls in the
// tolerance window, keep those whose party name resembles the counterpart,
// rank by blended confidence.
func (e *Engine) matchByAmountAndName(txn *domain.Transaction, kind domain.DocumentKind, phase int, carried []string) (*domain.MatchResult, error) {
	if !e.cfg.FuzzyMatchingEnabled {
		return noMatch(phase, append(carried, "Fuzzy matching is disabled")...), nil
	}
	if txn.CounterpartName == "" {
		return noMatch(phase, append(carried, "No counterpart name to match on")...), nil
	}

	low, high := amountWindow(txn.Amount, e.cfg.AmountTolerancePercent)

	docs, err := e.pool.OpenDocuments(txn.Company, kind)
	if err != nil {
		return nil, fmt.Errorf("open documents: %w", err)
	}

	var candidates []scoredCandidate
	for i := range docs {
		doc := docs[i]
		if doc.Outstanding.LessThan(low) || doc.Outstanding.GreaterThan(high) {
			continue
		}
		name, score := bestNameScore(txn.CounterpartName, &doc)
		if score < e.cfg.FuzzyNameThreshold {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			doc:        doc,
			name:       name,
			nameScore:  score,
			confidence: blendConfidence(score, txn.Amount, doc.Outstanding),
		})
	}

	if len(candidates) == 0 {
		return noMatch(phase, append(carried,
			fmt.Sprintf("No open %s within %.1f%% of %s resembling %q",
				kind, e.cfg.AmountTolerancePercent, txn.Amount.StringFixed(2), txn.CounterpartName))...), nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].confidence != candidates[j].confidence {
			return candidates[i].confidence > candidates[j].confidence
		}
		return candidates[i].doc.ID < candidates[j].doc.ID
	})

	// A near-tie between the top candidates is ambiguous and goes to review.
	if len(candidates) > 1 && candidates[0].confidence-candidates[1].confidence < 10 {
		notes := append(carried, "Ambiguous: competing candidates with similar confidence")
		for i, c := range candidates {
			if i == 3 {
				break
			}
			notes = append(notes, fmt.Sprintf("Candidate %s (%s, name score %d, confidence %d)",
				c.doc.ID, c.name, c.nameScore, c.confidence))
		}
		return &domain.MatchResult{
			Type:       domain.MatchMultiple,
			Confidence: candidates[0].confidence,
			Phase:      phase,
			Notes:      notes,
		}, nil
	}

	best := candidates[0]
	// An exact-amount hit found by name is labeled a fuzzy match, not an
	// exact match: it was never reference-verified.
	res := classifyByAmount(txn.Amount, &best.doc, domain.MatchFuzzy,
		best.confidence, best.confidence, best.confidence)
	res.Phase = phase
	res.Notes = append(carried, append([]string{fmt.Sprintf(
		"Matched %s by name %q (score %d) and amount within tolerance",
		best.doc.ID, best.name, best.nameScore)}, res.Notes...)...)
	return res, nil
}

// classifyByAmount compares the transaction amount to the document's
// outstanding amount: equal within a cent, under, or over.
func classifyByAmount(amount decimal.Decimal, doc *domain.OpenDocument, exactType domain.MatchType, confExact, confPartial, confOver int) *domain.MatchResult {
	outstanding := doc.Outstanding
	diff := amount.Sub(outstanding)

	switch {
	case diff.Abs().LessThan(centTolerance):
		return &domain.MatchResult{
			Type:       exactType,
			Document:   doc,
			Confidence: confExact,
			Notes: []string{fmt.Sprintf("Payment %s matches outstanding %s",
				amount.StringFixed(2), outstanding.StringFixed(2))},
		}
	case amount.LessThan(outstanding):
		return &domain.MatchResult{
			Type:       domain.MatchPartial,
			Document:   doc,
			Confidence: confPartial,
			Notes: []string{
				fmt.Sprintf("Partial payment: received %s, outstanding is %s",
					amount.StringFixed(2), outstanding.StringFixed(2)),
				fmt.Sprintf("Remaining after payment: %s", outstanding.Sub(amount).StringFixed(2)),
			},
		}
	default:
		return &domain.MatchResult{
			Type:       domain.MatchOver,
			Document:   doc,
			Confidence: confOver,
			Notes: []string{
				fmt.Sprintf("Overpayment: received %s, outstanding is only %s",
					amount.StringFixed(2), outstanding.StringFixed(2)),
				fmt.Sprintf("Excess amount: %s", amount.Sub(outstanding).StringFixed(2)),
			},
		}
	}
}

// amountWindow returns the inclusive [amount*(1-tol), amount*(1+tol)] window.
func amountWindow(amount decimal.Decimal, tolerancePercent float64) (low, high decimal.Decimal) {
	tol := decimal.NewFromFloat(tolerancePercent).Div(decimal.NewFromInt(100))
	low = amount.Mul(decimal.NewFromInt(1).Sub(tol))
	high = amount.Mul(decimal.NewFromInt(1).Add(tol))
	return low, high
}

// bestNameScore scores the counterpart against the party's display name and
// every alias, keeping the best pair.
func bestNameScore(counterpart string, doc *domain.OpenDocument) (string, int) {
	bestName := doc.PartyName
	bestScore := fuzzy.Score(counterpart, doc.PartyName)

	for _, alias := range strings.Split(doc.PartyAliases, ",") {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if score := fuzzy.Score(counterpart, alias); score > bestScore {
			bestName, bestScore = alias, score
		}
	}
	return bestName, bestScore
}

// blendConfidence weighs the name score (70%) against amount closeness (30%).
func blendConfidence(nameScore int, amount, outstanding decimal.Decimal) int {
	diffPct := amountDiffPercent(amount, outstanding)
	return int(math.Round(float64(nameScore)*0.7 + (100-diffPct)*0.3))
}

// amountDiffPercent is |amount-outstanding| relative to outstanding, as a
// percentage; 100 when outstanding is zero.
func amountDiffPercent(amount, outstanding decimal.Decimal) float64 {
	if outstanding.IsZero() {
		return 100
	}
	pct, _ := amount.Sub(outstanding).Abs().
		Div(outstanding).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func noMatch(phase int, notes ...string) *domain.MatchResult {
	return &domain.MatchResult{
		Type:       domain.MatchNone,
		Confidence: 0,
		Phase:      phase,
		Notes:      notes,
	}
}

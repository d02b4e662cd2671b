package matching

import (
	"fmt"
	"sort"

	"github.com/betoled/reconciler/internal/domain"
)

// Suggestion is one ranked candidate for manual review.
type Suggestion struct {
	Document domain.OpenDocument `json:"document"`
	Score    int                 `json:"score"`
	Notes    []string            `json:"notes"`
}

// Suggest scores every open document in a widened amount window against the
// transaction and returns the best candidates for human triage. Unlike the
// phase-2 match it is not gated by the fuzzy threshold: weak signals still
// earn points so an operator sees something rather than nothing.
func (e *Engine) Suggest(txn *domain.Transaction, limit int) ([]Suggestion, error) {
	kind := domain.KindSalesInvoice
	if txn.Direction == domain.DirectionDebit {
		kind = domain.KindPurchaseOrder
	}
	if limit <= 0 {
		limit = 5
	}

	// Widen the window to at least double the tolerance, floor 20%.
	widened := e.cfg.AmountTolerancePercent * 2
	if widened < 20 {
		widened = 20
	}
	low, high := amountWindow(txn.Amount, widened)

	docs, err := e.pool.OpenDocuments(txn.Company, kind)
	if err != nil {
		return nil, fmt.Errorf("open documents: %w", err)
	}

	var suggestions []Suggestion
	for i := range docs {
		doc := docs[i]
		if doc.Outstanding.LessThan(low) || doc.Outstanding.GreaterThan(high) {
			continue
		}

		score := 0
		var notes []string

		diff := txn.Amount.Sub(doc.Outstanding).Abs()
		diffPct := amountDiffPercent(txn.Amount, doc.Outstanding)
		switch {
		case diff.LessThan(centTolerance):
			score += 50
			notes = append(notes, "Exact amount match")
		case diffPct <= 5:
			score += 35
			notes = append(notes, fmt.Sprintf("Amount close (within 5%%): diff %s", diff.StringFixed(2)))
		case diffPct <= 10:
			score += 20
			notes = append(notes, "Amount roughly close (within 10%)")
		default:
			score += 10
			notes = append(notes, fmt.Sprintf("Amount within %.0f%% window", widened))
		}

		name, nameScore := bestNameScore(txn.CounterpartName, &doc)
		switch {
		case nameScore >= 80:
			score += 40
			notes = append(notes, fmt.Sprintf("Strong name match %q (score %d)", name, nameScore))
		case nameScore >= 50:
			score += 20
			notes = append(notes, fmt.Sprintf("Partial name match %q (score %d)", name, nameScore))
		case nameScore >= 30:
			score += 10
			notes = append(notes, fmt.Sprintf("Weak name match %q (score %d)", name, nameScore))
		}

		if score == 0 {
			continue
		}
		suggestions = append(suggestions, Suggestion{Document: doc, Score: score, Notes: notes})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Document.ID < suggestions[j].Document.ID
	})

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

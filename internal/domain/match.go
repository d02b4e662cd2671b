package domain

type MatchType string

const (
	MatchExact    MatchType = "Exact Match"
	MatchPartial  MatchType = "Partial Payment"
	MatchOver     MatchType = "Overpayment"
	MatchNone     MatchType = "No Match"
	MatchMultiple MatchType = "Multiple Matches"
	MatchFuzzy    MatchType = "Fuzzy Match"
)

// MatchResult is the outcome of matching one transaction against the open
// document pool. Phase 1 means the structured-reference lookup decided,
// phase 2 the amount-window/name fallback.
type MatchResult struct {
	Type       MatchType     `json:"type"`
	Document   *OpenDocument `json:"document,omitempty"`
	Confidence int           `json:"confidence"`
	Phase      int           `json:"phase"`
	Notes      []string      `json:"notes,omitempty"`
}

func (r *MatchResult) IsExact() bool {
	return r.Type == MatchExact
}

// NeedsReview reports whether the result requires a human decision before a
// payment may be created.
func (r *MatchResult) NeedsReview() bool {
	return r.Type != MatchExact && r.Type != MatchNone
}

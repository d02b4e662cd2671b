package reconciliation

import (
	"github.com/betoled/reconciler/internal/domain"
	"github.com/betoled/reconciler/internal/matching"
)

// Action is what the reconciliation run does with one match result.
type Action string

const (
	// ActionNone leaves the transaction pending; nothing matched.
	ActionNone Action = "none"
	// ActionAutoSettle creates a payment immediately without human review.
	ActionAutoSettle Action = "auto_settle"
	// ActionQueueForReview parks the result for a human decision.
	ActionQueueForReview Action = "queue_for_review"
)

// Dispose maps a match result to an action. Only an exact reference match may
// settle automatically, and only when the configuration allows it; everything
// else that matched anything goes to review.
func Dispose(res *domain.MatchResult, cfg matching.Config) Action {
	if res.Type == domain.MatchNone {
		return ActionNone
	}
	if res.IsExact() && cfg.AutoReconcileExactMatches {
		return ActionAutoSettle
	}
	return ActionQueueForReview
}

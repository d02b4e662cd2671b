package matching

// Defaults applied when a knob is not configured.
const (
	DefaultAmountTolerancePercent = 10.0
	DefaultFuzzyNameThreshold     = 70
)

// Config holds the matching knobs for one reconciliation session. It is built
// once by the caller and never mutated during a run.
type Config struct {
	// AmountTolerancePercent widens the phase-2 amount window around the
	// transaction amount.
	AmountTolerancePercent float64
	// FuzzyNameThreshold is the minimum 0-100 name score a phase-2 candidate
	// must reach.
	FuzzyNameThreshold int
	// FuzzyMatchingEnabled turns the phase-2 fallback on or off.
	FuzzyMatchingEnabled bool
	// AutoReconcileExactMatches lets exact reference matches settle without
	// review.
	AutoReconcileExactMatches bool
}

// DefaultConfig returns the documented defaults: 10% tolerance, threshold 70,
// fuzzy matching and auto-reconcile enabled.
func DefaultConfig() Config {
	return Config{
		AmountTolerancePercent:    DefaultAmountTolerancePercent,
		FuzzyNameThreshold:        DefaultFuzzyNameThreshold,
		FuzzyMatchingEnabled:      true,
		AutoReconcileExactMatches: true,
	}
}

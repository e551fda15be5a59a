package ismcts

// Character parameterizes the heuristic rollout policy so different AI
// seats can play distinguishably different styles without needing a
// different search algorithm (§4.7 "character multipliers"). Grounded
// on BrandonDedolph-euchre's rule_based package, whose bidding/play
// heuristics this rollout policy adapts; that package has no equivalent
// of tunable per-bot parameters, so the multiplier scheme itself is new
// but built entirely out of hooks into the adapted heuristic functions.
type Character struct {
	// BidAggressiveness scales the hand-strength threshold required to
	// place a given bid: >1 bids more readily, <1 more conservatively.
	BidAggressiveness float64
	// FoldThreshold scales the hand-strength floor below which a
	// non-bidder folds on a non-dirty-clubs hand.
	FoldThreshold float64
	// RiskTaking is carried alongside the other multipliers, but the
	// rollout policy does not read it: card play is the same for every
	// value.
	RiskTaking float64
}

// Balanced is the default character: every multiplier neutral at 1.0.
func Balanced() Character {
	return Character{BidAggressiveness: 1.0, FoldThreshold: 1.0, RiskTaking: 1.0}
}

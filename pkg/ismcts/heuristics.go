package ismcts

import (
	"math/rand"
	"sort"

	"github.com/buckeuchre/buckeuchre/internal/cards"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
)

// handStrength scores a hand 0..100 for the purpose of rollout bid/fold
// decisions, adapted from BrandonDedolph-euchre's evaluateHandStrength:
// a trump-count curve plus bower and off-suit-ace bonuses, capped at
// 100. trump is the suit under consideration — during bidding, before
// trump is declared, the rollout policy evaluates every suit and keeps
// the best, mirroring that teacher's bid-suit selection loop.
func handStrength(hand []cards.Card, trump cards.Suit) float64 {
	trumpCount := 0
	hasRightBower, hasLeftBower := false, false
	offAces := 0
	for _, c := range hand {
		if c.IsTrump(trump) {
			trumpCount++
			if c.IsRightBower(trump) {
				hasRightBower = true
			}
			if c.IsLeftBower(trump) {
				hasLeftBower = true
			}
		} else if c.Rank == cards.Ace {
			offAces++
		}
	}

	var base float64
	switch trumpCount {
	case 0:
		base = 0
	case 1:
		base = 15
	case 2:
		base = 35
	case 3:
		base = 55
	case 4:
		base = 75
	default:
		base = 95
	}
	if hasRightBower {
		base += 15
	}
	if hasLeftBower {
		base += 10
	}
	if hasRightBower && hasLeftBower {
		base += 5
	}
	base += float64(offAces) * 8
	if base > 100 {
		base = 100
	}
	return base
}

// bestTrumpSuit returns the suit maximizing handStrength for hand, used
// by the rollout bidding/trump-declaration heuristic when no trump is
// fixed yet (i.e. not dirty clubs).
func bestTrumpSuit(hand []cards.Card) (cards.Suit, float64) {
	best := cards.Spades
	bestScore := -1.0
	for _, s := range cards.AllSuits() {
		score := handStrength(hand, s)
		if score > bestScore {
			best = s
			bestScore = score
		}
	}
	return best, bestScore
}

// rolloutBid chooses a bid for the rollout policy: the highest bid
// amount the hand's strength supports, scaled by the seat's
// BidAggressiveness, else Pass. Bid thresholds are evenly spaced
// because the spec attaches no distinct semantics to the bid amount
// beyond the risk/reward tradeoff already captured by handStrength.
func rolloutBid(legal []euchre.Action, hand []cards.Card, ch Character) euchre.Action {
	_, strength := bestTrumpSuit(hand)
	strength *= ch.BidAggressiveness

	thresholds := map[euchre.BidAmount]float64{
		euchre.Bid5: 85,
		euchre.Bid4: 65,
		euchre.Bid3: 45,
		euchre.Bid2: 25,
	}
	var best euchre.Action
	bestAmount := euchre.Pass
	for _, a := range legal {
		bid, ok := a.(euchre.BidAction)
		if !ok || bid.Amount == euchre.Pass {
			continue
		}
		if strength >= thresholds[bid.Amount] && bid.Amount > bestAmount {
			best = a
			bestAmount = bid.Amount
		}
	}
	if bestAmount == euchre.Pass {
		for _, a := range legal {
			if bid, ok := a.(euchre.BidAction); ok && bid.Amount == euchre.Pass {
				return a
			}
		}
	}
	return best
}

// rolloutTrump picks the suit maximizing handStrength, matching
// BrandonDedolph-euchre's "declare the suit you're strongest in".
func rolloutTrump(legal []euchre.Action, hand []cards.Card) euchre.Action {
	best, _ := bestTrumpSuit(hand)
	for _, a := range legal {
		if t, ok := a.(euchre.TrumpAction); ok && t.Suit == best {
			return a
		}
	}
	return legal[0]
}

// rolloutFold stays on a hand strong enough relative to FoldThreshold,
// folds otherwise. Only reachable when folding is actually legal (i.e.
// not dirty clubs).
func rolloutFold(legal []euchre.Action, hand []cards.Card, trump cards.Suit, ch Character) euchre.Action {
	strength := handStrength(hand, trump)
	fold := strength < 30*ch.FoldThreshold
	for _, a := range legal {
		if f, ok := a.(euchre.FoldDecisionAction); ok && f.Fold == fold {
			return a
		}
	}
	return legal[0]
}

// rolloutCardPlay adapts BrandonDedolph-euchre's selectLead/playFollowSuit/
// playTrump split: leading plays the strongest trump if holding more
// than one, else a bare off-suit ace, else the lowest off-suit card,
// else the lowest trump; following plays the lowest card that beats the
// current best if possible, else the lowest card held. The character's
// RiskTaking multiplier does not change either choice.
func rolloutCardPlay(legal []euchre.Action, gs *euchre.GameState, ch Character) euchre.Action {
	playable := make([]cards.Card, 0, len(legal))
	for _, a := range legal {
		if c, ok := a.(euchre.CardAction); ok {
			playable = append(playable, c.Card)
		}
	}
	trump := gs.TrumpSuit
	var chosen cards.Card
	if len(gs.CurrentTrick.Plays) == 0 {
		chosen = selectLead(playable, trump)
	} else {
		chosen = selectFollow(playable, gs.CurrentTrick, trump, ch)
	}
	for _, a := range legal {
		if c, ok := a.(euchre.CardAction); ok && c.Card == chosen {
			return a
		}
	}
	return legal[0]
}

func selectLead(playable []cards.Card, trump cards.Suit) cards.Card {
	trumps := filterBySuit(playable, trump)
	if len(trumps) > 1 {
		return highest(trumps, trump)
	}
	for _, c := range playable {
		if !c.IsTrump(trump) && c.Rank == cards.Ace {
			return c
		}
	}
	offSuit := filterNotSuit(playable, trump)
	if len(offSuit) > 0 {
		return lowest(offSuit, trump)
	}
	return lowest(playable, trump)
}

func selectFollow(playable []cards.Card, trick euchre.Trick, trump cards.Suit, ch Character) cards.Card {
	ledSuit := trick.Plays[0].Card.EffectiveSuit(trump)
	currentBest := trick.Plays[0].Card
	for _, p := range trick.Plays[1:] {
		if cards.Beats(p.Card, currentBest, ledSuit, trump) {
			currentBest = p.Card
		}
	}

	var winners []cards.Card
	for _, c := range playable {
		if cards.Beats(c, currentBest, ledSuit, trump) {
			winners = append(winners, c)
		}
	}
	if len(winners) > 0 {
		// RiskTaking is not read here: every character takes the trick
		// with its cheapest winning card.
		_ = ch.RiskTaking
		return lowest(winners, trump)
	}
	return lowest(playable, trump)
}

func filterBySuit(cs []cards.Card, suit cards.Suit) []cards.Card {
	var out []cards.Card
	for _, c := range cs {
		if c.EffectiveSuit(suit) == suit {
			out = append(out, c)
		}
	}
	return out
}

func filterNotSuit(cs []cards.Card, suit cards.Suit) []cards.Card {
	var out []cards.Card
	for _, c := range cs {
		if c.EffectiveSuit(suit) != suit {
			out = append(out, c)
		}
	}
	return out
}

// rankValue gives a single comparable ordering across trump and
// off-suit cards for the lowest/highest helpers below.
func rankValue(c cards.Card, trump cards.Suit) int {
	if c.IsRightBower(trump) {
		return 106
	}
	if c.IsLeftBower(trump) {
		return 105
	}
	if c.IsTrump(trump) {
		return 100 + int(c.Rank)
	}
	return int(c.Rank)
}

func lowest(cs []cards.Card, trump cards.Suit) cards.Card {
	out := append([]cards.Card(nil), cs...)
	sort.Slice(out, func(i, j int) bool { return rankValue(out[i], trump) < rankValue(out[j], trump) })
	return out[0]
}

func highest(cs []cards.Card, trump cards.Suit) cards.Card {
	out := append([]cards.Card(nil), cs...)
	sort.Slice(out, func(i, j int) bool { return rankValue(out[i], trump) > rankValue(out[j], trump) })
	return out[0]
}

// rolloutAction dispatches to the phase-appropriate heuristic, the
// policy used once a simulation descends below the tree into pure
// rollout (§4.7). It never returns an error: gs.Phase determines which
// heuristic runs, and LegalActions is always non-empty in a phase that
// has an actor still to move.
func rolloutAction(gs *euchre.GameState, legal []euchre.Action, ch Character, rng *rand.Rand) euchre.Action {
	if len(legal) == 0 {
		return nil
	}
	switch gs.Phase {
	case euchre.PhaseBidding:
		return rolloutBid(legal, gs.Players[gs.CurrentBidder].Hand, ch)
	case euchre.PhaseDeclaringTrump:
		return rolloutTrump(legal, gs.Players[gs.WinningBidderPosition].Hand)
	case euchre.PhaseFoldingDecision:
		pos := legal[0].ActorPosition()
		return rolloutFold(legal, gs.Players[pos].Hand, gs.TrumpSuit, ch)
	case euchre.PhasePlaying:
		return rolloutCardPlay(legal, gs, ch)
	default:
		return legal[rng.Intn(len(legal))]
	}
}

// Package ismcts implements the AI decision engine: Information Set
// Monte Carlo Tree Search with determinization (§4.7). A Search samples
// many complete, rule-consistent worlds from the acting seat's point of
// view, runs ordinary MCTS on each, and combines visit counts across a
// single tree whose root represents the acting seat's real decision.
package ismcts

import (
	"math/rand"

	"github.com/buckeuchre/buckeuchre/internal/cards"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
)

// VoidSet tracks, per opponent position, which effective suits they are
// known to be void in this round — accumulated monotonically as tricks
// complete (§4.7 Observations).
type VoidSet [euchre.NumSeats]map[cards.Suit]bool

// NewVoidSet builds an empty VoidSet.
func NewVoidSet() VoidSet {
	var v VoidSet
	for i := range v {
		v[i] = make(map[cards.Suit]bool)
	}
	return v
}

// ObserveTricks derives void constraints from every trick played so far
// in gs: a player is void in the led effective suit of any trick to
// which they did not follow, whether by playing trump on a non-trump
// lead or by discarding off-suit.
func ObserveTricks(gs *euchre.GameState) VoidSet {
	v := NewVoidSet()
	trump := gs.TrumpSuit
	observe := func(t euchre.Trick) {
		if len(t.Plays) == 0 {
			return
		}
		led := t.Plays[0].Card.EffectiveSuit(trump)
		for _, play := range t.Plays {
			if play.Card.EffectiveSuit(trump) != led {
				v[play.Position][led] = true
			}
		}
	}
	for _, t := range gs.Tricks {
		observe(t)
	}
	observe(gs.CurrentTrick)
	return v
}

// PlayedCards is every card visible in completed and in-flight tricks.
func PlayedCards(gs *euchre.GameState) map[cards.Card]bool {
	played := make(map[cards.Card]bool)
	mark := func(t euchre.Trick) {
		for _, play := range t.Plays {
			played[play.Card] = true
		}
	}
	for _, t := range gs.Tricks {
		mark(t)
	}
	mark(gs.CurrentTrick)
	return played
}

// UnseenCards is the complement of (played ∪ own hand) in the full
// 24-card deck, from the given seat's point of view.
func UnseenCards(gs *euchre.GameState, seat int) []cards.Card {
	seen := PlayedCards(gs)
	for _, c := range gs.Players[seat].Hand {
		seen[c] = true
	}
	unseen := make([]cards.Card, 0, 24)
	for _, c := range cards.FullDeck() {
		if !seen[c] {
			unseen = append(unseen, c)
		}
	}
	return unseen
}

// Determinize samples one complete assignment of unseen cards to
// opponent hands, respecting each opponent's required hand size and
// every known void constraint, and returns a full clone of gs with that
// assignment substituted in. Attempts up to K greedy constrained
// assignments (default 3); on repeated failure it falls back to an
// unconstrained shuffle-and-deal so the search always proceeds (§4.7).
func Determinize(gs *euchre.GameState, seat int, voids VoidSet, rng *rand.Rand, maxAttempts int) *euchre.GameState {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	unseen := UnseenCards(gs, seat)
	needed := make(map[int]int, euchre.NumSeats)
	for i, p := range gs.Players {
		if i == seat {
			continue
		}
		if p.Folded {
			needed[i] = 0
		} else {
			needed[i] = len(p.Hand)
		}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		assignment, ok := tryConstrainedAssign(unseen, needed, voids, gs.TrumpSuit, rng)
		if ok {
			return applyAssignment(gs, seat, assignment)
		}
	}
	assignment := unconstrainedAssign(unseen, needed, rng)
	return applyAssignment(gs, seat, assignment)
}

// tryConstrainedAssign attempts one greedy pass: shuffle unseen cards,
// then for each in turn offer it to a random opponent among those who
// (a) still need cards and (b) are not void in its effective suit. A
// card with no eligible opponent is left unassigned (it stands in for a
// blind card); the attempt fails only if some opponent is still short of
// cards once every card has been offered.
func tryConstrainedAssign(unseen []cards.Card, needed map[int]int, voids VoidSet, trump cards.Suit, rng *rand.Rand) (map[int][]cards.Card, bool) {
	remaining := make(map[int]int, len(needed))
	for k, v := range needed {
		remaining[k] = v
	}
	shuffled := append([]cards.Card(nil), unseen...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	assignment := make(map[int][]cards.Card, len(needed))
	for _, c := range shuffled {
		eligible := make([]int, 0, len(remaining))
		// Seats in index order, not map order, so a seeded rng always
		// picks from the same list.
		for pos := 0; pos < euchre.NumSeats; pos++ {
			if remaining[pos] <= 0 {
				continue
			}
			if voids[pos][c.EffectiveSuit(trump)] {
				continue
			}
			eligible = append(eligible, pos)
		}
		if len(eligible) == 0 {
			// Card has nowhere to go under constraints: it becomes part
			// of the (discarded) blind, which is fine as long as enough
			// cards remain for everyone else.
			continue
		}
		pick := eligible[rng.Intn(len(eligible))]
		assignment[pick] = append(assignment[pick], c)
		remaining[pick]--
	}

	for pos, n := range remaining {
		if n > 0 {
			_ = pos
			return nil, false
		}
	}
	return assignment, true
}

// unconstrainedAssign ignores void constraints entirely: a plain random
// deal of unseen cards to opponents, used as the fallback when the
// constrained sampler can't find a feasible assignment.
func unconstrainedAssign(unseen []cards.Card, needed map[int]int, rng *rand.Rand) map[int][]cards.Card {
	shuffled := append([]cards.Card(nil), unseen...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	assignment := make(map[int][]cards.Card, len(needed))
	idx := 0
	for pos := 0; pos < euchre.NumSeats; pos++ {
		n, ok := needed[pos]
		if !ok {
			continue
		}
		assignment[pos] = append([]cards.Card(nil), shuffled[idx:idx+n]...)
		idx += n
	}
	return assignment
}

// applyAssignment clones gs and substitutes the sampled opponent hands,
// leaving the acting seat's own hand and all public fields untouched.
func applyAssignment(gs *euchre.GameState, seat int, assignment map[int][]cards.Card) *euchre.GameState {
	clone := gs.Clone()
	for pos, hand := range assignment {
		clone.Players[pos].Hand = hand
	}
	return clone
}

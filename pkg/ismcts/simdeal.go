package ismcts

import (
	"math/rand"

	"github.com/buckeuchre/buckeuchre/internal/cards"
)

// simDeal is the DealSource a simulated GameState clone draws from if
// play happens to redeal mid-rollout (an all-pass bidding round). It
// shuffles with the search's own seeded RNG rather than the production
// crypto source, so a whole determinization replays identically given
// the same seed — useful for the diagnostics/replay tooling described
// in the AI analysis event (§4.7, §6.4).
type simDeal struct {
	rng    *rand.Rand
	dealer int
}

func newSimDeal(rng *rand.Rand, dealer int) *simDeal {
	return &simDeal{rng: rng, dealer: dealer}
}

func (s *simDeal) Deal() []cards.Card {
	deck := cards.FullDeck()
	s.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

func (s *simDeal) InitialDealer() int { return s.dealer }

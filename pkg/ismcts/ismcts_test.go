package ismcts

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckeuchre/buckeuchre/internal/cards"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
)

type fixedDeal struct {
	decks  [][]cards.Card
	dealer int
}

func (f *fixedDeal) Deal() []cards.Card {
	d := f.decks[0]
	f.decks = f.decks[1:]
	return d
}

func (f *fixedDeal) InitialDealer() int { return f.dealer }

func seatID(i int) string { return []string{"p0", "p1", "p2", "p3"}[i] }

func orderedDeckWithTurnUp(hands map[int][]cards.Card, seatOrder []int, turnUp cards.Card) []cards.Card {
	used := map[cards.Card]bool{turnUp: true}
	deck := make([]cards.Card, 24)
	idx := 0
	for pass := 0; pass < 5; pass++ {
		for _, seat := range seatOrder {
			c := hands[seat][pass]
			deck[idx] = c
			used[c] = true
			idx++
		}
	}
	deck[idx] = turnUp
	idx++
	for _, c := range cards.FullDeck() {
		if used[c] {
			continue
		}
		deck[idx] = c
		idx++
	}
	return deck
}

func newSeatedGame(t *testing.T, deck []cards.Card, dealer int) *euchre.GameState {
	t.Helper()
	deal := &fixedDeal{decks: [][]cards.Card{deck}, dealer: dealer}
	gs := euchre.New("g1", deal, 1000)
	for i := 0; i < euchre.NumSeats; i++ {
		gs.Seat(i, seatID(i), seatID(i), euchre.SeatHuman, 1000)
	}
	return gs
}

func clockwiseFrom(from int) []int {
	order := make([]int, 0, euchre.NumSeats)
	for i := 1; i <= euchre.NumSeats; i++ {
		order = append(order, (from+i)%euchre.NumSeats)
	}
	return order
}

// biddingGame seats a hand strong in spades for seat 0 and weak hands
// elsewhere, with a non-clubs turn-up so bidding actually happens.
func biddingGame(t *testing.T) *euchre.GameState {
	t.Helper()
	hands := map[int][]cards.Card{
		0: {cards.New(cards.Spades, cards.Jack), cards.New(cards.Clubs, cards.Jack), cards.New(cards.Spades, cards.Ace), cards.New(cards.Spades, cards.King), cards.New(cards.Spades, cards.Queen)},
		1: {cards.New(cards.Hearts, cards.Nine), cards.New(cards.Hearts, cards.Ten), cards.New(cards.Diamonds, cards.Nine), cards.New(cards.Diamonds, cards.Ten), cards.New(cards.Clubs, cards.Nine)},
		2: {cards.New(cards.Hearts, cards.Queen), cards.New(cards.Hearts, cards.King), cards.New(cards.Diamonds, cards.Queen), cards.New(cards.Diamonds, cards.King), cards.New(cards.Clubs, cards.Ten)},
		3: {cards.New(cards.Hearts, cards.Ace), cards.New(cards.Diamonds, cards.Ace), cards.New(cards.Clubs, cards.Queen), cards.New(cards.Clubs, cards.King), cards.New(cards.Clubs, cards.Ace)},
	}
	// Dealer = 3 so the deal order is 0,1,2,3 and seat 0 (the strong
	// spades hand) is first to bid.
	deck := orderedDeckWithTurnUp(hands, clockwiseFrom(3), cards.New(cards.Spades, cards.Nine))
	return newSeatedGame(t, deck, 3)
}

func TestSearchReturnsLegalRootAction(t *testing.T) {
	gs := biddingGame(t)
	require.Equal(t, euchre.PhaseBidding, gs.Phase)

	result := Search(gs, gs.CurrentBidder, SearchOptions{Iterations: 40, Seed: 1})
	require.NotNil(t, result.Best)

	found := false
	for _, a := range euchre.LegalActions(gs) {
		if a.Key() == result.Best.Key() {
			found = true
		}
	}
	require.True(t, found, "Search must return one of the actions LegalActions offered")
	require.NotEmpty(t, result.Stats)
}

func TestSearchDoesNotMutateInputState(t *testing.T) {
	gs := biddingGame(t)
	before := gs.Clone()

	Search(gs, gs.CurrentBidder, SearchOptions{Iterations: 25, Seed: 2})

	require.Equal(t, before.Phase, gs.Phase)
	require.Equal(t, before.Bids, gs.Bids)
	require.Equal(t, before.Version, gs.Version)
	for i := range before.Players {
		require.Equal(t, before.Players[i].Hand, gs.Players[i].Hand, "seat %d", i)
	}
}

func TestSearchStrongHandPrefersBiddingOverPass(t *testing.T) {
	gs := biddingGame(t) // seat 0 holds both bowers plus ace/king/queen of spades
	result := Search(gs, 0, SearchOptions{Iterations: 150, Seed: 3, Character: Balanced()})

	bid, ok := result.Best.(euchre.BidAction)
	require.True(t, ok, "expected a bid action, got %#v", result.Best)
	require.NotEqual(t, euchre.Pass, bid.Amount, "a near-guaranteed hand should not pass")
}

func TestSearchSingleAndParallelWorkersBothReturnAnAction(t *testing.T) {
	gs := biddingGame(t)

	single := Search(gs, 0, SearchOptions{Iterations: 80, Seed: 5, Workers: 1})
	parallel := Search(gs, 0, SearchOptions{Iterations: 80, Seed: 5, Workers: 4})

	require.NotNil(t, single.Best)
	require.NotNil(t, parallel.Best)
}

func TestSearchIsDeterministicForAFixedSeed(t *testing.T) {
	gs := biddingGame(t)

	first := Search(gs.Clone(), 0, SearchOptions{Iterations: 120, Seed: 42})
	second := Search(gs.Clone(), 0, SearchOptions{Iterations: 120, Seed: 42})

	require.Equal(t, first.Best.Key(), second.Best.Key())
	require.Equal(t, len(first.Stats), len(second.Stats))
}

// TestSearchSingleLegalCardPicksItWithFullVisitShare covers the
// dominant-action case: an acting seat holding exactly one playable
// card (the right bower, with three opponents holding only off-suit)
// has no real decision to make, so Search must return that card with
// every recorded visit on it.
func TestSearchSingleLegalCardPicksItWithFullVisitShare(t *testing.T) {
	gs := biddingGame(t)
	gs.Phase = euchre.PhasePlaying
	gs.TrumpSuit = cards.Spades
	gs.CurrentTrick = euchre.Trick{Number: 1, Lead: 0}
	gs.CurrentPlayerPosition = 0
	rightBower := cards.New(cards.Spades, cards.Jack)
	gs.Players[0].Hand = []cards.Card{rightBower}
	gs.Players[1].Hand = []cards.Card{cards.New(cards.Hearts, cards.Nine)}
	gs.Players[2].Hand = []cards.Card{cards.New(cards.Diamonds, cards.Nine)}
	gs.Players[3].Hand = []cards.Card{cards.New(cards.Clubs, cards.Nine)}

	result := Search(gs, 0, SearchOptions{Iterations: 50, Seed: 9})

	card, ok := result.Best.(euchre.CardAction)
	require.True(t, ok)
	require.Equal(t, rightBower, card.Card)
	require.Len(t, result.Stats, 1)
	totalVisits := 0
	for _, s := range result.Stats {
		totalVisits += s.Visits
	}
	require.Equal(t, result.Stats[0].Visits, totalVisits, "the only legal action must hold the full visit share")
}

func TestHandStrengthOrdersBowerHeavyHandHighest(t *testing.T) {
	strong := []cards.Card{
		cards.New(cards.Spades, cards.Jack),
		cards.New(cards.Clubs, cards.Jack),
		cards.New(cards.Spades, cards.Ace),
		cards.New(cards.Hearts, cards.Nine),
		cards.New(cards.Diamonds, cards.Nine),
	}
	weak := []cards.Card{
		cards.New(cards.Hearts, cards.Nine),
		cards.New(cards.Hearts, cards.Ten),
		cards.New(cards.Diamonds, cards.Nine),
		cards.New(cards.Diamonds, cards.Ten),
		cards.New(cards.Clubs, cards.Nine),
	}
	require.Greater(t, handStrength(strong, cards.Spades), handStrength(weak, cards.Spades))
}

func TestDeterminizeRespectsHandSizesAndExcludesOwnHand(t *testing.T) {
	gs := biddingGame(t)
	voids := NewVoidSet()
	rng := rand.New(rand.NewSource(7))

	det := Determinize(gs, 0, voids, rng, 3)

	for i, p := range gs.Players {
		require.Len(t, det.Players[i].Hand, len(p.Hand), "seat %d hand size must be preserved", i)
	}
	require.Equal(t, gs.Players[0].Hand, det.Players[0].Hand, "acting seat's own hand is never resampled")

	ownHand := make(map[cards.Card]bool)
	for _, c := range gs.Players[0].Hand {
		ownHand[c] = true
	}
	for i := 1; i < euchre.NumSeats; i++ {
		for _, c := range det.Players[i].Hand {
			require.False(t, ownHand[c], "determinized opponent hand must not contain the acting seat's own cards")
		}
	}
}

func TestDeterminizeRespectsVoidConstraints(t *testing.T) {
	gs := biddingGame(t)
	gs.Phase = euchre.PhasePlaying
	gs.TrumpSuit = cards.Spades
	gs.Tricks = []euchre.Trick{
		{
			Number: 1,
			Lead:   0,
			Plays: []euchre.TrickPlay{
				{Position: 0, Card: cards.New(cards.Hearts, cards.Nine)},
				{Position: 1, Card: cards.New(cards.Clubs, cards.Ace)}, // seat 1 void in hearts
				{Position: 2, Card: cards.New(cards.Hearts, cards.Ten)},
				{Position: 3, Card: cards.New(cards.Hearts, cards.King)},
			},
		},
	}
	gs.Players[1].Hand = []cards.Card{cards.New(cards.Diamonds, cards.Nine), cards.New(cards.Diamonds, cards.Ten), cards.New(cards.Clubs, cards.Nine), cards.New(cards.Clubs, cards.Ten)}

	voids := ObserveTricks(gs)
	require.True(t, voids[1][cards.Hearts])

	rng := rand.New(rand.NewSource(11))
	det := Determinize(gs, 0, voids, rng, 5)
	for _, c := range det.Players[1].Hand {
		require.NotEqual(t, cards.Hearts, c.EffectiveSuit(cards.Spades), "seat 1 must not be dealt hearts after showing void")
	}
}

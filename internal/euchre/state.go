// Package euchre is the pure rule engine: four transition functions over
// an immutable-by-convention GameState, plus the legality predicate and
// scoring. Nothing in this package reads wall-clock time, randomness, or
// does I/O — all nondeterminism is injected via dealsource.DealSource.
package euchre

import (
	"github.com/buckeuchre/buckeuchre/internal/cards"
	"github.com/buckeuchre/buckeuchre/internal/dealsource"
)

// Phase is one of the seven game-state phases from the lifecycle.
type Phase string

const (
	PhaseWaitingForPlayers Phase = "WAITING_FOR_PLAYERS"
	PhaseBidding           Phase = "BIDDING"
	PhaseDeclaringTrump    Phase = "DECLARING_TRUMP"
	PhaseFoldingDecision   Phase = "FOLDING_DECISION"
	PhasePlaying           Phase = "PLAYING"
	PhaseRoundOver         Phase = "ROUND_OVER"
	PhaseGameOver          Phase = "GAME_OVER"
)

// FoldDecision is a non-bidder's stay/fold status for the current round.
type FoldDecision string

const (
	FoldUndecided FoldDecision = "UNDECIDED"
	FoldStay      FoldDecision = "STAY"
	FoldFold      FoldDecision = "FOLD"
)

// SeatType distinguishes human-controlled from AI-controlled seats.
type SeatType string

const (
	SeatHuman SeatType = "HUMAN"
	SeatAI    SeatType = "AI"
)

// StartingScore is the implementation-defined constant scores count down
// from; first player to reach zero or below wins (§4.3).
const StartingScore = 52

// NumSeats is fixed: Buck Euchre is always four-handed.
const NumSeats = 4

// BidAmount is either Pass or a numeric bid of 2..5.
type BidAmount int

const (
	Pass BidAmount = 0
	Bid2 BidAmount = 2
	Bid3 BidAmount = 3
	Bid4 BidAmount = 4
	Bid5 BidAmount = 5
)

func (b BidAmount) Valid() bool {
	return b == Pass || (b >= Bid2 && b <= Bid5)
}

// PlacedBid records one bidding action within a round.
type PlacedBid struct {
	Position int
	Amount   BidAmount
}

// Player is one of the four fixed seats.
type Player struct {
	ID           string
	DisplayName  string
	Position     int
	Hand         []cards.Card
	Score        int
	TricksTaken  int
	Connected    bool
	Folded       bool
	FoldDecision FoldDecision
	SeatType     SeatType
	Occupied     bool // false while WAITING_FOR_PLAYERS before the seat fills
}

// HasCard reports whether the player's hand contains c.
func (p *Player) HasCard(c cards.Card) bool {
	for _, h := range p.Hand {
		if h == c {
			return true
		}
	}
	return false
}

// RemoveCard removes c from the hand in place. No-op if absent.
func (p *Player) RemoveCard(c cards.Card) {
	for i, h := range p.Hand {
		if h == c {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return
		}
	}
}

// TrickPlay is one (position, card) play within a trick.
type TrickPlay struct {
	Position int
	Card     cards.Card
}

// Trick is one unit of play: up to four cards, one per non-folded
// player, led by one position and (once complete) won by another.
type Trick struct {
	Number int
	Lead   int
	Plays  []TrickPlay
	Winner *int
}

// activeSeatCount is how many non-folded seats are expected to play to
// a trick.
func activeSeatCount(players [NumSeats]Player) int {
	n := 0
	for _, p := range players {
		if !p.Folded {
			n++
		}
	}
	return n
}

// Complete reports whether t has received one play per active seat.
func (t Trick) Complete(activeSeats int) bool {
	return len(t.Plays) >= activeSeats
}

// GameState is the authoritative aggregate described in §3.
type GameState struct {
	ID             string
	Phase          Phase
	Round          int
	DealerPosition int
	Players        [NumSeats]Player

	Blind         []cards.Card
	TurnUp        cards.Card
	ClubsTurnedUp bool

	Bids                  []PlacedBid
	CurrentBidder         int
	HighestBid            BidAmount
	HasHighestBid         bool
	WinningBidderPosition int

	TrumpSuit     cards.Suit
	TrumpDeclared bool

	Tricks       []Trick
	CurrentTrick Trick

	// TrickPendingReveal is true from the moment a non-terminal trick's
	// fourth card lands until the table's reveal pacing timer fires.
	// CurrentTrick still holds the just-completed trick (with Winner
	// set) during this window, and ApplyCardPlay rejects every play
	// attempt — "no new plays are accepted" while the trick is on
	// display. AdvanceTrick clears it and opens the next trick.
	TrickPendingReveal bool

	CurrentPlayerPosition int

	Winner *int

	CreatedAtMs int64
	UpdatedAtMs int64

	Version uint64

	deal dealsource.DealSource
}

// New creates a game in WAITING_FOR_PLAYERS with no seats filled. deal
// supplies decks/dealer for every round dealt from here on, including
// round 1 once the fourth seat fills.
func New(id string, deal dealsource.DealSource, nowMs int64) *GameState {
	gs := &GameState{
		ID:             id,
		Phase:          PhaseWaitingForPlayers,
		Round:          0,
		DealerPosition: deal.InitialDealer(),
		CreatedAtMs:    nowMs,
		UpdatedAtMs:    nowMs,
		deal:           deal,
	}
	for i := range gs.Players {
		gs.Players[i].Position = i
		gs.Players[i].Score = StartingScore
	}
	return gs
}

// bump increments the version and updated-at timestamp; called exactly
// once per accepted mutation, matching "version strictly increases on
// every mutation" and "rejected actions do not change the version".
func (gs *GameState) bump(nowMs int64) {
	gs.Version++
	gs.UpdatedAtMs = nowMs
}

// Clone deep-copies gs, including per-seat hands and completed tricks,
// so the ISMCTS engine can simulate forward on a determinized copy
// without disturbing the authoritative state. The DealSource reference
// is carried over as-is: simulations use a separate, search-local
// DealSource (see pkg/ismcts), never the game's own.
func (gs *GameState) Clone() *GameState {
	clone := *gs
	for i := range clone.Players {
		clone.Players[i].Hand = append([]cards.Card(nil), gs.Players[i].Hand...)
	}
	clone.Blind = append([]cards.Card(nil), gs.Blind...)
	clone.Bids = append([]PlacedBid(nil), gs.Bids...)
	clone.Tricks = make([]Trick, len(gs.Tricks))
	for i, t := range gs.Tricks {
		clone.Tricks[i] = t
		clone.Tricks[i].Plays = append([]TrickPlay(nil), t.Plays...)
		if t.Winner != nil {
			w := *t.Winner
			clone.Tricks[i].Winner = &w
		}
	}
	clone.CurrentTrick.Plays = append([]TrickPlay(nil), gs.CurrentTrick.Plays...)
	if gs.Winner != nil {
		w := *gs.Winner
		clone.Winner = &w
	}
	return &clone
}

// SetDealSource overrides the DealSource a clone draws from — used by
// ISMCTS to inject a per-simulation deterministic shuffle of the
// already-determinized unseen cards.
func (gs *GameState) SetDealSource(deal dealsource.DealSource) { gs.deal = deal }

// SeatedCount is how many of the four seats are currently occupied.
func (gs *GameState) SeatedCount() int {
	n := 0
	for _, p := range gs.Players {
		if p.Occupied {
			n++
		}
	}
	return n
}

// NextFreeSeat returns the lowest-numbered unoccupied seat, or -1.
func (gs *GameState) NextFreeSeat() int {
	for i, p := range gs.Players {
		if !p.Occupied {
			return i
		}
	}
	return -1
}

// Seat occupies position with a player identity. Auto-starts the round
// when this is the fourth seat filled, per the lifecycle section.
func (gs *GameState) Seat(position int, id, displayName string, seatType SeatType, nowMs int64) {
	p := &gs.Players[position]
	p.ID = id
	p.DisplayName = displayName
	p.SeatType = seatType
	p.Occupied = true
	p.Connected = true
	gs.bump(nowMs)

	if gs.Phase == PhaseWaitingForPlayers && gs.SeatedCount() == NumSeats {
		gs.dealRound(nowMs)
	}
}

// clockwiseFrom walks seats starting at (from+1)%4, wrapping once, used
// for turn advancement and for "earliest bidder" computations.
func clockwiseFrom(from int) []int {
	order := make([]int, 0, NumSeats)
	for i := 1; i <= NumSeats; i++ {
		order = append(order, (from+i)%NumSeats)
	}
	return order
}

package euchre

import "github.com/buckeuchre/buckeuchre/internal/cards"

// dealRound draws a fresh shuffled deck from the DealSource, deals five
// cards to each seat starting left of the dealer, sets the turn-up, and
// either enters BIDDING or applies the dirty-clubs shortcut (§4.2).
func (gs *GameState) dealRound(nowMs int64) {
	gs.Round++
	deck := gs.deal.Deal()

	for i := range gs.Players {
		gs.Players[i].Hand = nil
		gs.Players[i].TricksTaken = 0
		gs.Players[i].Folded = false
		gs.Players[i].FoldDecision = FoldUndecided
	}

	seatOrder := clockwiseFrom(gs.DealerPosition)

	// Single cards at a time, five passes, matching the dealing policy.
	idx := 0
	for pass := 0; pass < 5; pass++ {
		for _, seat := range seatOrder {
			gs.Players[seat].Hand = append(gs.Players[seat].Hand, deck[idx])
			idx++
		}
	}

	gs.TurnUp = deck[idx]
	idx++
	gs.Blind = append([]cards.Card(nil), deck[idx:]...)

	gs.Bids = nil
	gs.HasHighestBid = false
	gs.HighestBid = Pass
	gs.WinningBidderPosition = -1
	gs.TrumpDeclared = false
	gs.Tricks = nil
	gs.CurrentTrick = Trick{}
	gs.Winner = nil

	gs.ClubsTurnedUp = gs.TurnUp.Suit == cards.Clubs
	if gs.ClubsTurnedUp {
		gs.applyDirtyClubs(nowMs)
		gs.bump(nowMs)
		return
	}

	gs.Phase = PhaseBidding
	gs.CurrentBidder = seatOrder[0]
	gs.bump(nowMs)
}

// applyDirtyClubs forces trump to clubs, skips bidding and folding
// entirely, and sets the player left of the dealer as the implicit
// bidder who leads the first trick.
func (gs *GameState) applyDirtyClubs(nowMs int64) {
	gs.TrumpSuit = cards.Clubs
	gs.TrumpDeclared = true
	gs.Blind = nil // set aside; no longer dealt to anyone
	bidder := (gs.DealerPosition + 1) % NumSeats
	gs.WinningBidderPosition = bidder
	gs.HighestBid = Bid2 // nominal; dirty clubs carries no real bid amount
	gs.HasHighestBid = true

	for i := range gs.Players {
		gs.Players[i].FoldDecision = FoldStay
	}

	gs.startPlay(bidder)
}

// startPlay transitions into PLAYING with the first trick led by lead.
func (gs *GameState) startPlay(lead int) {
	gs.Phase = PhasePlaying
	gs.Tricks = nil
	gs.CurrentTrick = Trick{Number: 1, Lead: lead}
	gs.CurrentPlayerPosition = lead
}

package euchre

import (
	"github.com/buckeuchre/buckeuchre/internal/apperr"
	"github.com/buckeuchre/buckeuchre/internal/cards"
)

// Apply dispatches action to the matching typed transition function.
// This is the single entry point the game actor and the ISMCTS
// simulator both call — neither needs to know the concrete Action type.
func Apply(gs *GameState, action Action, nowMs int64) error {
	switch a := action.(type) {
	case BidAction:
		return ApplyBid(gs, a.Position, a.Amount, nowMs)
	case TrumpAction:
		return ApplyTrumpDeclaration(gs, a.Position, a.Suit, nowMs)
	case FoldDecisionAction:
		return ApplyFoldDecision(gs, a.Position, a.Fold, nowMs)
	case CardAction:
		return ApplyCardPlay(gs, a.Position, a.Card, nowMs)
	default:
		return apperr.Fatal("INTERNAL", "unknown action type")
	}
}

// ApplyBid implements applyBid from §4.1. nowMs is supplied by the
// caller (the game actor) — the rule engine itself never reads the
// wall clock.
func ApplyBid(gs *GameState, pos int, amount BidAmount, nowMs int64) error {
	if gs.Phase != PhaseBidding {
		return apperr.Authorization("NOT_YOUR_TURN", "bidding is not in progress")
	}
	if pos != gs.CurrentBidder {
		return apperr.Authorization("NOT_YOUR_TURN", "it is not this seat's turn to bid")
	}
	if !amount.Valid() {
		return apperr.Validation("INVALID_ACTION", "bid amount must be PASS, 2, 3, 4, or 5")
	}
	if amount != Pass && gs.HasHighestBid && amount <= gs.HighestBid {
		return apperr.Validation("INVALID_ACTION", "bid must exceed the current high bid")
	}

	gs.Bids = append(gs.Bids, PlacedBid{Position: pos, Amount: amount})
	if amount != Pass {
		gs.HighestBid = amount
		gs.HasHighestBid = true
		gs.WinningBidderPosition = pos
	}

	if len(gs.Bids) < NumSeats {
		gs.CurrentBidder = (gs.CurrentBidder + 1) % NumSeats
		gs.bump(nowMs)
		return nil
	}

	// All four have bid.
	if !gs.HasHighestBid {
		// All passed: redeal, dealer advances.
		gs.DealerPosition = (gs.DealerPosition + 1) % NumSeats
		gs.dealRound(nowMs)
		return nil
	}

	gs.Phase = PhaseDeclaringTrump
	gs.bump(nowMs)
	return nil
}

// ApplyTrumpDeclaration implements applyTrumpDeclaration from §4.1.
func ApplyTrumpDeclaration(gs *GameState, pos int, suit cards.Suit, nowMs int64) error {
	if gs.Phase != PhaseDeclaringTrump {
		return apperr.Authorization("NOT_YOUR_TURN", "trump has not been requested yet")
	}
	if pos != gs.WinningBidderPosition {
		return apperr.Authorization("NOT_YOUR_TURN", "only the winning bidder declares trump")
	}

	gs.TrumpSuit = suit
	gs.TrumpDeclared = true
	gs.Blind = nil
	gs.Phase = PhaseFoldingDecision
	for i := range gs.Players {
		if i == gs.WinningBidderPosition {
			gs.Players[i].FoldDecision = FoldStay
		} else {
			gs.Players[i].FoldDecision = FoldUndecided
		}
	}
	gs.bump(nowMs)
	return nil
}

// ApplyFoldDecision implements applyFoldDecision from §4.1.
func ApplyFoldDecision(gs *GameState, pos int, fold bool, nowMs int64) error {
	if gs.Phase != PhaseFoldingDecision {
		return apperr.Authorization("NOT_YOUR_TURN", "no fold decision is pending")
	}
	if pos == gs.WinningBidderPosition {
		return apperr.Authorization("NOT_YOUR_TURN", "the bidder does not decide to fold")
	}
	p := &gs.Players[pos]
	if p.FoldDecision != FoldUndecided {
		return apperr.Authorization("NOT_YOUR_TURN", "this seat has already decided")
	}
	if gs.ClubsTurnedUp && fold {
		return apperr.Validation("INVALID_ACTION", "folding is forbidden on dirty clubs")
	}

	if fold {
		p.FoldDecision = FoldFold
		p.Folded = true
		p.Hand = nil
	} else {
		p.FoldDecision = FoldStay
	}

	if nextUndecidedNonBidder(gs) >= 0 {
		gs.bump(nowMs)
		return nil
	}

	lead := firstNonFoldedFrom(gs, gs.WinningBidderPosition)
	gs.startPlay(lead)
	gs.bump(nowMs)
	return nil
}

// firstNonFoldedFrom returns from if it is not folded, else the next
// non-folded seat clockwise (the bidder always stays, so from itself
// always qualifies in practice — kept general for symmetry).
func firstNonFoldedFrom(gs *GameState, from int) int {
	if !gs.Players[from].Folded {
		return from
	}
	for _, pos := range clockwiseFrom(from) {
		if !gs.Players[pos].Folded {
			return pos
		}
	}
	return from
}

// ApplyCardPlay implements applyCardPlay from §4.1.
func ApplyCardPlay(gs *GameState, pos int, card cards.Card, nowMs int64) error {
	if gs.Phase != PhasePlaying {
		return apperr.Authorization("NOT_YOUR_TURN", "no card play is pending")
	}
	if gs.TrickPendingReveal {
		return apperr.Authorization("NOT_YOUR_TURN", "the completed trick is still being revealed")
	}
	if pos != gs.CurrentPlayerPosition {
		return apperr.Authorization("NOT_YOUR_TURN", "it is not this seat's turn to play")
	}
	hand := gs.Players[pos].Hand
	if !CanPlayCard(card, hand, gs.CurrentTrick, gs.TrumpSuit) {
		return apperr.Validation("INVALID_ACTION", "that card may not legally be played")
	}

	gs.Players[pos].RemoveCard(card)
	gs.CurrentTrick.Plays = append(gs.CurrentTrick.Plays, TrickPlay{Position: pos, Card: card})

	active := activeSeatCount(gs.Players)
	if !gs.CurrentTrick.Complete(active) {
		next := nextToPlay(gs, pos)
		gs.CurrentPlayerPosition = next
		gs.bump(nowMs)
		return nil
	}

	winner := trickWinner(gs.CurrentTrick, gs.TrumpSuit)
	gs.CurrentTrick.Winner = &winner
	gs.Players[winner].TricksTaken++
	gs.Tricks = append(gs.Tricks, gs.CurrentTrick)

	if len(gs.Tricks) >= 5 {
		gs.Phase = PhaseRoundOver
		gs.CurrentTrick = Trick{}
		gs.bump(nowMs)
		return nil
	}

	// The trick stays in CurrentTrick, winner and all, until the table's
	// reveal pacing timer calls AdvanceTrick — no new plays are accepted
	// in the meantime (the guard at the top of this function).
	gs.TrickPendingReveal = true
	gs.bump(nowMs)
	return nil
}

// AdvanceTrick opens the next trick once a completed trick's reveal
// pause has elapsed: the winner leads, CurrentTrick resets to an empty
// trick numbered one past the last, and TrickPendingReveal clears. A
// no-op if no trick is currently pending reveal. Called by the game
// actor's TRICK_REVEAL_ELAPSED timer, never by a player action.
func AdvanceTrick(gs *GameState, nowMs int64) {
	if !gs.TrickPendingReveal {
		return
	}
	winner := *gs.CurrentTrick.Winner
	gs.TrickPendingReveal = false
	gs.CurrentTrick = Trick{Number: len(gs.Tricks) + 1, Lead: winner}
	gs.CurrentPlayerPosition = winner
	gs.bump(nowMs)
}

// RoundDeltas computes the §4.3 score delta for every seat from a
// ROUND_OVER state, without mutating it. Exposed so the ISMCTS rollout
// evaluator can read "the acting seat's score delta for this hand" (§4.7)
// without driving the state into the next round.
func RoundDeltas(gs *GameState) [NumSeats]int {
	var deltas [NumSeats]int
	bidder := gs.Players[gs.WinningBidderPosition]
	bidAmount := int(gs.HighestBid)
	tricksTaken := bidder.TricksTaken

	if tricksTaken >= bidAmount {
		deltas[gs.WinningBidderPosition] = -tricksTaken
		for i, p := range gs.Players {
			if i == gs.WinningBidderPosition {
				continue
			}
			if p.FoldDecision == FoldStay && p.TricksTaken >= 1 {
				deltas[i] = -p.TricksTaken
			}
		}
	} else {
		deltas[gs.WinningBidderPosition] = bidAmount
	}
	return deltas
}

// FinishRound implements finishRound from §4.1 and §4.3: applies score
// deltas for the just-completed round, then either ends the game or
// deals the next round with the dealer advanced.
func FinishRound(gs *GameState, nowMs int64) {
	if gs.Phase != PhaseRoundOver {
		return
	}

	deltas := RoundDeltas(gs)
	for i := range gs.Players {
		gs.Players[i].Score += deltas[i]
	}

	winner := -1
	lowest := 0
	for i, p := range gs.Players {
		if p.Score > 0 {
			continue
		}
		// Iterating in ascending seat order means the first qualifying
		// (lowest) score already wins any tie, per "ties broken by
		// lowest seat index".
		if winner == -1 || p.Score < lowest {
			winner = i
			lowest = p.Score
		}
	}

	if winner >= 0 {
		gs.Phase = PhaseGameOver
		gs.Winner = &winner
		gs.bump(nowMs)
		return
	}

	gs.DealerPosition = (gs.DealerPosition + 1) % NumSeats
	gs.dealRound(nowMs)
}

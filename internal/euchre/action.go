package euchre

import (
	"fmt"

	"github.com/buckeuchre/buckeuchre/internal/cards"
)

// ActionType discriminates the tagged Action sum (§9).
type ActionType string

const (
	ActionTypeBid          ActionType = "BID"
	ActionTypeTrump        ActionType = "TRUMP"
	ActionTypeFoldDecision ActionType = "FOLD"
	ActionTypeCard         ActionType = "CARD"
)

// Action is the tagged sum the rule engine, the transport layer, and the
// ISMCTS tree all share: exactly one of the four concrete action kinds,
// each carrying the acting seat's position and a stable string Key used
// as an MCTS tree child key.
type Action interface {
	Type() ActionType
	ActorPosition() int
	Key() string
}

type BidAction struct {
	Position int
	Amount   BidAmount
}

func (a BidAction) Type() ActionType  { return ActionTypeBid }
func (a BidAction) ActorPosition() int { return a.Position }
func (a BidAction) Key() string       { return fmt.Sprintf("BID:%d", a.Amount) }

type TrumpAction struct {
	Position int
	Suit     cards.Suit
}

func (a TrumpAction) Type() ActionType  { return ActionTypeTrump }
func (a TrumpAction) ActorPosition() int { return a.Position }
func (a TrumpAction) Key() string       { return "TRUMP:" + a.Suit.String() }

type FoldDecisionAction struct {
	Position int
	Fold     bool
}

func (a FoldDecisionAction) Type() ActionType  { return ActionTypeFoldDecision }
func (a FoldDecisionAction) ActorPosition() int { return a.Position }
func (a FoldDecisionAction) Key() string {
	if a.Fold {
		return "FOLD:FOLD"
	}
	return "FOLD:STAY"
}

type CardAction struct {
	Position int
	Card     cards.Card
}

func (a CardAction) Type() ActionType  { return ActionTypeCard }
func (a CardAction) ActorPosition() int { return a.Position }
func (a CardAction) Key() string       { return "CARD:" + a.Card.ID() }

// LegalActions enumerates every action the current phase's actor may
// legally take right now. Used by the transport layer for client-side
// hinting and, more importantly, by the ISMCTS engine's expansion step.
func LegalActions(gs *GameState) []Action {
	switch gs.Phase {
	case PhaseBidding:
		return legalBids(gs)
	case PhaseDeclaringTrump:
		return legalTrumpDeclarations(gs)
	case PhaseFoldingDecision:
		return legalFoldDecisions(gs)
	case PhasePlaying:
		if gs.TrickPendingReveal {
			return nil // ApplyCardPlay rejects every play until AdvanceTrick
		}
		return legalCardPlays(gs)
	default:
		return nil
	}
}

func legalBids(gs *GameState) []Action {
	actions := []Action{BidAction{Position: gs.CurrentBidder, Amount: Pass}}
	for _, amt := range []BidAmount{Bid2, Bid3, Bid4, Bid5} {
		if !gs.HasHighestBid || amt > gs.HighestBid {
			actions = append(actions, BidAction{Position: gs.CurrentBidder, Amount: amt})
		}
	}
	return actions
}

func legalTrumpDeclarations(gs *GameState) []Action {
	actions := make([]Action, 0, 4)
	for _, s := range cards.AllSuits() {
		actions = append(actions, TrumpAction{Position: gs.WinningBidderPosition, Suit: s})
	}
	return actions
}

func legalFoldDecisions(gs *GameState) []Action {
	pos := nextUndecidedNonBidder(gs)
	if pos < 0 {
		return nil
	}
	if gs.ClubsTurnedUp {
		return []Action{FoldDecisionAction{Position: pos, Fold: false}}
	}
	return []Action{
		FoldDecisionAction{Position: pos, Fold: false},
		FoldDecisionAction{Position: pos, Fold: true},
	}
}

func nextUndecidedNonBidder(gs *GameState) int {
	for _, pos := range clockwiseFrom(gs.WinningBidderPosition) {
		p := &gs.Players[pos]
		if pos == gs.WinningBidderPosition {
			continue
		}
		if p.FoldDecision == FoldUndecided {
			return pos
		}
	}
	return -1
}

func legalCardPlays(gs *GameState) []Action {
	pos := gs.CurrentPlayerPosition
	hand := gs.Players[pos].Hand
	legal := make([]Action, 0, len(hand))
	for _, c := range hand {
		if CanPlayCard(c, hand, gs.CurrentTrick, gs.TrumpSuit) {
			legal = append(legal, CardAction{Position: pos, Card: c})
		}
	}
	return legal
}

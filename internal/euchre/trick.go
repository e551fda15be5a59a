package euchre

import "github.com/buckeuchre/buckeuchre/internal/cards"

// CanPlayCard is the legality predicate from §4.1: card must be in hand
// and, if the trick already has a lead, the player must follow the
// lead's effective suit when holding at least one card of it.
func CanPlayCard(card cards.Card, hand []cards.Card, trick Trick, trump cards.Suit) bool {
	inHand := false
	for _, c := range hand {
		if c == card {
			inHand = true
			break
		}
	}
	if !inHand {
		return false
	}
	if len(trick.Plays) == 0 {
		return true
	}
	ledSuit := trick.Plays[0].Card.EffectiveSuit(trump)
	if card.EffectiveSuit(trump) == ledSuit {
		return true
	}
	return !handHasSuit(hand, ledSuit, trump)
}

func handHasSuit(hand []cards.Card, suit cards.Suit, trump cards.Suit) bool {
	for _, c := range hand {
		if c.EffectiveSuit(trump) == suit {
			return true
		}
	}
	return false
}

// trickWinner determines the winning position of a complete trick by
// effective-suit/trump rules (§3, Testable Property 4).
func trickWinner(t Trick, trump cards.Suit) int {
	ledSuit := t.Plays[0].Card.EffectiveSuit(trump)
	best := t.Plays[0]
	for _, play := range t.Plays[1:] {
		if cards.Beats(play.Card, best.Card, ledSuit, trump) {
			best = play
		}
	}
	return best.Position
}

// nextToPlay finds the next non-folded seat clockwise from pos that has
// not yet played to the given trick.
func nextToPlay(gs *GameState, from int) int {
	for _, pos := range clockwiseFrom(from) {
		if gs.Players[pos].Folded {
			continue
		}
		if !playedToTrick(gs.CurrentTrick, pos) {
			return pos
		}
	}
	return -1
}

func playedToTrick(t Trick, pos int) bool {
	for _, play := range t.Plays {
		if play.Position == pos {
			return true
		}
	}
	return false
}

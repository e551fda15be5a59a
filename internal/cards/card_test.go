package cards

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCardID(t *testing.T) {
	c := New(Hearts, Jack)
	require.Equal(t, "HEARTS_JACK", c.ID())

	parsed, err := ParseID("HEARTS_JACK")
	require.NoError(t, err)
	require.Equal(t, c, parsed)
}

func TestCardJSONRoundTrip(t *testing.T) {
	c := New(Clubs, Ace)
	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.Equal(t, `"CLUBS_ACE"`, string(data))

	var got Card
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, c, got)
}

func TestLeftBowerEffectiveSuit(t *testing.T) {
	leftBower := New(Diamonds, Jack)
	require.True(t, leftBower.IsLeftBower(Hearts))
	require.Equal(t, Hearts, leftBower.EffectiveSuit(Hearts))
	require.True(t, leftBower.IsTrump(Hearts))

	rightBower := New(Hearts, Jack)
	require.True(t, rightBower.IsRightBower(Hearts))
	require.Equal(t, Hearts, rightBower.EffectiveSuit(Hearts))
}

func TestTrumpOrdering(t *testing.T) {
	trump := Spades
	rightBower := New(Spades, Jack)
	leftBower := New(Clubs, Jack)
	aceOfTrump := New(Spades, Ace)

	require.True(t, Beats(rightBower, leftBower, Spades, trump))
	require.True(t, Beats(leftBower, aceOfTrump, Spades, trump))
	require.False(t, Beats(aceOfTrump, rightBower, Spades, trump))
}

func TestOffSuitNeverWinsAgainstLead(t *testing.T) {
	trump := Clubs
	led := Hearts
	leadAce := New(Hearts, Ace)
	offSuitAce := New(Spades, Ace)

	require.True(t, Beats(leadAce, offSuitAce, led, trump))
	require.False(t, Beats(offSuitAce, leadAce, led, trump))
}

func TestCrossSuitOffSuitDoesNotOrder(t *testing.T) {
	trump := Clubs
	led := Hearts
	spadeAce := New(Spades, Ace)
	diamondAce := New(Diamonds, Ace)

	require.False(t, Beats(spadeAce, diamondAce, led, trump))
	require.False(t, Beats(diamondAce, spadeAce, led, trump))
}

func TestFullDeckHas24UniqueCards(t *testing.T) {
	deck := FullDeck()
	require.Len(t, deck, 24)

	seen := make(map[Card]bool, 24)
	for _, c := range deck {
		require.False(t, seen[c], "duplicate card %s", c)
		seen[c] = true
	}
}

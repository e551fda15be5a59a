package transport

import (
	"encoding/json"

	"github.com/buckeuchre/buckeuchre/internal/cards"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/pkg/table"
)

// EventType is the wire discriminant for every message in either
// direction over the WebSocket connection (§6).
type EventType string

const (
	// Client → server
	EventJoinGame     EventType = "JOIN_GAME"
	EventPlaceBid     EventType = "PLACE_BID"
	EventDeclareTrump EventType = "DECLARE_TRUMP"
	EventFoldDecision EventType = "FOLD_DECISION"
	EventPlayCard     EventType = "PLAY_CARD"
	EventStartRound   EventType = "START_NEXT_ROUND"
	EventRequestState EventType = "REQUEST_STATE"
	EventLeaveGame    EventType = "LEAVE_GAME"

	// Server → client
	EventStateUpdate        EventType = "STATE_UPDATE"
	EventError              EventType = "ERROR"
	EventAIAnalysis         EventType = "AI_ANALYSIS_UPDATE"
	EventJoined             EventType = "JOINED"
	EventLeft               EventType = "LEFT_GAME"
	EventTrickComplete      EventType = "TRICK_COMPLETE"
	EventRoundComplete      EventType = "ROUND_COMPLETE"
	EventAllPlayersPassed   EventType = "ALL_PLAYERS_PASSED"
	EventGameWaiting        EventType = "GAME_WAITING"
	EventPlayerConnected    EventType = "PLAYER_CONNECTED"
	EventPlayerDisconnected EventType = "PLAYER_DISCONNECTED"
	EventPlayerReconnected  EventType = "PLAYER_RECONNECTED"
)

// Envelope is the outer wire shape every message (either direction)
// uses: a Type discriminant plus a raw payload decoded according to it.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinGamePayload requests a seat (or reconnection) at gameID.
type JoinGamePayload struct {
	GameID      string `json:"gameId"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

type PlaceBidPayload struct {
	Amount euchre.BidAmount `json:"amount"`
}

type DeclareTrumpPayload struct {
	Suit cards.Suit `json:"suit"`
}

type FoldDecisionPayload struct {
	Fold bool `json:"fold"`
}

type PlayCardPayload struct {
	Card cards.Card `json:"card"`
}

// JoinedPayload confirms a successful JOIN_GAME, reporting the seat the
// caller now occupies.
type JoinedPayload struct {
	GameID   string `json:"gameId"`
	Position int    `json:"position"`
}

// ErrorPayload reports a rejected action using the shared apperr
// taxonomy's wire code, never a bare Go error string.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateUpdatePayload carries a redacted snapshot, the bulk of server
// traffic.
type StateUpdatePayload struct {
	Snapshot table.Snapshot `json:"snapshot"`
}

// AIAnalysisPayload reports an AI seat's ISMCTS statistics for the
// decision it just made or is currently evaluating (§4.7, §6.4).
type AIAnalysisPayload struct {
	GameID   string        `json:"gameId"`
	Position int           `json:"position"`
	Actions  []ActionStat  `json:"actions"`
}

// ActionStat is the wire projection of ismcts.ActionStat — kept as a
// separate type so pkg/transport does not need to import pkg/ismcts
// just to serialize a float64 tuple.
type ActionStat struct {
	ActionKey     string  `json:"actionKey"`
	Visits        int     `json:"visits"`
	AverageValue  float64 `json:"averageValue"`
	StandardError float64 `json:"standardError"`
	CI95Low       float64 `json:"ci95Low"`
	CI95High      float64 `json:"ci95High"`
}

// TrickCompletePayload reports one trick's outcome (§6.2), sent during
// the reveal pause so the next seat's AI analysis can begin early.
type TrickCompletePayload struct {
	TrickNumber        int `json:"trickNumber"`
	WinnerPosition     int `json:"winnerPosition"`
	NextPlayerPosition int `json:"nextPlayerPosition"`
}

// RoundCompletePayload reports the per-seat score deltas applied when a
// round finishes. NewRound is omitted when the game ended on this round.
type RoundCompletePayload struct {
	Deltas   [euchre.NumSeats]int `json:"deltas"`
	NewRound *int                 `json:"newRound,omitempty"`
}

// AllPlayersPassedPayload reports a bidding round where every seat
// passed, forcing a redeal.
type AllPlayersPassedPayload struct {
	NewRound int `json:"newRound"`
}

// GameWaitingPayload reports that a game still has open seats.
type GameWaitingPayload struct {
	GameID        string `json:"gameId"`
	PlayerCount   int    `json:"playerCount"`
	PlayersNeeded int    `json:"playersNeeded"`
	Message       string `json:"message"`
}

// PlayerConnPayload reports a seat's connection lifecycle transition:
// newly seated, dropped, or reconnected.
type PlayerConnPayload struct {
	Position int `json:"position"`
}

func encode(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Package transport is the realtime session layer: authenticated
// WebSocket connections, JOIN_GAME seat routing, reconnection rebind,
// and per-recipient redacted broadcast (§4.8, §6). Grounded on
// n0remac-robot-webrtc's websocket/websocket.go Hub/Client/
// ReadPump/WritePump split, adapted from its generic room-broadcast
// model (a `Room` string plus an optional `Id` target) to Buck
// Euchre's specific routing: a connection belongs to exactly one game
// and one seat position, and the server computes a different redacted
// view per seat rather than broadcasting one payload room-wide.
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"

	"github.com/buckeuchre/buckeuchre/internal/apperr"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
	"github.com/buckeuchre/buckeuchre/pkg/auth"
	"github.com/buckeuchre/buckeuchre/pkg/lobby"
	"github.com/buckeuchre/buckeuchre/pkg/table"
)

// Upgrader matches the teacher's permissive-by-default, restricted-in-
// production CheckOrigin, generalized to read the allowed origin from
// config rather than a hardcoded hostname.
func newUpgrader(allowedOrigin string, production bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if !production {
				return true
			}
			return allowedOrigin != "" && origin == allowedOrigin
		},
	}
}

// Client is one live connection, seated at exactly one (gameID,
// position) once JOIN_GAME succeeds.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	hub *Hub
	log slog.Logger

	mu       sync.Mutex
	gameID   string
	playerID string
	position int
	sub      *table.Subscriber
}

// Hub owns the registry and every live client, routing inbound actions
// to the right table and AI-analysis broadcasts to every client seated
// at the originating game.
type Hub struct {
	registry *lobby.Registry
	upgrader websocket.Upgrader
	auth     auth.Validator
	log      slog.Logger

	mu      sync.Mutex
	clients map[*Client]bool
	byGame  map[string]map[*Client]bool

	boundMu sync.Mutex
	bound   map[string]bool // gameIDs whose table's OnTableEvent is already wired
}

// NewHub builds a Hub bound to registry. validator authenticates every
// connection's bearer token at handshake time (§4.5); pass auth.Static{}
// only in a dev/test context, never in production.
func NewHub(registry *lobby.Registry, validator auth.Validator, backend *logging.Backend, allowedOrigin string, production bool) *Hub {
	return &Hub{
		registry: registry,
		upgrader: newUpgrader(allowedOrigin, production),
		auth:     validator,
		log:      backend.Logger(logging.SubsystemTransport),
		clients:  make(map[*Client]bool),
		byGame:   make(map[string]map[*Client]bool),
		bound:    make(map[string]bool),
	}
}

// bearerToken extracts the handshake token from either the standard
// "Authorization: Bearer <token>" header or a "?token=" query
// parameter, the latter since browser WebSocket clients cannot set
// arbitrary request headers on the upgrade request itself.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP validates the handshake's bearer token, then upgrades the
// connection and starts its read/write pumps. A missing or invalid
// token is rejected before the upgrade, per §4.5 ("failure closes the
// connection with an authentication error").
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID, err := h.auth.Validate(bearerToken(r))
	if err != nil {
		h.log.Warnf("websocket handshake rejected: %v", err)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade failed: %v", err)
		return
	}
	c := &Client{conn: conn, send: make(chan []byte, 64), hub: h, log: h.log, position: -1, playerID: playerID}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()
	c.readPump()
}

func (h *Hub) registerToGame(gameID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byGame[gameID] == nil {
		h.byGame[gameID] = make(map[*Client]bool)
	}
	h.byGame[gameID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	if c.gameID != "" {
		if m, ok := h.byGame[c.gameID]; ok {
			delete(m, c)
			if len(m) == 0 {
				delete(h.byGame, c.gameID)
			}
		}
	}
	h.mu.Unlock()
	close(c.send)
}

// BroadcastAIAnalysis fans an AI_ANALYSIS_UPDATE out to every client
// currently seated at gameID (§6.4) — used by pkg/aiexec after each
// completed search.
func (h *Hub) BroadcastAIAnalysis(gameID string, position int, stats []ActionStat) {
	raw, err := encode(EventAIAnalysis, AIAnalysisPayload{GameID: gameID, Position: position, Actions: stats})
	if err != nil {
		h.log.Errorf("encode AI_ANALYSIS_UPDATE: %v", err)
		return
	}
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.byGame[gameID]))
	for c := range h.byGame[gameID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		c.enqueue(raw)
	}
}

// bindTableEvents wires t.OnTableEvent to fan out over this game's
// clients, exactly once per game — called from every JOIN_GAME so it
// is live regardless of which caller (human join, AI seat) first
// touches a freshly created table.
func (h *Hub) bindTableEvents(gameID string, t *table.Table) {
	h.boundMu.Lock()
	defer h.boundMu.Unlock()
	if h.bound[gameID] {
		return
	}
	h.bound[gameID] = true
	t.OnTableEvent = func(ev any) {
		h.broadcastTableEvent(gameID, ev)
	}
}

// broadcastTableEvent translates one pkg/table ancillary event into its
// wire Envelope and fans it out to every client currently seated at
// gameID (§6.2).
func (h *Hub) broadcastTableEvent(gameID string, ev any) {
	var raw []byte
	var err error
	switch e := ev.(type) {
	case table.TrickCompleteEvent:
		raw, err = encode(EventTrickComplete, TrickCompletePayload{
			TrickNumber:        e.TrickNumber,
			WinnerPosition:     e.WinnerPosition,
			NextPlayerPosition: e.NextPlayerPosition,
		})
	case table.RoundCompleteEvent:
		raw, err = encode(EventRoundComplete, RoundCompletePayload{Deltas: e.Deltas, NewRound: e.NewRound})
	case table.AllPassedEvent:
		raw, err = encode(EventAllPlayersPassed, AllPlayersPassedPayload{NewRound: e.NewRound})
	case table.GameWaitingEvent:
		raw, err = encode(EventGameWaiting, GameWaitingPayload{
			GameID:        e.GameID,
			PlayerCount:   e.PlayerCount,
			PlayersNeeded: e.PlayersNeeded,
			Message:       e.Message,
		})
	case table.PlayerConnectedEvent:
		raw, err = encode(EventPlayerConnected, PlayerConnPayload{Position: e.Position})
	case table.PlayerDisconnectedEvent:
		raw, err = encode(EventPlayerDisconnected, PlayerConnPayload{Position: e.Position})
	case table.PlayerReconnectedEvent:
		raw, err = encode(EventPlayerReconnected, PlayerConnPayload{Position: e.Position})
	default:
		return
	}
	if err != nil {
		h.log.Errorf("encode table event: %v", err)
		return
	}

	h.mu.Lock()
	targets := make([]*Client, 0, len(h.byGame[gameID]))
	for c := range h.byGame[gameID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		c.enqueue(raw)
	}
}

func (c *Client) enqueue(raw []byte) {
	select {
	case c.send <- raw:
	default:
		c.log.Warnf("client send buffer full, dropping message")
	}
}

func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		gameID, position, sub := c.gameID, c.position, c.sub
		c.mu.Unlock()
		if sub != nil {
			if t, ok := c.hub.registry.GetTable(gameID); ok {
				t.Unsubscribe(subscriberKey(gameID, position))
				t.NotifyConn(position, false)
			}
		}
		c.hub.unregister(c)
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError(apperr.Validation("MALFORMED_MESSAGE", "could not parse message envelope"))
			continue
		}
		c.handle(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(env Envelope) {
	switch env.Type {
	case EventJoinGame:
		c.handleJoin(env.Payload)
	case EventPlaceBid:
		c.handleAction(env.Payload, decodeBid)
	case EventDeclareTrump:
		c.handleAction(env.Payload, decodeTrump)
	case EventFoldDecision:
		c.handleAction(env.Payload, decodeFold)
	case EventPlayCard:
		c.handleAction(env.Payload, decodeCard)
	case EventStartRound:
		c.handleStartRound()
	case EventRequestState:
		c.handleRequestState()
	case EventLeaveGame:
		c.handleLeave()
	default:
		c.sendError(apperr.Validation("UNKNOWN_EVENT", "unrecognized message type"))
	}
}

func (c *Client) handleJoin(payload json.RawMessage) {
	var p JoinGamePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendError(apperr.Validation("MALFORMED_MESSAGE", "bad JOIN_GAME payload"))
		return
	}
	// p.PlayerID is never trusted: the connection's identity was
	// already derived from its bearer token in ServeHTTP and cannot be
	// overridden by a client-supplied field (§4.5 "may not be spoofed").
	c.mu.Lock()
	playerID := c.playerID
	c.mu.Unlock()

	t, position, err := c.hub.registry.JoinGame(p.GameID, playerID, p.DisplayName)
	if err != nil {
		c.sendAppErr(err)
		return
	}
	c.hub.bindTableEvents(p.GameID, t)

	c.mu.Lock()
	c.gameID = p.GameID
	c.position = position
	c.mu.Unlock()

	c.hub.registerToGame(p.GameID, c)
	t.NotifyConn(position, true)

	sub := t.Subscribe(subscriberKey(p.GameID, position), position)
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	go c.pumpSnapshots(sub)

	raw, _ := encode(EventJoined, JoinedPayload{GameID: p.GameID, Position: position})
	c.enqueue(raw)
}

// pumpSnapshots forwards every redacted Snapshot the client's table
// subscription emits onto its outbound send channel, re-encoding into
// the wire Envelope shape.
func (c *Client) pumpSnapshots(sub *table.Subscriber) {
	for snap := range sub.C {
		raw, err := encode(EventStateUpdate, StateUpdatePayload{Snapshot: snap})
		if err != nil {
			c.log.Errorf("encode STATE_UPDATE: %v", err)
			continue
		}
		c.enqueue(raw)
	}
}

func (c *Client) handleAction(payload json.RawMessage, decode func(json.RawMessage, int) (euchre.Action, error)) {
	c.mu.Lock()
	gameID, position := c.gameID, c.position
	c.mu.Unlock()
	if gameID == "" {
		c.sendError(apperr.Authorization("NOT_JOINED", "join a game before sending actions"))
		return
	}
	action, err := decode(payload, position)
	if err != nil {
		c.sendError(apperr.Validation("MALFORMED_MESSAGE", err.Error()))
		return
	}
	t, ok := c.hub.registry.GetTable(gameID)
	if !ok {
		c.sendError(apperr.NotFound("GAME_NOT_FOUND", "game no longer exists"))
		return
	}
	if err := t.Submit(position, action); err != nil {
		c.sendAppErr(err)
	}
}

// handleStartRound lets any seated player cut the ROUND_OVER pacing
// pause short, per §4.4's START_NEXT_ROUND action.
func (c *Client) handleStartRound() {
	gameID, _ := c.joined()
	if gameID == "" {
		c.sendError(apperr.Authorization("NOT_JOINED", "join a game before sending actions"))
		return
	}
	t, ok := c.hub.registry.GetTable(gameID)
	if !ok {
		c.sendError(apperr.NotFound("GAME_NOT_FOUND", "game no longer exists"))
		return
	}
	if err := t.StartNextRound(); err != nil {
		c.sendAppErr(err)
	}
}

// handleRequestState resends the caller's current redacted snapshot,
// letting a client reconcile after a suspected missed update (§4.4).
func (c *Client) handleRequestState() {
	gameID, position := c.joined()
	if gameID == "" {
		c.sendError(apperr.Authorization("NOT_JOINED", "join a game before requesting state"))
		return
	}
	t, ok := c.hub.registry.GetTable(gameID)
	if !ok {
		c.sendError(apperr.NotFound("GAME_NOT_FOUND", "game no longer exists"))
		return
	}
	raw, err := encode(EventStateUpdate, StateUpdatePayload{Snapshot: t.Snapshot(position)})
	if err != nil {
		c.log.Errorf("encode STATE_UPDATE: %v", err)
		return
	}
	c.enqueue(raw)
}

// handleLeave releases the caller's seat reservation in the lobby and
// tears down its table subscription.
func (c *Client) handleLeave() {
	c.mu.Lock()
	gameID, playerID, position, sub := c.gameID, c.playerID, c.position, c.sub
	c.mu.Unlock()
	if gameID == "" {
		c.sendError(apperr.Authorization("NOT_JOINED", "join a game before leaving it"))
		return
	}
	if err := c.hub.registry.LeaveGame(gameID, playerID); err != nil {
		c.sendAppErr(err)
		return
	}
	if sub != nil {
		if t, ok := c.hub.registry.GetTable(gameID); ok {
			t.Unsubscribe(subscriberKey(gameID, position))
		}
	}
	c.hub.mu.Lock()
	if m, ok := c.hub.byGame[gameID]; ok {
		delete(m, c)
	}
	c.hub.mu.Unlock()

	c.mu.Lock()
	c.gameID, c.playerID, c.position, c.sub = "", "", -1, nil
	c.mu.Unlock()

	raw, _ := encode(EventLeft, JoinedPayload{GameID: gameID, Position: position})
	c.enqueue(raw)
}

func (c *Client) joined() (gameID string, position int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID, c.position
}

func decodeBid(payload json.RawMessage, position int) (euchre.Action, error) {
	var p PlaceBidPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return euchre.BidAction{Position: position, Amount: p.Amount}, nil
}

func decodeTrump(payload json.RawMessage, position int) (euchre.Action, error) {
	var p DeclareTrumpPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return euchre.TrumpAction{Position: position, Suit: p.Suit}, nil
}

func decodeFold(payload json.RawMessage, position int) (euchre.Action, error) {
	var p FoldDecisionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return euchre.FoldDecisionAction{Position: position, Fold: p.Fold}, nil
}

func decodeCard(payload json.RawMessage, position int) (euchre.Action, error) {
	var p PlayCardPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return euchre.CardAction{Position: position, Card: p.Card}, nil
}

func (c *Client) sendError(e *apperr.Error) {
	raw, _ := encode(EventError, ErrorPayload{Code: e.Code, Message: e.Message})
	c.enqueue(raw)
}

func (c *Client) sendAppErr(err error) {
	var ae *apperr.Error
	if apperr.As(err, &ae) {
		c.sendError(ae)
		return
	}
	c.sendError(apperr.Validation("UNKNOWN_ERROR", err.Error()))
}

func subscriberKey(gameID string, position int) string {
	return gameID + ":" + string(rune('0'+position))
}

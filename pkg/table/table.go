// Package table implements the game instance actor (§4, §5): one
// goroutine per in-progress game, serializing every player action,
// connection event, and self-scheduled timer through a single inbox so
// the rule engine in internal/euchre is only ever called from one
// goroutine at a time. Grounded on the teacher's EventProcessor/
// eventWorker queue-plus-workers pattern (pkg/server/events.go), here
// narrowed from an N-worker pool to exactly one worker per table since
// the rule engine itself is not safe for concurrent mutation.
package table

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/buckeuchre/buckeuchre/internal/apperr"
	"github.com/buckeuchre/buckeuchre/internal/cards"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
	"github.com/buckeuchre/buckeuchre/pkg/statemachine"
	"github.com/buckeuchre/buckeuchre/pkg/utils"
)

// Pacing timers (§4.5): how long a completed trick stays visible before
// the actor auto-advances, how long ROUND_OVER lingers before dealing
// the next round, and how long a disconnected seat is held open before
// being treated as abandoned.
const (
	TrickRevealDelay    = 3 * time.Second
	RoundAutoStartDelay = 8 * time.Second
	DisconnectGrace     = 30 * time.Second
)

// ConnState is a per-seat connection lifecycle, driven by the generic
// Rob-Pike state machine the teacher already carries in pkg/statemachine,
// repurposed here from poker's at-table/in-hand states to Buck Euchre's
// connected/disconnected/abandoned seat lifecycle.
type ConnState struct {
	Position  int
	Connected bool
	GraceEnds time.Time
}

func connectedState(s *ConnState, cb func(string, statemachine.StateEvent)) statemachine.StateFn[ConnState] {
	if cb != nil {
		cb("CONNECTED", statemachine.StateEntered)
	}
	if !s.Connected {
		return disconnectedState
	}
	return connectedState
}

func disconnectedState(s *ConnState, cb func(string, statemachine.StateEvent)) statemachine.StateFn[ConnState] {
	if cb != nil {
		cb("DISCONNECTED", statemachine.StateEntered)
	}
	if s.Connected {
		return connectedState
	}
	if !s.GraceEnds.IsZero() && time.Now().After(s.GraceEnds) {
		return abandonedState
	}
	return disconnectedState
}

func abandonedState(s *ConnState, cb func(string, statemachine.StateEvent)) statemachine.StateFn[ConnState] {
	if cb != nil {
		cb("ABANDONED", statemachine.StateEntered)
	}
	return abandonedState
}

// Snapshot is the redacted, broadcast-ready view of a GameState for one
// recipient position: every seat's own hand is visible only to
// itself, and everyone else's hand is replaced by a card count (§6.2
// "server-side redaction").
type Snapshot struct {
	GameID        string
	Phase         euchre.Phase
	Round         int
	Version       uint64
	DealerSeat    int
	Seats         [euchre.NumSeats]SeatView
	TurnUp        *cards.Card
	ClubsTurnedUp bool
	TrumpSuit     *cards.Suit
	CurrentBidder int
	CurrentPlayer int
	CurrentTrick  []euchre.TrickPlay
	Winner        *int
}

// SeatView is one seat's redacted view within a Snapshot.
type SeatView struct {
	ID           string
	DisplayName  string
	Occupied     bool
	Connected    bool
	SeatType     euchre.SeatType
	Score        int
	TricksTaken  int
	Folded       bool
	FoldDecision euchre.FoldDecision
	HandSize     int
	Hand         []cards.Card // only populated for the recipient's own seat
}

// BuildSnapshot redacts gs for the given viewer position ( -1 for a
// spectator, who sees no hand at all).
func BuildSnapshot(gs *euchre.GameState, viewer int) Snapshot {
	snap := Snapshot{
		GameID:        gs.ID,
		Phase:         gs.Phase,
		Round:         gs.Round,
		Version:       gs.Version,
		DealerSeat:    gs.DealerPosition,
		ClubsTurnedUp: gs.ClubsTurnedUp,
		CurrentBidder: gs.CurrentBidder,
		CurrentPlayer: gs.CurrentPlayerPosition,
		CurrentTrick:  append([]euchre.TrickPlay(nil), gs.CurrentTrick.Plays...),
		Winner:        gs.Winner,
	}
	if gs.TrumpDeclared {
		t := gs.TrumpSuit
		snap.TrumpSuit = &t
	}
	if gs.Phase == euchre.PhaseBidding || gs.Phase == euchre.PhaseDeclaringTrump {
		tu := gs.TurnUp
		snap.TurnUp = &tu
	}
	for i, p := range gs.Players {
		sv := SeatView{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			Occupied:     p.Occupied,
			Connected:    p.Connected,
			SeatType:     p.SeatType,
			Score:        p.Score,
			TricksTaken:  p.TricksTaken,
			Folded:       p.Folded,
			FoldDecision: p.FoldDecision,
			HandSize:     len(p.Hand),
		}
		if i == viewer {
			sv.Hand = append([]cards.Card(nil), p.Hand...)
		}
		snap.Seats[i] = sv
	}
	return snap
}

// ActionRequest is a player action submitted to a table's inbox.
type ActionRequest struct {
	Position int
	Action   euchre.Action
	Reply    chan error
}

// ConnEvent is a connect/disconnect notification submitted to a table's
// inbox, driving that seat's ConnState machine.
type ConnEvent struct {
	Position  int
	Connected bool
}

type timerFire struct {
	version uint64 // the Version the timer was scheduled against; stale fires are dropped
	kind    string
}

// seatRequest occupies a free position with a new player identity, the
// single-writer-safe path to GameState.Seat (which can auto-start the
// round on the fourth seat, so it must run on the actor goroutine like
// every other mutation).
type seatRequest struct {
	Position    int
	ID          string
	DisplayName string
	SeatType    euchre.SeatType
	Reply       chan error
}

// startRoundRequest cuts the round-over pacing timer short, letting any
// seated player advance the game immediately instead of waiting out
// RoundAutoStartDelay.
type startRoundRequest struct {
	Reply chan error
}

// Subscriber receives a Snapshot every time the table's state changes,
// already redacted for Position (Position -1 subscribes as a spectator).
type Subscriber struct {
	Position int
	C        chan Snapshot
}

// Table is one game instance actor: a goroutine owning a *euchre.GameState
// exclusively, serialized through its inbox.
type Table struct {
	ID string

	log slog.Logger

	mu    sync.Mutex // guards state and subs only for the synchronous Snapshot() reader
	state *euchre.GameState
	subs  map[string]*Subscriber
	conns [euchre.NumSeats]*statemachine.StateMachine[ConnState]

	inbox    chan any
	timer    *time.Timer
	timerGen uint64

	now func() int64

	// OnPhaseChanged fires after every accepted mutation (actions, seat
	// fills, trick advances, round starts), whether or not Phase or the
	// seat on the move changed, letting
	// pkg/aiexec learn it may need to trigger an AI decision without
	// polling (§4.6).
	OnPhaseChanged func(gs *euchre.GameState)

	// OnGameOver fires once, the moment FinishRound lands the state in
	// PhaseGameOver, letting a statistics sink record the terminal
	// result without this package importing pkg/stats.
	OnGameOver func(gs *euchre.GameState)

	// OnTableEvent fires for every ancillary broadcast event this table
	// produces (trick/round completion, redeals, seat lifecycle), each
	// as one of the concrete event types below. pkg/transport binds
	// this once per table to translate and fan each event out over its
	// websocket clients (§6.2); nil is fine for a table nobody watches
	// (e.g. ISMCTS rollout tables).
	OnTableEvent func(ev any)
}

// TrickCompleteEvent reports one trick's outcome, emitted the instant a
// trick completes (terminal or not) so a subscriber can start preparing
// the next seat's turn during the reveal pause.
type TrickCompleteEvent struct {
	GameID             string
	TrickNumber        int
	WinnerPosition     int
	NextPlayerPosition int
}

// RoundCompleteEvent reports the per-seat score deltas applied when a
// round finishes. NewRound is nil when the game ended on this round.
type RoundCompleteEvent struct {
	GameID   string
	Deltas   [euchre.NumSeats]int
	NewRound *int
}

// AllPassedEvent reports a bidding round where every seat passed,
// forcing a redeal.
type AllPassedEvent struct {
	GameID   string
	NewRound int
}

// GameWaitingEvent reports that a game still has open seats.
type GameWaitingEvent struct {
	GameID        string
	PlayerCount   int
	PlayersNeeded int
	Message       string
}

// PlayerConnectedEvent reports a seat being newly occupied.
type PlayerConnectedEvent struct {
	GameID      string
	Position    int
	DisplayName string
}

// PlayerDisconnectedEvent reports a previously connected seat dropping
// its connection.
type PlayerDisconnectedEvent struct {
	GameID   string
	Position int
}

// PlayerReconnectedEvent reports a previously disconnected (but still
// seated) player reconnecting.
type PlayerReconnectedEvent struct {
	GameID   string
	Position int
}

// New builds a table actor around an already-constructed GameState and
// starts its inbox-processing goroutine. nowFn lets tests and the AI
// simulator supply something other than time.Now in millis.
func New(id string, gs *euchre.GameState, backend *logging.Backend, nowFn func() int64) *Table {
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().UnixMilli() }
	}
	t := &Table{
		ID:    id,
		log:   backend.Logger(logging.SubsystemTable),
		state: gs,
		subs:  make(map[string]*Subscriber),
		inbox: make(chan any, 64),
		now:   nowFn,
	}
	for i := range t.conns {
		cs := &ConnState{Position: i, Connected: gs.Players[i].Connected}
		t.conns[i] = statemachine.NewStateMachine(cs, statemachine.StateFn[ConnState](connectedState))
		if !cs.Connected {
			t.conns[i] = statemachine.NewStateMachine(cs, statemachine.StateFn[ConnState](disconnectedState))
		}
	}
	go t.run(context.Background())
	return t
}

// Submit enqueues a player action and blocks until it has been applied
// (or rejected) by the actor goroutine.
func (t *Table) Submit(position int, action euchre.Action) error {
	reply := make(chan error, 1)
	t.inbox <- ActionRequest{Position: position, Action: action, Reply: reply}
	return <-reply
}

// NotifyConn enqueues a connection-state change for position.
func (t *Table) NotifyConn(position int, connected bool) {
	t.inbox <- ConnEvent{Position: position, Connected: connected}
}

// SeatPlayer enqueues a seat occupation and blocks until it has been
// applied by the actor goroutine (so the caller can rely on the
// position being genuinely filled, or the round genuinely dealt, by
// the time this returns).
func (t *Table) SeatPlayer(position int, id, displayName string, seatType euchre.SeatType) error {
	reply := make(chan error, 1)
	t.inbox <- seatRequest{Position: position, ID: id, DisplayName: displayName, SeatType: seatType, Reply: reply}
	return <-reply
}

// StartNextRound asks the actor to end the ROUND_OVER pacing pause
// immediately and deal the next round (or end the game), rather than
// waiting out RoundAutoStartDelay. A no-op outside ROUND_OVER.
func (t *Table) StartNextRound() error {
	reply := make(chan error, 1)
	t.inbox <- startRoundRequest{Reply: reply}
	return <-reply
}

// Subscribe registers a per-recipient channel that receives a redacted
// Snapshot after every accepted mutation, plus once immediately with
// the current state.
func (t *Table) Subscribe(subscriberID string, position int) *Subscriber {
	sub := &Subscriber{Position: position, C: make(chan Snapshot, 8)}
	t.mu.Lock()
	t.subs[subscriberID] = sub
	gs := t.state
	t.mu.Unlock()
	sub.C <- BuildSnapshot(gs, position)
	return sub
}

// Unsubscribe removes a previously registered subscriber.
func (t *Table) Unsubscribe(subscriberID string) {
	t.mu.Lock()
	delete(t.subs, subscriberID)
	t.mu.Unlock()
}

// Snapshot returns the current redacted state for position without
// going through the inbox — safe because GameState is only replaced
// wholesale (never partially mutated) from outside the actor goroutine,
// and the actor goroutine only ever mutates through Apply/FinishRound
// while holding no lock other than the inbox serialization itself; t.mu
// here only protects the pointer read/subs map, matching the "never
// touch GameState except from the single actor goroutine" invariant.
func (t *Table) Snapshot(position int) Snapshot {
	t.mu.Lock()
	gs := t.state
	t.mu.Unlock()
	return BuildSnapshot(gs, position)
}

func (t *Table) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.inbox:
			t.handle(msg)
		}
	}
}

func (t *Table) handle(msg any) {
	switch m := msg.(type) {
	case ActionRequest:
		roundBefore := t.state.Round
		tricksBefore := len(t.state.Tricks)
		err := euchre.Apply(t.state, m.Action, t.now())
		if m.Reply != nil {
			m.Reply <- err
		}
		if err == nil {
			t.emitActionEvents(m.Action, roundBefore, tricksBefore)
			t.onMutated()
		}
	case ConnEvent:
		t.handleConn(m)
	case seatRequest:
		wasDealt := t.state.Phase != euchre.PhaseWaitingForPlayers
		t.state.Seat(m.Position, m.ID, m.DisplayName, m.SeatType, t.now())
		if !wasDealt && t.state.Phase != euchre.PhaseWaitingForPlayers {
			for _, p := range t.state.Players {
				t.log.Debugf("table %s: dealt %s to %s", t.ID, utils.FormatHand(p.Hand), p.ID)
			}
		}
		if m.Reply != nil {
			m.Reply <- nil
		}
		if t.OnTableEvent != nil {
			t.OnTableEvent(PlayerConnectedEvent{GameID: t.ID, Position: m.Position, DisplayName: m.DisplayName})
			if seated := t.state.SeatedCount(); seated < euchre.NumSeats {
				t.OnTableEvent(GameWaitingEvent{
					GameID:        t.ID,
					PlayerCount:   seated,
					PlayersNeeded: euchre.NumSeats - seated,
					Message:       "waiting for more players",
				})
			}
		}
		t.onMutated()
	case startRoundRequest:
		t.finishRoundIfOver()
		if m.Reply != nil {
			m.Reply <- nil
		}
	case timerFire:
		if m.version != t.state.Version {
			return // stale: state moved on since this timer was scheduled
		}
		t.handleTimer(m.kind)
	}
}

func (t *Table) handleConn(m ConnEvent) {
	wasConnected := t.state.Players[m.Position].Connected

	cs := t.conns[m.Position]
	cur := cs.GetCurrentState()
	state := &ConnState{Position: m.Position, Connected: m.Connected}
	if !m.Connected {
		state.GraceEnds = time.Now().Add(DisconnectGrace)
	}
	sm := statemachine.NewStateMachine(state, cur)
	sm.Dispatch(nil)
	t.conns[m.Position] = sm

	t.state.Players[m.Position].Connected = m.Connected
	if !m.Connected {
		t.scheduleTimer(DisconnectGrace, "disconnect_grace")
	}

	if t.OnTableEvent != nil {
		switch {
		case m.Connected && !wasConnected:
			t.OnTableEvent(PlayerReconnectedEvent{GameID: t.ID, Position: m.Position})
		case !m.Connected && wasConnected:
			t.OnTableEvent(PlayerDisconnectedEvent{GameID: t.ID, Position: m.Position})
		}
	}
	t.broadcast()
}

// emitActionEvents inspects the accepted action's effect and fires the
// matching ancillary event (§6.2): a trick completing (terminal or
// not), or an all-pass bidding round forcing a redeal. Round completion
// is handled separately in finishRoundIfOver, since it isn't driven by
// a player action.
func (t *Table) emitActionEvents(action euchre.Action, roundBefore, tricksBefore int) {
	if t.OnTableEvent == nil {
		return
	}
	switch a := action.(type) {
	case euchre.BidAction:
		if a.Amount == euchre.Pass && t.state.Round != roundBefore {
			t.OnTableEvent(AllPassedEvent{GameID: t.ID, NewRound: t.state.Round})
		}
	case euchre.CardAction:
		if len(t.state.Tricks) != tricksBefore {
			trick := t.state.Tricks[len(t.state.Tricks)-1]
			t.OnTableEvent(TrickCompleteEvent{
				GameID:             t.ID,
				TrickNumber:        trick.Number,
				WinnerPosition:     *trick.Winner,
				NextPlayerPosition: *trick.Winner,
			})
		}
	}
}

// handleTimer runs the pacing side effects in §4.5: a completed trick
// opens the next trick once TrickRevealDelay elapses; ROUND_OVER
// auto-deals the next round via FinishRound; a disconnect grace expiry
// only logs and rebroadcasts the state, since an AI takeover policy is out of this
// package's scope (left to pkg/aiexec, which observes Connected via
// Snapshot).
func (t *Table) handleTimer(kind string) {
	switch kind {
	case "trick_reveal":
		t.advanceTrickIfPending()
	case "round_auto_start":
		t.finishRoundIfOver()
	case "disconnect_grace":
		t.log.Infof("table %s: disconnect grace expired", t.ID)
		t.broadcast()
	}
}

// advanceTrickIfPending opens the next trick once the reveal pause for
// a completed trick has elapsed. A no-op if the timer fired stale (the
// trick was already advanced by some other path).
func (t *Table) advanceTrickIfPending() {
	if !t.state.TrickPendingReveal {
		return
	}
	euchre.AdvanceTrick(t.state, t.now())
	t.onMutated()
}

// finishRoundIfOver deals the next round (or ends the game) if the
// state is currently paused in ROUND_OVER; shared by the pacing timer
// and by a player-requested early START_NEXT_ROUND cut-short.
func (t *Table) finishRoundIfOver() {
	if t.state.Phase != euchre.PhaseRoundOver {
		return
	}
	deltas := euchre.RoundDeltas(t.state)
	euchre.FinishRound(t.state, t.now())
	if t.OnTableEvent != nil {
		ev := RoundCompleteEvent{GameID: t.ID, Deltas: deltas}
		if t.state.Phase != euchre.PhaseGameOver {
			r := t.state.Round
			ev.NewRound = &r
		}
		t.OnTableEvent(ev)
	}
	t.onMutated()
	if t.state.Phase == euchre.PhaseGameOver && t.OnGameOver != nil {
		t.OnGameOver(t.state)
	}
}

// onMutated runs after every accepted action: fires OnPhaseChanged,
// broadcasts the new state, and arms whichever pacing timer the new
// phase needs.
func (t *Table) onMutated() {
	if t.OnPhaseChanged != nil {
		t.OnPhaseChanged(t.state)
	}
	t.broadcast()
	if t.state.TrickPendingReveal {
		t.scheduleTimer(TrickRevealDelay, "trick_reveal")
	}
	if t.state.Phase == euchre.PhaseRoundOver {
		t.scheduleTimer(RoundAutoStartDelay, "round_auto_start")
	}
}

func (t *Table) scheduleTimer(d time.Duration, kind string) {
	version := t.state.Version
	time.AfterFunc(d, func() {
		t.inbox <- timerFire{version: version, kind: kind}
	})
}

func (t *Table) broadcast() {
	t.mu.Lock()
	gs := t.state
	subs := make([]*Subscriber, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		snap := BuildSnapshot(gs, s.Position)
		select {
		case s.C <- snap:
		default:
			// Slow subscriber: drop rather than block the single-writer
			// actor goroutine; the transport layer's reconnect rebind
			// (§4.8) resends a fresh Snapshot on resubscribe.
			t.log.Warnf("table %s: dropping snapshot for a slow subscriber", t.ID)
		}
	}
}

// ErrTableFull mirrors the teacher's own sentinel-error style for
// capacity checks used one layer up, in pkg/lobby.
var ErrTableFull = apperr.Conflict("TABLE_FULL", "table is already seated")

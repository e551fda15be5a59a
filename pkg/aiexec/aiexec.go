// Package aiexec is the AI executor and trigger (§4.7, §4.8): it
// observes a table's phase/current-actor transitions, launches an
// ISMCTS search whenever it is an AI seat's turn to decide, submits the
// resulting action back to the table, and publishes the search's
// statistics as an AI_ANALYSIS_UPDATE broadcast. Grounded on the
// teacher's SetOnNewHandStartedCallback wiring style
// (pkg/server/lobby.go: a callback attached to the game that fires a
// typed event through the same publisher every other event goes
// through) generalized from a one-shot "new hand" hook into a
// persistent per-table subscriber that fires on every mutation.
package aiexec

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
	"github.com/buckeuchre/buckeuchre/pkg/ismcts"
	"github.com/buckeuchre/buckeuchre/pkg/table"
)

// AnalysisPublisher is the one-method seam pkg/transport implements so
// this package never imports the transport layer directly.
type AnalysisPublisher interface {
	BroadcastAIAnalysis(gameID string, position int, stats []ActionStat)
}

// ActionStat mirrors transport.ActionStat's wire shape without this
// package depending on pkg/transport for it.
type ActionStat struct {
	ActionKey     string
	Visits        int
	AverageValue  float64
	StandardError float64
	CI95Low       float64
	CI95High      float64
}

// CharacterFor resolves the Character an AI seat plays with. The
// default, used when no override exists, is ismcts.Balanced().
type CharacterFor func(gameID string, position int) ismcts.Character

// Executor watches one or more tables and drives their AI seats.
type Executor struct {
	publisher AnalysisPublisher
	character CharacterFor
	opts      ismcts.SearchOptions
	log       slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc // gameID -> cancel for its in-flight search, if any
}

// New builds an Executor. opts configures every search this executor
// runs (iteration budget, determinization attempts, worker count, seed;
// a zero Seed is replaced by a time-based seed for each search);
// character, if nil, defaults every AI seat to ismcts.Balanced().
func New(publisher AnalysisPublisher, character CharacterFor, opts ismcts.SearchOptions, backend *logging.Backend) *Executor {
	if character == nil {
		character = func(string, int) ismcts.Character { return ismcts.Balanced() }
	}
	return &Executor{
		publisher: publisher,
		character: character,
		opts:      opts,
		log:       backend.Logger(logging.SubsystemAI),
		running:   make(map[string]context.CancelFunc),
	}
}

// Attach wires this executor into t as its OnPhaseChanged hook, so
// every accepted mutation on t is considered for an AI trigger.
func (e *Executor) Attach(gameID string, t *table.Table) {
	t.OnPhaseChanged = func(gs *euchre.GameState) {
		e.onMutated(gameID, t, gs)
	}
}

// onMutated checks whether the seat now on the move is AI-controlled
// and, if so, (re)launches a search for it — cancelling any search
// already in flight for this game, since the state it was searching
// has just changed underneath it.
func (e *Executor) onMutated(gameID string, t *table.Table, gs *euchre.GameState) {
	e.mu.Lock()
	if cancel, ok := e.running[gameID]; ok {
		cancel()
		delete(e.running, gameID)
	}
	e.mu.Unlock()

	pos, ok := actingSeat(gs)
	if !ok {
		return
	}
	if gs.Players[pos].SeatType != euchre.SeatAI {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.running[gameID] = cancel
	e.mu.Unlock()

	go e.runSearch(ctx, gameID, t, gs, pos)
}

// actingSeat reports which seat's decision is pending in gs's current
// phase, and false for phases with no actor to trigger (ROUND_OVER,
// GAME_OVER, WAITING_FOR_PLAYERS) and while a completed trick is being
// revealed.
func actingSeat(gs *euchre.GameState) (int, bool) {
	switch gs.Phase {
	case euchre.PhaseBidding:
		return gs.CurrentBidder, true
	case euchre.PhaseDeclaringTrump:
		return gs.WinningBidderPosition, true
	case euchre.PhaseFoldingDecision:
		legal := euchre.LegalActions(gs)
		if len(legal) == 0 {
			return 0, false
		}
		return legal[0].ActorPosition(), true
	case euchre.PhasePlaying:
		if gs.TrickPendingReveal {
			return 0, false // a completed trick is on display; no play is accepted yet
		}
		return gs.CurrentPlayerPosition, true
	default:
		return 0, false
	}
}

func (e *Executor) runSearch(ctx context.Context, gameID string, t *table.Table, gs *euchre.GameState, pos int) {
	opts := e.opts
	opts.Character = e.character(gameID, pos)
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	result := ismcts.Search(gs.Clone(), pos, opts)
	if ctx.Err() != nil {
		return // state moved on while this search was running; decision is stale
	}
	if result.Best == nil {
		e.log.Warnf("game %s seat %d: search returned no action", gameID, pos)
		return
	}

	if err := t.Submit(pos, result.Best); err != nil {
		e.log.Errorf("game %s seat %d: AI action rejected: %v", gameID, pos, err)
	}

	if e.publisher != nil {
		e.publisher.BroadcastAIAnalysis(gameID, pos, toWireStats(result.Stats))
	}
}

func toWireStats(stats []ismcts.ActionStat) []ActionStat {
	out := make([]ActionStat, 0, len(stats))
	for _, s := range stats {
		key := ""
		if s.Action != nil {
			key = s.Action.Key()
		}
		out = append(out, ActionStat{
			ActionKey:     key,
			Visits:        s.Visits,
			AverageValue:  s.AverageValue,
			StandardError: s.StandardError,
			CI95Low:       s.CI95Low,
			CI95High:      s.CI95High,
		})
	}
	return out
}

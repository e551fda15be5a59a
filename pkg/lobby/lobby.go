// Package lobby is the game registry: create/join/leave/seat-AI/list,
// narrowed from the teacher's CreateTable/JoinTable/LeaveTable/GetTables
// surface in pkg/server/lobby.go. The buy-in/DCR-balance machinery that
// surface is built around has no place in Buck Euchre (no stakes), so
// every method here keeps the teacher's seat-bookkeeping and
// host-transfer-on-leave logic and drops the balance checks entirely.
package lobby

import (
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/buckeuchre/buckeuchre/internal/apperr"
	"github.com/buckeuchre/buckeuchre/internal/dealsource"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
	"github.com/buckeuchre/buckeuchre/pkg/table"
)

// Summary is the list-view of one game, the Buck Euchre analogue of the
// teacher's pokerrpc.Table list entry.
type Summary struct {
	ID             string
	HostID         string
	CurrentPlayers int
	Phase          euchre.Phase
}

// entry is the registry's internal bookkeeping for one game: the table
// actor plus the seat roster needed for host-transfer-on-leave, since
// Table itself has no notion of a "host".
type entry struct {
	t      *table.Table
	hostID string
	seats  [euchre.NumSeats]string // player/subscriber id per seat, "" if empty
}

// Registry is the process-wide collection of live game tables. Exactly
// one Registry is constructed per server process and injected into the
// transport layer and cmd/buckeuchresrv's wiring — never a package-level
// singleton, matching the "no global mutable state" design note.
type Registry struct {
	mu      sync.RWMutex
	games   map[string]*entry
	backend *logging.Backend
	log     slog.Logger
	nowFn   func() int64
	deal    func() dealsource.DealSource
}

// New builds an empty Registry whose games draw from a fresh
// cryptographic shuffle each, the production default.
func New(backend *logging.Backend) *Registry {
	return &Registry{
		games:   make(map[string]*entry),
		backend: backend,
		log:     backend.Logger(logging.SubsystemLobby),
		nowFn:   func() int64 { return time.Now().UnixMilli() },
		deal:    func() dealsource.DealSource { return dealsource.NewCrypto() },
	}
}

// NewWithTestHooks builds a Registry whose every game shares the
// returned *dealsource.Pinned, letting the §6.1 dev-only
// `/api/test/deck` and `/api/test/dealer` endpoints pin deals across
// every game the server creates. Never used in production (§5's "test
// hooks are process-global and guarded... enabled only by a feature
// flag and disabled in production").
func NewWithTestHooks(backend *logging.Backend) (*Registry, *dealsource.Pinned) {
	pinned := dealsource.NewPinned()
	r := New(backend)
	r.deal = func() dealsource.DealSource { return pinned }
	return r, pinned
}

// CreateGame starts a new game with hostID seated at position 0 and
// returns the table actor (its ID field holds the new game id), matching the teacher's
// CreateTable-then-AddNewUser sequencing (pkg/server/lobby.go).
func (r *Registry) CreateGame(hostID, displayName string) (*table.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprintf("game_%d", len(r.games)+1) + "_" + fmt.Sprintf("%d", r.nowFn())
	gs := euchre.New(id, r.deal(), r.nowFn())
	gs.Seat(0, hostID, displayName, euchre.SeatHuman, r.nowFn())

	t := table.New(id, gs, r.backend, r.nowFn)
	e := &entry{t: t, hostID: hostID}
	e.seats[0] = hostID
	r.games[id] = e

	r.log.Infof("created game %s, host %s", id, hostID)
	return t, nil
}

// JoinGame seats playerID at the next free position of an existing
// game, or reports that it is already seated (reconnection path, per
// the teacher's "existingUser" branch in JoinTable).
func (r *Registry) JoinGame(gameID, playerID, displayName string) (*table.Table, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.games[gameID]
	if !ok {
		return nil, 0, apperr.NotFound("GAME_NOT_FOUND", "no such game")
	}

	for i, occupant := range e.seats {
		if occupant == playerID {
			return e.t, i, nil // reconnection: already seated
		}
	}

	seat := -1
	for i, occupant := range e.seats {
		if occupant == "" {
			seat = i
			break
		}
	}
	if seat < 0 {
		return nil, 0, table.ErrTableFull
	}

	if err := e.t.SeatPlayer(seat, playerID, displayName, euchre.SeatHuman); err != nil {
		return nil, 0, err
	}
	e.seats[seat] = playerID
	return e.t, seat, nil
}

// SeatAI occupies the next free seat with an AI player, used by the
// lobby UI's "fill with bots" affordance and by tests that want a full
// table without four humans. beforeSeat, if non-nil, runs with the
// chosen seat position once it's known but before the player actually
// occupies it — letting the caller register per-seat AI configuration
// (e.g. a difficulty character) before SeatPlayer can trigger the
// fourth-seat auto-deal and an immediate AI decision for that seat.
func (r *Registry) SeatAI(gameID, aiID, displayName string, beforeSeat func(position int)) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.games[gameID]
	if !ok {
		return 0, apperr.NotFound("GAME_NOT_FOUND", "no such game")
	}
	seat := -1
	for i, occupant := range e.seats {
		if occupant == "" {
			seat = i
			break
		}
	}
	if seat < 0 {
		return 0, table.ErrTableFull
	}
	if beforeSeat != nil {
		beforeSeat(seat)
	}
	if err := e.t.SeatPlayer(seat, aiID, displayName, euchre.SeatAI); err != nil {
		return 0, err
	}
	e.seats[seat] = aiID
	return seat, nil
}

// LeaveGame removes playerID's seat reservation. If the leaving player
// was the host and other seats remain occupied, host is transferred to
// the lowest-numbered remaining seat, mirroring the teacher's
// host-transfer-on-leave branch in LeaveTable. If no seats remain, the
// game is torn down from the registry entirely.
func (r *Registry) LeaveGame(gameID, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.games[gameID]
	if !ok {
		return apperr.NotFound("GAME_NOT_FOUND", "no such game")
	}

	found := false
	for i, occupant := range e.seats {
		if occupant == playerID {
			e.seats[i] = ""
			found = true
			break
		}
	}
	if !found {
		return apperr.NotFound("NOT_SEATED", "player is not seated at this game")
	}

	if e.hostID != playerID {
		return nil
	}

	for _, occupant := range e.seats {
		if occupant != "" {
			e.hostID = occupant
			r.log.Infof("game %s: host transferred to %s", gameID, occupant)
			return nil
		}
	}

	delete(r.games, gameID)
	r.log.Infof("game %s: host left with no remaining seats, game closed", gameID)
	return nil
}

// GetGames lists every live game's summary view.
func (r *Registry) GetGames() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.games))
	for id, e := range r.games {
		snap := e.t.Snapshot(-1)
		occupied := 0
		for _, s := range e.seats {
			if s != "" {
				occupied++
			}
		}
		out = append(out, Summary{ID: id, HostID: e.hostID, CurrentPlayers: occupied, Phase: snap.Phase})
	}
	return out
}

// GetPlayerCurrentGame returns the game id playerID is currently seated
// at, or "" if none.
func (r *Registry) GetPlayerCurrentGame(playerID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, e := range r.games {
		for _, occupant := range e.seats {
			if occupant == playerID {
				return id
			}
		}
	}
	return ""
}

// GetTable returns the table actor for gameID, for callers (the
// transport layer, the AI executor) that already validated the id.
func (r *Registry) GetTable(gameID string) (*table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.games[gameID]
	if !ok {
		return nil, false
	}
	return e.t, true
}

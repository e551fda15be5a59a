// Package stats is the pluggable statistics sink (§6.4): it persists
// only a finished game's final result (seated player ids, final
// scores, the winning seat) and nothing about in-progress state, per
// the explicit Non-goal that no in-progress game survives a process
// restart. Grounded on pkg/server/internal/db/db.go's sqlite-backed
// DB wrapper and pkg/server/db.go's Database interface/NewDatabase
// constructor, narrowed from the teacher's full table/player-state
// persistence and balance ledger down to a single result table. The
// async, per-game-mutexed write in pkg/server/helpers.go's
// saveTableStateAsync is reused here as RecordAsync.
package stats

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/decred/slog"

	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
)

// Result is one finished game's terminal record.
type Result struct {
	GameID      string
	PlayerIDs   [euchre.NumSeats]string
	FinalScores [euchre.NumSeats]int
	WinnerSeat  int
	FinishedAt  int64 // unix millis, caller-supplied (never read internally)
}

// Sink is the result-recording interface that DB and Noop both
// implement, so a no-op or in-memory fake can stand in for the sqlite
// store. Neither pkg/table nor pkg/aiexec imports it: a table reports a
// finished game through its OnGameOver hook.
type Sink interface {
	RecordResult(r Result) error
	Close() error
}

// DB is the sqlite-backed Sink, grounded on internal/db.DB.
type DB struct {
	conn *sql.DB
	log  slog.Logger

	mu       sync.Mutex
	gameMu   map[string]*sync.Mutex
	wg       sync.WaitGroup
}

// Open creates (or reuses) the sqlite database at path, ensuring its
// parent directory and schema exist, matching NewDatabase's
// MkdirAll-then-open sequencing.
func Open(path string, backend *logging.Backend) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create stats directory: %w", err)
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open stats database: %w", err)
	}
	if err := createSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{
		conn:   conn,
		log:    backend.Logger(logging.SubsystemStats),
		gameMu: make(map[string]*sync.Mutex),
	}, nil
}

func createSchema(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS game_results (
			game_id TEXT PRIMARY KEY,
			player_ids TEXT NOT NULL,
			final_scores TEXT NOT NULL,
			winner_seat INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)
	`)
	return err
}

// RecordResult persists r, overwriting any prior row for the same
// game id (a game finishes exactly once, but tests may re-run it).
func (d *DB) RecordResult(r Result) error {
	playerIDs, err := json.Marshal(r.PlayerIDs)
	if err != nil {
		return err
	}
	scores, err := json.Marshal(r.FinalScores)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
		INSERT INTO game_results (game_id, player_ids, final_scores, winner_seat, finished_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			player_ids = excluded.player_ids,
			final_scores = excluded.final_scores,
			winner_seat = excluded.winner_seat,
			finished_at = excluded.finished_at
	`, r.GameID, string(playerIDs), string(scores), r.WinnerSeat, r.FinishedAt)
	return err
}

// RecordAsync persists r off the caller's goroutine, serialized per
// game id via a per-game mutex so that two result writes for the same
// game (should that ever happen) cannot race each other, mirroring
// saveTableStateAsync's per-table mutex map plus WaitGroup.
func (d *DB) RecordAsync(r Result) {
	d.mu.Lock()
	m, ok := d.gameMu[r.GameID]
	if !ok {
		m = &sync.Mutex{}
		d.gameMu[r.GameID] = m
	}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		m.Lock()
		defer m.Unlock()
		if err := d.RecordResult(r); err != nil {
			d.log.Errorf("record result for game %s: %v", r.GameID, err)
		}
	}()
}

// Wait blocks until every in-flight RecordAsync write has completed;
// used by test teardown and graceful shutdown.
func (d *DB) Wait() {
	d.wg.Wait()
}

// Close waits for in-flight writes and closes the underlying
// connection.
func (d *DB) Close() error {
	d.wg.Wait()
	return d.conn.Close()
}

// ResultFromState projects a GameState that has just reached
// PhaseGameOver into a Result, reading only the fields §6.4 names as
// persistable (player ids, final scores, winner) and nothing about
// in-progress hands or tricks.
func ResultFromState(gameID string, gs *euchre.GameState, nowMs int64) Result {
	var r Result
	r.GameID = gameID
	r.FinishedAt = nowMs
	for i, p := range gs.Players {
		r.PlayerIDs[i] = p.ID
		r.FinalScores[i] = p.Score
	}
	if gs.Winner != nil {
		r.WinnerSeat = *gs.Winner
	}
	return r
}

// Noop discards every result, used where a process runs without a
// configured statistics sink.
type Noop struct{}

func (Noop) RecordResult(Result) error { return nil }
func (Noop) Close() error              { return nil }

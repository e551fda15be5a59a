package stats

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
)

func testBackend(t *testing.T) *logging.Backend {
	t.Helper()
	b, err := logging.NewBackend(logging.Config{DebugLevel: "off"})
	require.NoError(t, err)
	return b
}

func TestRecordResultStoresRow(t *testing.T) {
	backend := testBackend(t)
	path := filepath.Join(t.TempDir(), "stats.db")
	db, err := Open(path, backend)
	require.NoError(t, err)
	defer db.Close()

	r := Result{
		GameID:      "game_1",
		PlayerIDs:   [euchre.NumSeats]string{"alice", "bob", "carol", "dave"},
		FinalScores: [euchre.NumSeats]int{-2, 5, 10, 3},
		WinnerSeat:  0,
		FinishedAt:  1000,
	}
	require.NoError(t, db.RecordResult(r))

	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM game_results WHERE game_id = ?`, r.GameID).Scan(&count))
	require.Equal(t, 1, count)
}

func TestRecordResultUpsertsSameGame(t *testing.T) {
	backend := testBackend(t)
	path := filepath.Join(t.TempDir(), "stats.db")
	db, err := Open(path, backend)
	require.NoError(t, err)
	defer db.Close()

	base := Result{GameID: "game_1", WinnerSeat: 1, FinishedAt: 1000}
	require.NoError(t, db.RecordResult(base))
	base.WinnerSeat = 2
	base.FinishedAt = 2000
	require.NoError(t, db.RecordResult(base))

	var winner int
	require.NoError(t, db.conn.QueryRow(`SELECT winner_seat FROM game_results WHERE game_id = ?`, base.GameID).Scan(&winner))
	require.Equal(t, 2, winner)
}

func TestRecordAsyncWaitsOnClose(t *testing.T) {
	backend := testBackend(t)
	path := filepath.Join(t.TempDir(), "stats.db")
	db, err := Open(path, backend)
	require.NoError(t, err)

	db.RecordAsync(Result{GameID: "game_async", WinnerSeat: 3, FinishedAt: 1})
	require.NoError(t, db.Close())

	reopened, err := Open(path, backend)
	require.NoError(t, err)
	defer reopened.Close()

	var count int
	require.NoError(t, reopened.conn.QueryRow(`SELECT COUNT(*) FROM game_results WHERE game_id = ?`, "game_async").Scan(&count))
	require.Equal(t, 1, count)
}

func TestResultFromStateReadsTerminalFields(t *testing.T) {
	gs := &euchre.GameState{ID: "game_x"}
	for i := 0; i < euchre.NumSeats; i++ {
		gs.Players[i].ID = seatName(i)
		gs.Players[i].Score = i
	}
	winner := 2
	gs.Winner = &winner

	r := ResultFromState("game_x", gs, 5000)
	require.Equal(t, "game_x", r.GameID)
	require.Equal(t, int64(5000), r.FinishedAt)
	require.Equal(t, 2, r.WinnerSeat)
	for i := 0; i < euchre.NumSeats; i++ {
		require.Equal(t, seatName(i), r.PlayerIDs[i])
		require.Equal(t, i, r.FinalScores[i])
	}
}

func seatName(i int) string {
	return string(rune('a' + i))
}

func TestNoopDiscardsResults(t *testing.T) {
	var n Noop
	require.NoError(t, n.RecordResult(Result{GameID: "whatever"}))
	require.NoError(t, n.Close())
}

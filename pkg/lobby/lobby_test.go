package lobby

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
	"github.com/buckeuchre/buckeuchre/pkg/table"
)

func testBackend(t *testing.T) *logging.Backend {
	t.Helper()
	b, err := logging.NewBackend(logging.Config{DebugLevel: "off"})
	require.NoError(t, err)
	return b
}

func TestCreateGameSeatsHostAtPositionZero(t *testing.T) {
	r := New(testBackend(t))
	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)

	snap := tbl.Snapshot(0)
	require.Equal(t, "host1", snap.Seats[0].ID)
	require.Equal(t, 1, len(r.GetGames()))
	require.Equal(t, 1, r.GetGames()[0].CurrentPlayers)
}

func TestNewWithTestHooksPinsDealerForCreatedGame(t *testing.T) {
	r, pinned := NewWithTestHooks(testBackend(t))
	dealer := 2
	pinned.SetDealer(&dealer)

	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)
	require.Equal(t, dealer, tbl.Snapshot(-1).DealerSeat)
}

func TestJoinGameSeatsNextFreePosition(t *testing.T) {
	r := New(testBackend(t))
	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)

	_, pos, err := r.JoinGame(tbl.ID, "p2", "P2")
	require.NoError(t, err)
	require.Equal(t, 1, pos)

	snap := tbl.Snapshot(-1)
	require.Equal(t, "p2", snap.Seats[1].ID)
}

func TestJoinGameReconnectsToSameSeat(t *testing.T) {
	r := New(testBackend(t))
	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)

	_, firstPos, err := r.JoinGame(tbl.ID, "p2", "P2")
	require.NoError(t, err)

	_, secondPos, err := r.JoinGame(tbl.ID, "p2", "P2")
	require.NoError(t, err)
	require.Equal(t, firstPos, secondPos)
}

func TestJoinGameUnknownGameReturnsNotFound(t *testing.T) {
	r := New(testBackend(t))
	_, _, err := r.JoinGame("no-such-game", "p1", "P1")
	require.Error(t, err)
}

func TestJoinGameFullTableReturnsErrTableFull(t *testing.T) {
	r := New(testBackend(t))
	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)

	for i, id := range []string{"p2", "p3", "p4"} {
		_, pos, err := r.JoinGame(tbl.ID, id, id)
		require.NoError(t, err)
		require.Equal(t, i+1, pos)
	}

	_, _, err = r.JoinGame(tbl.ID, "p5", "P5")
	require.ErrorIs(t, err, table.ErrTableFull)
}

func TestSeatAIFillsNextFreePosition(t *testing.T) {
	r := New(testBackend(t))
	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)

	pos, err := r.SeatAI(tbl.ID, "bot1", "Bot", nil)
	require.NoError(t, err)
	require.Equal(t, 1, pos)

	snap := tbl.Snapshot(-1)
	require.Equal(t, euchre.SeatAI, snap.Seats[1].SeatType)
}

func TestLeaveGameTransfersHost(t *testing.T) {
	r := New(testBackend(t))
	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)
	_, _, err = r.JoinGame(tbl.ID, "p2", "P2")
	require.NoError(t, err)

	require.NoError(t, r.LeaveGame(tbl.ID, "host1"))

	games := r.GetGames()
	require.Equal(t, 1, len(games))
	require.Equal(t, "p2", games[0].HostID)
}

func TestLeaveGameClosesEmptyGame(t *testing.T) {
	r := New(testBackend(t))
	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)

	require.NoError(t, r.LeaveGame(tbl.ID, "host1"))
	require.Empty(t, r.GetGames())
	_, ok := r.GetTable(tbl.ID)
	require.False(t, ok)
}

func TestGetPlayerCurrentGame(t *testing.T) {
	r := New(testBackend(t))
	tbl, err := r.CreateGame("host1", "Host")
	require.NoError(t, err)

	require.Equal(t, tbl.ID, r.GetPlayerCurrentGame("host1"))
	require.Equal(t, "", r.GetPlayerCurrentGame("nobody"))
}

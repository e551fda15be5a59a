package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buckeuchre/buckeuchre/internal/cards"
	"github.com/buckeuchre/buckeuchre/internal/dealsource"
	"github.com/buckeuchre/buckeuchre/internal/euchre"
	"github.com/buckeuchre/buckeuchre/internal/logging"
)

func testBackend(t *testing.T) *logging.Backend {
	t.Helper()
	b, err := logging.NewBackend(logging.Config{DebugLevel: "off"})
	require.NoError(t, err)
	return b
}

// biddingDeal is a Pinned deal source whose first deck is the canonical
// order reversed, which puts the queen of spades at the turn-up index
// (20): a clubs turn-up would skip bidding. The dealer and any later
// deck come from its crypto fallback.
func biddingDeal(t *testing.T) *dealsource.Pinned {
	t.Helper()
	deck := cards.FullDeck()
	for i, j := 0, len(deck)-1; i < j; i, j = i+1, j-1 {
		deck[i], deck[j] = deck[j], deck[i]
	}
	deal := dealsource.NewPinned()
	require.NoError(t, deal.SetNextDeck(deck))
	return deal
}

// fourSeatedGame builds a fully-seated GameState ready for bidding,
// dealt from biddingDeal.
func fourSeatedGame(t *testing.T, nowFn func() int64) *euchre.GameState {
	t.Helper()
	gs := euchre.New("g1", biddingDeal(t), nowFn())
	for i := 0; i < euchre.NumSeats; i++ {
		gs.Seat(i, seatName(i), seatName(i), euchre.SeatHuman, nowFn())
	}
	return gs
}

func seatName(i int) string {
	return []string{"p0", "p1", "p2", "p3"}[i]
}

func newTestTable(t *testing.T) *Table {
	t.Helper()
	now := int64(1000)
	nowFn := func() int64 { return now }
	gs := fourSeatedGame(t, nowFn)
	return New("g1", gs, testBackend(t), nowFn)
}

func TestSubmitAppliesLegalAction(t *testing.T) {
	tbl := newTestTable(t)
	snap := tbl.Snapshot(0)
	require.Equal(t, euchre.PhaseBidding, snap.Phase)

	bidder := snap.CurrentBidder
	err := tbl.Submit(bidder, euchre.BidAction{Position: bidder, Amount: euchre.Pass})
	require.NoError(t, err)

	snap = tbl.Snapshot(0)
	require.NotEqual(t, bidder, snap.CurrentBidder)
}

func TestSubmitRejectsWrongActor(t *testing.T) {
	tbl := newTestTable(t)
	snap := tbl.Snapshot(0)
	wrong := (snap.CurrentBidder + 1) % euchre.NumSeats

	err := tbl.Submit(wrong, euchre.BidAction{Position: wrong, Amount: euchre.Pass})
	require.Error(t, err)
}

func TestBuildSnapshotRedactsOtherHands(t *testing.T) {
	tbl := newTestTable(t)
	own := tbl.Snapshot(0)
	other := tbl.Snapshot(1)

	require.NotEmpty(t, own.Seats[0].Hand)
	require.Empty(t, other.Seats[0].Hand)
	require.Equal(t, len(own.Seats[0].Hand), other.Seats[0].HandSize)
}

func TestSubscribeDeliversImmediateSnapshot(t *testing.T) {
	tbl := newTestTable(t)
	sub := tbl.Subscribe("sub1", 0)
	select {
	case snap := <-sub.C:
		require.Equal(t, "g1", snap.GameID)
	case <-time.After(time.Second):
		t.Fatal("expected an immediate snapshot on subscribe")
	}
}

func TestStartNextRoundCutsPacingPauseShort(t *testing.T) {
	now := int64(1000)
	nowFn := func() int64 { return now }
	gs := fourSeatedGame(t, nowFn)
	gs.Phase = euchre.PhaseRoundOver
	tbl := New("g1", gs, testBackend(t), nowFn)

	require.NoError(t, tbl.StartNextRound())
	snap := tbl.Snapshot(0)
	require.NotEqual(t, euchre.PhaseRoundOver, snap.Phase)
}

func TestStartNextRoundIsNoopOutsideRoundOver(t *testing.T) {
	tbl := newTestTable(t)
	before := tbl.Snapshot(0)

	require.NoError(t, tbl.StartNextRound())
	after := tbl.Snapshot(0)
	require.Equal(t, before.Phase, after.Phase)
}

func TestSubscribeReceivesUpdateAfterSubmit(t *testing.T) {
	tbl := newTestTable(t)
	sub := tbl.Subscribe("sub1", 0)
	<-sub.C // drain the immediate snapshot

	snap := tbl.Snapshot(0)
	bidder := snap.CurrentBidder
	require.NoError(t, tbl.Submit(bidder, euchre.BidAction{Position: bidder, Amount: euchre.Pass}))

	select {
	case updated := <-sub.C:
		require.NotEqual(t, bidder, updated.CurrentBidder)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot update after a successful submit")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	tbl := newTestTable(t)
	sub := tbl.Subscribe("sub1", 0)
	<-sub.C
	tbl.Unsubscribe("sub1")

	snap := tbl.Snapshot(0)
	bidder := snap.CurrentBidder
	require.NoError(t, tbl.Submit(bidder, euchre.BidAction{Position: bidder, Amount: euchre.Pass}))

	select {
	case <-sub.C:
		t.Fatal("unsubscribed channel should not receive further snapshots")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifyConnUpdatesSnapshot(t *testing.T) {
	tbl := newTestTable(t)
	tbl.NotifyConn(0, false)

	require.Eventually(t, func() bool {
		return !tbl.Snapshot(0).Seats[0].Connected
	}, time.Second, 10*time.Millisecond)

	tbl.NotifyConn(0, true)
	require.Eventually(t, func() bool {
		return tbl.Snapshot(0).Seats[0].Connected
	}, time.Second, 10*time.Millisecond)
}

func TestOnPhaseChangedFiresOnSubmit(t *testing.T) {
	tbl := newTestTable(t)
	fired := make(chan euchre.Phase, 1)
	tbl.OnPhaseChanged = func(gs *euchre.GameState) {
		fired <- gs.Phase
	}

	snap := tbl.Snapshot(0)
	bidder := snap.CurrentBidder
	require.NoError(t, tbl.Submit(bidder, euchre.BidAction{Position: bidder, Amount: euchre.Pass}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected OnPhaseChanged to fire after a successful submit")
	}
}

func TestSeatPlayerOnPartiallySeatedGameDealsOnFourth(t *testing.T) {
	now := int64(1000)
	nowFn := func() int64 { return now }
	gs := euchre.New("g2", biddingDeal(t), nowFn())
	for i := 0; i < euchre.NumSeats-1; i++ {
		gs.Seat(i, seatName(i), seatName(i), euchre.SeatHuman, nowFn())
	}
	tbl := New("g2", gs, testBackend(t), nowFn)

	require.Equal(t, euchre.PhaseWaitingForPlayers, tbl.Snapshot(-1).Phase)

	require.NoError(t, tbl.SeatPlayer(euchre.NumSeats-1, "p3", "p3", euchre.SeatHuman))
	require.Equal(t, euchre.PhaseBidding, tbl.Snapshot(-1).Phase)
}

package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Acvariii/ARPi2-sub004/internal/game"
	"github.com/Acvariii/ARPi2-sub004/internal/protocol"
)

func decodeSnapshot(t *testing.T, data []byte) protocol.Snapshot {
	t.Helper()
	var msg protocol.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "snapshot", msg.Type)
	return msg.Data
}

func TestBroadcast_PersonalizedSnapshots(t *testing.T) {
	e := newTestEnv(t)
	a := e.connect(t, "alice")
	b := e.connect(t, "bob")

	e.s.broadcastOnce()

	require.Equal(t, 1, a.sentCount())
	require.Equal(t, 1, b.sentCount())

	snapA := decodeSnapshot(t, a.lastSent())
	snapB := decodeSnapshot(t, b.lastSent())
	assert.Equal(t, 0, snapA.You.Seat)
	assert.Equal(t, "alice", snapA.You.Name)
	assert.Equal(t, 1, snapB.You.Seat)
	assert.Equal(t, "bob", snapB.You.Name)
	require.NotNil(t, snapA.Lobby)
	assert.Len(t, snapA.Lobby.Games, 2)
}

func TestBroadcast_DeadConnectionRemovedAfterPass(t *testing.T) {
	e := newTestEnv(t)
	a := e.connect(t, "alice")
	b := e.connect(t, "bob")
	b.setFail(true)

	e.s.broadcastOnce()

	assert.Equal(t, 1, e.s.reg.Len())
	assert.True(t, b.isClosed())
	assert.Equal(t, 0, e.s.reg.SeatOf(a.id))

	// bob's seat is free again for the next controller
	c := e.connect(t, "carol")
	assert.Equal(t, 1, e.s.reg.SeatOf(c.id))
}

func TestBroadcast_BuildFailureSkipsSendOnly(t *testing.T) {
	e := newTestEnv(t)
	e.duel.prepare = func(g *fakeGame) { g.panicViewSeat = 1 }
	conns := e.readyPlayers(t, 2)
	e.send(t, conns[0].id, `{"type":"vote_game","key":"duel"}`)
	e.send(t, conns[1].id, `{"type":"vote_game","key":"duel"}`)
	require.Equal(t, "duel", e.s.State())

	e.s.broadcastOnce()

	assert.Equal(t, 1, conns[0].sentCount(), "healthy seat still gets its snapshot")
	assert.Zero(t, conns[1].sentCount(), "broken view skips the send")
	assert.Equal(t, 2, e.s.reg.Len(), "a build failure is not a dead connection")
}

func TestBroadcast_GameSnapshotCarriesSeatView(t *testing.T) {
	e := newTestEnv(t)
	conns := e.readyPlayers(t, 2)
	e.send(t, conns[0].id, `{"type":"vote_game","key":"duel"}`)
	e.send(t, conns[1].id, `{"type":"vote_game","key":"duel"}`)

	e.s.broadcastOnce()

	snap := decodeSnapshot(t, conns[1].lastSent())
	assert.Equal(t, "duel", snap.State)
	require.NotNil(t, snap.Game)
	assert.Equal(t, "duel", snap.Game.Key)
	assert.Equal(t, string(game.PhasePlaying), snap.Game.Phase)
	assert.JSONEq(t, `{"seat":1}`, string(snap.Game.View))
	require.Len(t, snap.Game.Actions, 1)
	assert.Nil(t, snap.Lobby)
}

func TestRunBroadcast_StopsOnCancel(t *testing.T) {
	e := newTestEnv(t)
	a := e.connect(t, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.s.RunBroadcast(ctx)
		close(done)
	}()

	e.clock.BlockUntil(1)
	e.clock.Advance(e.s.cfg.BroadcastInterval)
	require.Eventually(t, func() bool { return a.sentCount() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast loop did not stop on cancel")
	}
}

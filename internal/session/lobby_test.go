package session

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Acvariii/ARPi2-sub004/internal/game"
)

type lobbyFixture struct {
	reg   *Registry
	lobby *Lobby
}

func newLobbyFixture(t *testing.T, minReady int) *lobbyFixture {
	t.Helper()
	games := game.NewRegistry()
	factory := func() game.Game { return &fakeGame{phase: game.PhasePlayerSelect, panicViewSeat: -1} }
	for _, key := range []string{"duel", "trivia", "cluedo"} {
		require.NoError(t, games.Register(game.Descriptor{Key: key, Name: key, MinPlayers: 2, MaxPlayers: 8}, factory))
	}
	reg := NewRegistry(NewSeatNames())
	return &lobbyFixture{reg: reg, lobby: NewLobby(reg, games, minReady)}
}

// seatReady seats n connections and marks them all ready.
func (f *lobbyFixture) seatReady(t *testing.T, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		conn := newFakeConn()
		f.reg.Accept(conn)
		f.reg.SetName(conn.id, fmt.Sprintf("p%d", i))
		require.NoError(t, f.reg.RequestSeat(conn.id, i))
		require.True(t, f.reg.SetReady(conn.id, true))
		ids[i] = conn.id
	}
	return ids
}

func TestLobby_AllReady(t *testing.T) {
	f := newLobbyFixture(t, 2)
	assert.False(t, f.lobby.AllReady(), "empty lobby is never ready")

	f.seatReady(t, 1)
	assert.False(t, f.lobby.AllReady(), "below the minimum")

	second := newFakeConn()
	f.reg.Accept(second)
	require.NoError(t, f.reg.RequestSeat(second.id, 1))
	require.True(t, f.reg.SetReady(second.id, true))
	assert.True(t, f.lobby.AllReady())

	extra := newFakeConn()
	f.reg.Accept(extra)
	require.NoError(t, f.reg.RequestSeat(extra.id, 5))
	assert.False(t, f.lobby.AllReady(), "one unready seat blocks")
}

func TestLobby_CastVotePreconditions(t *testing.T) {
	f := newLobbyFixture(t, 1)
	ids := f.seatReady(t, 2)

	assert.False(t, f.lobby.CastVote(ids[0], "nope"), "unknown key")

	unseated := newFakeConn()
	f.reg.Accept(unseated)
	assert.False(t, f.lobby.CastVote(unseated.id, "duel"), "unseated voter")

	f.reg.SetReady(ids[1], false)
	assert.False(t, f.lobby.CastVote(ids[1], "duel"), "unready voter")
	assert.False(t, f.lobby.CastVote(ids[0], "duel"), "not everyone is ready")

	f.reg.SetReady(ids[1], true)
	assert.True(t, f.lobby.CastVote(ids[0], "duel"))
}

func TestLobby_TallyMajorities(t *testing.T) {
	cases := []struct {
		name    string
		votes   []string // one entry per seated ready player, "" = no vote yet
		wantKey string
		wantOK  bool
	}{
		{name: "single early vote waits", votes: []string{"duel", ""}, wantOK: false},
		{name: "1-1 split waits", votes: []string{"duel", "trivia"}, wantOK: false},
		{name: "2-0 commits", votes: []string{"duel", "duel"}, wantKey: "duel", wantOK: true},
		{name: "3-1-1 commits", votes: []string{"duel", "duel", "duel", "trivia", "cluedo"}, wantKey: "duel", wantOK: true},
		{name: "2-2-1 waits", votes: []string{"duel", "duel", "trivia", "trivia", "cluedo"}, wantOK: false},
		{name: "2 of 3 commits", votes: []string{"duel", "duel", "trivia"}, wantKey: "duel", wantOK: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLobbyFixture(t, 1)
			ids := f.seatReady(t, len(tc.votes))
			for i, vote := range tc.votes {
				if vote != "" {
					require.True(t, f.reg.SetVote(ids[i], vote))
				}
			}
			key, ok := f.lobby.Tally()
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantKey, key)
			}
		})
	}
}

func TestLobby_UnreadyVoteHiddenNotForgotten(t *testing.T) {
	f := newLobbyFixture(t, 1)
	ids := f.seatReady(t, 3)
	require.True(t, f.lobby.CastVote(ids[0], "duel"))
	require.True(t, f.lobby.CastVote(ids[1], "trivia"))

	f.reg.SetReady(ids[1], false)
	counts := f.lobby.VoteCounts()
	assert.Equal(t, 1, counts["duel"])
	assert.Zero(t, counts["trivia"], "unready voter's vote is filtered at read")

	st, _ := f.reg.State(ids[1])
	assert.Equal(t, "trivia", st.Vote, "the stored vote is untouched")

	f.reg.SetReady(ids[1], true)
	counts = f.lobby.VoteCounts()
	assert.Equal(t, 1, counts["trivia"])
}

func TestLobby_LeaverShrinksElectorate(t *testing.T) {
	f := newLobbyFixture(t, 1)
	ids := f.seatReady(t, 3)
	require.True(t, f.lobby.CastVote(ids[0], "duel"))
	require.True(t, f.lobby.CastVote(ids[1], "trivia"))

	_, ok := f.lobby.Tally()
	require.False(t, ok, "1-1 among 3 eligible waits")

	// the trivia voter leaves; duel now has 1 of 1 eligible... but p2 is
	// still seated and ready, so it is 1 of 2 and still waits
	f.reg.ReleaseSeat(ids[1])
	_, ok = f.lobby.Tally()
	require.False(t, ok)

	// p2 leaves as well, leaving a 1-0 electorate of one
	f.reg.ReleaseSeat(ids[2])
	key, ok := f.lobby.Tally()
	require.True(t, ok)
	assert.Equal(t, "duel", key)
}

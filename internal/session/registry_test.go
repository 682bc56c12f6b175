package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptConn(t *testing.T, reg *Registry) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	reg.Accept(conn)
	return conn
}

func TestRegistry_RequestSeat(t *testing.T) {
	reg := NewRegistry(NewSeatNames())
	a := acceptConn(t, reg)
	b := acceptConn(t, reg)

	require.NoError(t, reg.RequestSeat(a.id, 3))
	assert.Equal(t, 3, reg.SeatOf(a.id))

	assert.ErrorIs(t, reg.RequestSeat(b.id, 3), ErrSeatTaken)
	assert.NoError(t, reg.RequestSeat(a.id, 3), "re-requesting an owned seat is fine")

	assert.ErrorIs(t, reg.RequestSeat(a.id, -1), ErrSeatOutOfRange)
	assert.ErrorIs(t, reg.RequestSeat(a.id, NumSeats), ErrSeatOutOfRange)

	stray := newFakeConn()
	assert.ErrorIs(t, reg.RequestSeat(stray.id, 0), ErrUnknownConn)
}

func TestRegistry_SeatMoveFreesPreviousSeat(t *testing.T) {
	reg := NewRegistry(NewSeatNames())
	a := acceptConn(t, reg)
	b := acceptConn(t, reg)

	require.NoError(t, reg.RequestSeat(a.id, 2))
	require.NoError(t, reg.RequestSeat(a.id, 5))
	assert.Equal(t, 5, reg.SeatOf(a.id))

	require.NoError(t, reg.RequestSeat(b.id, 2), "vacated seat is claimable")
	assert.Equal(t, []int{2, 5}, reg.SeatedSeats())
}

func TestRegistry_AutoAssignLowestFree(t *testing.T) {
	reg := NewRegistry(NewSeatNames())
	a := acceptConn(t, reg)
	b := acceptConn(t, reg)
	c := acceptConn(t, reg)

	require.NoError(t, reg.RequestSeat(a.id, 0))
	require.NoError(t, reg.RequestSeat(b.id, 2))

	seat, err := reg.AutoAssign(c.id)
	require.NoError(t, err)
	assert.Equal(t, 1, seat)

	// already-seated connections keep their seat
	seat, err = reg.AutoAssign(a.id)
	require.NoError(t, err)
	assert.Equal(t, 0, seat)
}

func TestRegistry_AutoAssignFullHouse(t *testing.T) {
	reg := NewRegistry(NewSeatNames())
	for i := 0; i < NumSeats; i++ {
		conn := acceptConn(t, reg)
		seat, err := reg.AutoAssign(conn.id)
		require.NoError(t, err)
		assert.Equal(t, i, seat)
	}
	extra := acceptConn(t, reg)
	_, err := reg.AutoAssign(extra.id)
	assert.ErrorIs(t, err, ErrNoFreeSeat)
}

func TestRegistry_ReconnectByName(t *testing.T) {
	names := NewSeatNames()
	reg := NewRegistry(names)

	a := acceptConn(t, reg)
	reg.SetName(a.id, "Alice")
	require.NoError(t, reg.RequestSeat(a.id, 2))

	_, _, ok := reg.Remove(a.id)
	require.True(t, ok)
	assert.Empty(t, reg.SeatedSeats())

	back := acceptConn(t, reg)
	seat, ok := reg.ReconnectByName(back.id, "aLiCe")
	require.True(t, ok)
	assert.Equal(t, 2, seat)

	// an occupied historical seat cannot be reclaimed
	_, _, ok = reg.Remove(back.id)
	require.True(t, ok)
	usurper := acceptConn(t, reg)
	require.NoError(t, reg.RequestSeat(usurper.id, 2))
	again := acceptConn(t, reg)
	_, ok = reg.ReconnectByName(again.id, "alice")
	assert.False(t, ok)

	// unknown names find nothing
	_, ok = reg.ReconnectByName(again.id, "nobody")
	assert.False(t, ok)
}

func TestRegistry_ReleaseSeatClearsSeatFlags(t *testing.T) {
	names := NewSeatNames()
	reg := NewRegistry(names)
	a := acceptConn(t, reg)
	reg.SetName(a.id, "alice")
	require.NoError(t, reg.RequestSeat(a.id, 1))
	reg.SetReady(a.id, true)
	reg.SetVote(a.id, "duel")
	reg.SetEndGame(a.id, true)
	reg.ToggleMuteVote(a.id)

	seat, ok := reg.ReleaseSeat(a.id)
	require.True(t, ok)
	assert.Equal(t, 1, seat)

	st, ok := reg.State(a.id)
	require.True(t, ok)
	assert.Equal(t, -1, st.Seat)
	assert.False(t, st.Ready)
	assert.Empty(t, st.Vote)
	assert.False(t, st.EndGame)
	assert.Equal(t, "alice", st.Name, "name survives a release")
	assert.True(t, st.MuteVote, "mute vote is not seat-coupled")

	name, ok := names.Get(1)
	require.True(t, ok)
	assert.Equal(t, "alice", name, "name history survives a release")

	_, ok = reg.ReleaseSeat(a.id)
	assert.False(t, ok, "double release is a no-op")
}

func TestRegistry_FlagSettersRequireSeat(t *testing.T) {
	reg := NewRegistry(NewSeatNames())
	a := acceptConn(t, reg)

	assert.False(t, reg.SetReady(a.id, true))
	assert.False(t, reg.SetVote(a.id, "duel"))
	assert.False(t, reg.SetEndGame(a.id, true))

	require.NoError(t, reg.RequestSeat(a.id, 0))
	assert.True(t, reg.SetReady(a.id, true))
	assert.True(t, reg.SetVote(a.id, "duel"))
	assert.True(t, reg.SetEndGame(a.id, true))
}

func TestRegistry_ConcurrentAutoAssign(t *testing.T) {
	reg := NewRegistry(NewSeatNames())
	conns := make([]*fakeConn, 32)
	for i := range conns {
		conns[i] = acceptConn(t, reg)
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			_, _ = reg.AutoAssign(c.id)
		}(conn)
	}
	wg.Wait()

	// exactly NumSeats winners, each seat owned by exactly one connection
	assert.Equal(t, NumSeats, reg.SeatedLen())
	seen := make(map[int]bool)
	winners := 0
	for _, conn := range conns {
		if seat := reg.SeatOf(conn.id); seat >= 0 {
			winners++
			assert.False(t, seen[seat], "seat %d assigned twice", seat)
			seen[seat] = true
		}
	}
	assert.Equal(t, NumSeats, winners)
}

func TestRegistry_MuteMajority(t *testing.T) {
	reg := NewRegistry(NewSeatNames())
	assert.False(t, reg.MuteMajority(), "no seats, no majority")

	a := acceptConn(t, reg)
	b := acceptConn(t, reg)
	c := acceptConn(t, reg)
	for i, conn := range []*fakeConn{a, b, c} {
		require.NoError(t, reg.RequestSeat(conn.id, i))
	}

	reg.ToggleMuteVote(a.id)
	assert.False(t, reg.MuteMajority(), "1 of 3 is not strict majority")
	reg.ToggleMuteVote(b.id)
	assert.True(t, reg.MuteMajority())

	// a voter quitting their seat shrinks the electorate
	reg.ReleaseSeat(b.id)
	assert.False(t, reg.MuteMajority(), "1 of 2 is not strict majority")
}

func TestSeatNames_FindLowestMatch(t *testing.T) {
	names := NewSeatNames()
	names.Set(5, "alice")
	names.Set(2, "ALICE")
	names.Set(3, "bob")

	seat, ok := names.FindSeat("Alice")
	require.True(t, ok)
	assert.Equal(t, 2, seat)

	names.Reset()
	_, ok = names.FindSeat("alice")
	assert.False(t, ok)
}

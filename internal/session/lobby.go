package session

import (
	"github.com/google/uuid"

	"github.com/Acvariii/ARPi2-sub004/internal/game"
)

// Lobby applies the menu consensus rules: who counts as ready, when a vote
// is accepted, and when the vote commits. It has no state of its own; the
// flags live in the registry and votes are filtered at read time, so a
// voter who goes unready keeps their vote but stops counting until they
// are ready again.
type Lobby struct {
	reg      *Registry
	games    *game.Registry
	minReady int
}

// NewLobby wires the lobby over the registry and the installed games.
func NewLobby(reg *Registry, games *game.Registry, minReady int) *Lobby {
	if minReady < 1 {
		minReady = 1
	}
	return &Lobby{reg: reg, games: games, minReady: minReady}
}

// MinPlayers returns the minimum number of seated players required before
// the lobby is considered ready.
func (l *Lobby) MinPlayers() int {
	return l.minReady
}

// SetReady flips a seated connection's ready flag.
func (l *Lobby) SetReady(id uuid.UUID, ready bool) bool {
	return l.reg.SetReady(id, ready)
}

// AllReady reports whether at least the minimum number of players are
// seated and every one of them is ready.
func (l *Lobby) AllReady() bool {
	seated := l.reg.Seated()
	if len(seated) < l.minReady {
		return false
	}
	for _, c := range seated {
		if !c.Ready {
			return false
		}
	}
	return true
}

// CastVote records a game vote when the preconditions hold: the voter is
// seated and ready, every seated player is ready, and the key names an
// installed game. Anything else is a silent no-op.
func (l *Lobby) CastVote(id uuid.UUID, key string) bool {
	if _, ok := l.games.Descriptor(key); !ok {
		return false
	}
	st, ok := l.reg.State(id)
	if !ok || st.Seat < 0 || !st.Ready {
		return false
	}
	if !l.AllReady() {
		return false
	}
	return l.reg.SetVote(id, key)
}

// VoteCounts tallies the visible votes: seated, ready voters whose chosen
// key is still installed.
func (l *Lobby) VoteCounts() map[string]int {
	counts, _ := l.tally()
	return counts
}

// Tally returns the key holding a strict majority among the eligible
// voters, where every seated, ready connection counts toward the
// denominator whether it has voted yet or not. With two eligible voters a
// 1-1 split (or a single early vote) never commits; it takes both.
func (l *Lobby) Tally() (string, bool) {
	counts, voters := l.tally()
	if voters == 0 {
		return "", false
	}
	for key, n := range counts {
		if n*2 > voters {
			return key, true
		}
	}
	return "", false
}

func (l *Lobby) tally() (map[string]int, int) {
	counts := make(map[string]int)
	voters := 0
	for _, c := range l.reg.Seated() {
		if !c.Ready {
			continue
		}
		voters++
		if c.Vote == "" {
			continue
		}
		if _, ok := l.games.Descriptor(c.Vote); !ok {
			continue
		}
		counts[c.Vote]++
	}
	return counts, voters
}

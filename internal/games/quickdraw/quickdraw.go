// Package quickdraw is a reaction duel: wait for the draw signal, tap
// first, don't jump the gun. It is intentionally small; it exists to
// exercise every part of the game contract end to end.
package quickdraw

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/Acvariii/ARPi2-sub004/internal/game"
	"github.com/Acvariii/ARPi2-sub004/internal/protocol"
)

const (
	// Key identifies quickdraw in the game registry.
	Key = "quickdraw"

	targetScore   = 5
	armDelayMin   = 1 * time.Second
	armDelayMax   = 4 * time.Second
	roundCooldown = 2 * time.Second
)

// Button ids quickdraw understands.
const (
	ButtonDraw    = "draw"
	ButtonRematch = "rematch"
)

type roundState string

const (
	roundIdle  roundState = "idle"  // next round not yet scheduled
	roundArmed roundState = "armed" // signal pending, drawing now is a foul
	roundLive  roundState = "live"  // signal shown, first draw wins
	roundDone  roundState = "done"  // round resolved, cooling down
	matchOver  roundState = "finished"
)

// Register installs quickdraw into a game registry.
func Register(reg *game.Registry) error {
	desc := game.Descriptor{Key: Key, Name: "Quickdraw", MinPlayers: 2, MaxPlayers: 8}
	return reg.Register(desc, func() game.Game { return New() })
}

// Game holds one quickdraw match. The session serializes all calls, so
// there is no locking here.
type Game struct {
	phase game.Phase
	rng   *rand.Rand

	seats  []int
	scores map[int]int
	fouled map[int]bool // drew before the signal this round

	round      int
	state      roundState
	goAt       time.Time // when the armed round goes live
	nextAt     time.Time // when the cooldown ends
	lastWinner int       // -1 when the round had no winner
	champion   int       // -1 until someone reaches the target
	now        time.Time // latest Update time, used by click handlers
}

// New returns a match waiting in player select.
func New() *Game {
	return newGame(rand.NewSource(time.Now().UnixNano()))
}

func newGame(src rand.Source) *Game {
	return &Game{
		phase:      game.PhasePlayerSelect,
		rng:        rand.New(src),
		lastWinner: -1,
		champion:   -1,
		state:      roundIdle,
	}
}

// Start fixes the seat set and begins round one.
func (g *Game) Start(seats []int) error {
	if len(seats) < 2 {
		return fmt.Errorf("quickdraw needs at least 2 players, got %d", len(seats))
	}
	g.seats = append([]int(nil), seats...)
	g.resetMatch()
	g.phase = game.PhasePlaying
	return nil
}

func (g *Game) resetMatch() {
	g.scores = make(map[int]int, len(g.seats))
	for _, seat := range g.seats {
		g.scores[seat] = 0
	}
	g.round = 0
	g.champion = -1
	g.lastWinner = -1
	g.state = roundIdle
}

// HandleClick routes a button press.
func (g *Game) HandleClick(seat int, buttonID string) error {
	switch buttonID {
	case ButtonDraw:
		g.draw(seat)
	case ButtonRematch:
		if g.state == matchOver {
			g.resetMatch()
		}
	}
	return nil
}

// HandleMessage ignores everything quickdraw has no use for.
func (g *Game) HandleMessage(seat int, msgType string, payload json.RawMessage) error {
	return nil
}

// HandlePointer treats any dispatched screen tap as a draw attempt.
func (g *Game) HandlePointer(seat int, x, y int) error {
	g.draw(seat)
	return nil
}

// draw applies one draw attempt: a foul before the signal, the round win
// after it.
func (g *Game) draw(seat int) {
	if g.phase != game.PhasePlaying || !g.playing(seat) {
		return
	}
	switch g.state {
	case roundArmed:
		if g.fouled[seat] {
			return
		}
		g.fouled[seat] = true
		g.scores[seat]--
	case roundLive:
		if g.fouled[seat] {
			return
		}
		g.scores[seat]++
		g.lastWinner = seat
		if g.scores[seat] >= targetScore {
			g.champion = seat
			g.state = matchOver
			return
		}
		g.state = roundDone
		g.nextAt = g.now.Add(roundCooldown)
	}
}

func (g *Game) playing(seat int) bool {
	for _, s := range g.seats {
		if s == seat {
			return true
		}
	}
	return false
}

// Update advances the round clock.
func (g *Game) Update(now time.Time) {
	g.now = now
	if g.phase != game.PhasePlaying {
		return
	}
	switch g.state {
	case roundIdle:
		g.armRound(now)
	case roundArmed:
		if !now.Before(g.goAt) {
			g.state = roundLive
			g.lastWinner = -1
		}
	case roundDone:
		if !now.Before(g.nextAt) {
			g.armRound(now)
		}
	}
}

func (g *Game) armRound(now time.Time) {
	g.round++
	g.fouled = make(map[int]bool, len(g.seats))
	delay := armDelayMin + time.Duration(g.rng.Int63n(int64(armDelayMax-armDelayMin)))
	g.goAt = now.Add(delay)
	g.state = roundArmed
}

// SeatView renders the match from one seat. Seats outside the match get
// the shared state with no personal block.
func (g *Game) SeatView(seat int) (json.RawMessage, error) {
	view := seatView{
		Round:      g.round,
		State:      string(g.state),
		Target:     targetScore,
		LastWinner: g.lastWinner,
		Champion:   g.champion,
	}
	if g.phase == game.PhasePlayerSelect {
		view.State = "waiting"
	}
	view.Scores = make(map[string]int, len(g.scores))
	for s, score := range g.scores {
		view.Scores[fmt.Sprintf("%d", s)] = score
	}
	if g.playing(seat) {
		view.You = &seatYou{Score: g.scores[seat], Fouled: g.fouled[seat]}
	}
	return json.Marshal(view)
}

type seatView struct {
	Round      int            `json:"round"`
	State      string         `json:"state"`
	Target     int            `json:"target"`
	Scores     map[string]int `json:"scores"`
	LastWinner int            `json:"last_winner"`
	Champion   int            `json:"champion"`
	You        *seatYou       `json:"you,omitempty"`
}

type seatYou struct {
	Score  int  `json:"score"`
	Fouled bool `json:"fouled"`
}

// SeatActions offers the draw button during a round and a rematch once the
// match is over.
func (g *Game) SeatActions(seat int) ([]protocol.Action, error) {
	if g.phase != game.PhasePlaying || !g.playing(seat) {
		return nil, nil
	}
	switch g.state {
	case roundArmed, roundLive:
		return []protocol.Action{{ID: ButtonDraw, Label: "Draw!"}}, nil
	case matchOver:
		return []protocol.Action{{ID: ButtonRematch, Label: "Rematch"}}, nil
	}
	return nil, nil
}

// Phase reports player select until Start succeeds.
func (g *Game) Phase() game.Phase {
	return g.phase
}

// Quit has nothing to release.
func (g *Game) Quit() {}

package game

import (
	"encoding/json"
	"time"

	"github.com/Acvariii/ARPi2-sub004/internal/protocol"
)

// Phase reports how far an installed game has progressed.
type Phase string

const (
	// PhasePlayerSelect means the game is waiting to be started.
	PhasePlayerSelect Phase = "player_select"
	// PhasePlaying means the game has started with a fixed seat set.
	PhasePlaying Phase = "playing"
)

// Game defines what the session requires of an installed game. The session
// serializes every call on a single mutex, so implementations hold plain
// state and need no locking of their own. Returned errors and panics are
// absorbed at the session boundary; they never end the session.
type Game interface {
	// Start begins play for the given seats. The seat set is fixed until
	// the session abandons the game.
	Start(seats []int) error
	// HandleClick processes a named button press from a seated controller.
	HandleClick(seat int, buttonID string) error
	// HandleMessage processes message types the session does not consume
	// itself, with the raw payload passed through intact.
	HandleMessage(seat int, msgType string, payload json.RawMessage) error
	// HandlePointer delivers a dispatched cursor click in display pixels.
	HandlePointer(seat int, x, y int) error
	// SeatView renders the game as seen from one seat.
	SeatView(seat int) (json.RawMessage, error)
	// SeatActions lists the buttons currently available to one seat.
	SeatActions(seat int) ([]protocol.Action, error)
	// Update advances game timers. Called on every session update tick.
	Update(now time.Time)
	// Phase reports the game's current phase.
	Phase() Phase
	// Quit tells the game the session is abandoning it.
	Quit()
}

// Factory constructs a fresh instance of a game.
type Factory func() Game

// Descriptor describes an installed game for the menu.
type Descriptor struct {
	Key        string
	Name       string
	MinPlayers int
	MaxPlayers int
}

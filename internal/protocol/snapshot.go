package protocol

import (
	"encoding/json"
	"time"
)

// ServerMessage is the envelope for every message the server sends to a controller.
type ServerMessage struct {
	Type string   `json:"type"`
	Data Snapshot `json:"data"`
}

// Snapshot is one connection's complete view of the session, rebuilt every
// broadcast tick. Controllers render it statelessly.
type Snapshot struct {
	State      string       `json:"state"` // "menu" or the active game key
	You        You          `json:"you"`
	Seats      []SeatInfo   `json:"seats"`
	Lobby      *LobbyView   `json:"lobby,omitempty"`
	Game       *GameView    `json:"game,omitempty"`
	Cursors    []CursorView `json:"cursors,omitempty"`
	Audio      AudioView    `json:"audio"`
	History    []string     `json:"history,omitempty"`
	ServerTime time.Time    `json:"server_time"`
}

// You describes the receiving connection itself.
type You struct {
	Seat  int    `json:"seat"` // -1 when unseated
	Name  string `json:"name,omitempty"`
	Ready bool   `json:"ready"`
}

// SeatInfo describes one of the eight seats.
type SeatInfo struct {
	Seat     int    `json:"seat"`
	Occupied bool   `json:"occupied"`
	Name     string `json:"name,omitempty"`
}

// LobbyView is present while the session is in the menu.
type LobbyView struct {
	Players    []LobbyPlayer `json:"players"`
	AllReady   bool          `json:"all_ready"`
	MinPlayers int           `json:"min_players"`
	Games      []GameChoice  `json:"games"`
}

// LobbyPlayer is one seated connection's menu status.
type LobbyPlayer struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Vote  string `json:"vote,omitempty"` // hidden while the player is unready
}

// GameChoice is one installed game plus its current vote count.
type GameChoice struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	MinPlayers int    `json:"min_players"`
	MaxPlayers int    `json:"max_players"`
	Votes      int    `json:"votes"`
}

// GameView is present while a game is active.
type GameView struct {
	Key     string          `json:"key"`
	Phase   string          `json:"phase"`
	View    json.RawMessage `json:"view,omitempty"` // game-defined per-seat payload
	Actions []Action        `json:"actions,omitempty"`
	Modal   *Modal          `json:"modal,omitempty"`
}

// Action is a context-dependent button the controller should render.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Modal is the leave-game confirmation shown while this seat's end-game
// flag is set.
type Modal struct {
	Text     string `json:"text"`
	CancelID string `json:"cancel_id"`
}

// CursorView is one seat's on-screen cursor in display pixels.
type CursorView struct {
	Seat int `json:"seat"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// AudioView carries the shared audio state.
type AudioView struct {
	Volume     int  `json:"volume"`
	MusicMuted bool `json:"music_muted"`
}

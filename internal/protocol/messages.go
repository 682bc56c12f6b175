package protocol

// Message types shared between the gateway and session packages

// MessageType identifies an inbound controller message.
type MessageType string

const (
	TypeHello             MessageType = "hello"
	TypeSetSeat           MessageType = "set_seat"
	TypeSetReady          MessageType = "set_ready"
	TypeVoteGame          MessageType = "vote_game"
	TypeClickButton       MessageType = "click_button"
	TypeStartGame         MessageType = "start_game"
	TypeSetPlayerSelected MessageType = "set_player_selected"
	TypeEndGame           MessageType = "end_game"
	TypeQuit              MessageType = "quit"
	TypeVoteMusicMute     MessageType = "vote_music_mute"
	TypeSetVolume         MessageType = "set_volume"
	TypePointer           MessageType = "pointer"
	TypeTap               MessageType = "tap"
	TypeEsc               MessageType = "esc"
	TypeBack              MessageType = "back"
)

// ClientMessage is the envelope for every message a controller sends.
// Fields beyond Type are populated per message type; unrecognized types
// are forwarded to the active game with their raw payload intact.
type ClientMessage struct {
	Type MessageType `json:"type"`

	// hello, set_seat
	Name      string `json:"name,omitempty"`
	PlayerIdx *int   `json:"player_idx,omitempty"`

	// set_ready, set_player_selected
	Ready    bool `json:"ready,omitempty"`
	Selected bool `json:"selected,omitempty"`

	// vote_game
	Key string `json:"key,omitempty"`

	// click_button
	ID string `json:"id,omitempty"`

	// end_game; nil means pressed
	Pressed *bool `json:"pressed,omitempty"`

	// set_volume
	Volume int `json:"volume,omitempty"`

	// pointer, tap; coordinates normalized to [0,1]
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Click bool    `json:"click,omitempty"`
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Acvariii/ARPi2-sub004/internal/game"
	"github.com/Acvariii/ARPi2-sub004/internal/protocol"
)

// StateMenu is the session state while no game is active.
const StateMenu = "menu"

// Button ids the session consumes before the active game sees them.
const (
	ButtonReturnToLobby = "return_to_lobby"
	ButtonStayInGame    = "stay_in_game"
)

const defaultVolume = 50

// Config holds the session tunables.
type Config struct {
	MinReadyPlayers   int
	BroadcastInterval time.Duration
	UpdateInterval    time.Duration
	HistoryCapacity   int
	HistoryTail       int // entries included per snapshot
	CursorTTL         time.Duration
	DisplayWidth      int
	DisplayHeight     int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinReadyPlayers:   1,
		BroadcastInterval: 150 * time.Millisecond,
		UpdateInterval:    50 * time.Millisecond,
		HistoryCapacity:   200,
		HistoryTail:       20,
		CursorTTL:         10 * time.Second,
		DisplayWidth:      1920,
		DisplayHeight:     1080,
	}
}

// Session is the shared state behind one screen: the connection registry,
// the menu lobby, the active game, cursors, audio, and the event history.
// Controllers talk to it through HandleMessage; the broadcast loop reads it
// through BuildSnapshot.
type Session struct {
	cfg     Config
	clock   clockwork.Clock
	reg     *Registry
	lobby   *Lobby
	cursor  *CursorRelay
	history *HistoryLog
	games   *game.Registry

	// gameMu serializes every call into the active game and guards the
	// current pointer. Games are swapped, never mutated in place.
	gameMu  sync.Mutex
	current *activeGame

	volMu  sync.Mutex
	volume int
}

type activeGame struct {
	key  string
	desc game.Descriptor
	game game.Game
}

// New assembles a session. The seat-name history is injected so it can
// outlive session restarts in tests and share a process with other tooling.
func New(cfg Config, clock clockwork.Clock, games *game.Registry, names *SeatNames) *Session {
	reg := NewRegistry(names)
	return &Session{
		cfg:     cfg,
		clock:   clock,
		reg:     reg,
		lobby:   NewLobby(reg, games, cfg.MinReadyPlayers),
		cursor:  NewCursorRelay(clock, cfg.DisplayWidth, cfg.DisplayHeight, cfg.CursorTTL),
		history: NewHistoryLog(cfg.HistoryCapacity),
		games:   games,
		volume:  defaultVolume,
	}
}

// State returns "menu" or the active game's key.
func (s *Session) State() string {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	if s.current == nil {
		return StateMenu
	}
	return s.current.key
}

// Accept registers a new controller connection with no seat.
func (s *Session) Accept(conn Conn) {
	s.reg.Accept(conn)
	log.Info().Str("conn_id", conn.ID().String()).Int("connections", s.reg.Len()).Msg("controller connected")
}

// Disconnect removes a connection entirely, closing it and freeing its
// seat. Safe to call more than once.
func (s *Session) Disconnect(id uuid.UUID) {
	conn, seat, ok := s.reg.Remove(id)
	if !ok {
		return
	}
	conn.Close()
	log.Info().Str("conn_id", id.String()).Int("connections", s.reg.Len()).Msg("controller disconnected")
	if seat >= 0 {
		s.cursor.Drop(seat)
		s.history.Append(s.displayName(seat) + " left")
		s.afterMembershipLoss()
	}
}

// HandleMessage parses and dispatches one raw controller message.
// Malformed or unexpected messages are logged and dropped; only transport
// failures end a connection.
func (s *Session) HandleMessage(id uuid.UUID, raw []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Err(err).Str("conn_id", id.String()).Msg("dropping malformed message")
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		s.handleHello(id, msg)

	case protocol.TypeSetSeat:
		if msg.PlayerIdx == nil {
			return
		}
		if err := s.reg.RequestSeat(id, *msg.PlayerIdx); err != nil {
			log.Debug().Err(err).Str("conn_id", id.String()).Int("seat", *msg.PlayerIdx).Msg("seat request refused")
			return
		}
		s.history.Append(s.displayName(*msg.PlayerIdx) + " joined")
		s.tryAutoStart()

	case protocol.TypeSetReady:
		if s.State() != StateMenu {
			return
		}
		s.lobby.SetReady(id, msg.Ready)

	case protocol.TypeVoteGame:
		if s.State() != StateMenu {
			return
		}
		if s.lobby.CastVote(id, msg.Key) {
			s.tryCommit()
		}

	case protocol.TypeClickButton:
		s.handleClick(id, msg.ID)

	case protocol.TypeStartGame, protocol.TypeSetPlayerSelected:
		s.forwardToGame(id, msg.Type, raw)

	case protocol.TypeEndGame:
		pressed := true
		if msg.Pressed != nil {
			pressed = *msg.Pressed
		}
		s.setEndGame(id, pressed)

	case protocol.TypeQuit:
		s.handleQuit(id)

	case protocol.TypeVoteMusicMute:
		if _, ok := s.reg.ToggleMuteVote(id); ok {
			log.Debug().Str("conn_id", id.String()).Bool("muted", s.reg.MuteMajority()).Msg("music mute vote")
		}

	case protocol.TypeSetVolume:
		s.setVolume(msg.Volume)

	case protocol.TypePointer:
		if seat := s.reg.SeatOf(id); seat >= 0 {
			s.cursor.Update(seat, msg.X, msg.Y, msg.Click)
		}

	case protocol.TypeTap:
		if seat := s.reg.SeatOf(id); seat >= 0 {
			s.cursor.Update(seat, msg.X, msg.Y, true)
		}

	case protocol.TypeEsc, protocol.TypeBack:
		s.handleEsc(id)

	default:
		s.forwardToGame(id, msg.Type, raw)
	}
}

// handleHello records the controller's name and finds it a seat: first by
// name history, then by the requested index, then the lowest free seat.
// A connection that is already seated only refreshes its name.
func (s *Session) handleHello(id uuid.UUID, msg protocol.ClientMessage) {
	if msg.Name != "" {
		s.reg.SetName(id, msg.Name)
	}
	if s.reg.SeatOf(id) >= 0 {
		return
	}
	if msg.Name != "" {
		if seat, ok := s.reg.ReconnectByName(id, msg.Name); ok {
			log.Info().Str("name", msg.Name).Int("seat", seat).Msg("controller reconnected to previous seat")
			s.history.Append(msg.Name + " reconnected")
			s.tryAutoStart()
			return
		}
	}
	if msg.PlayerIdx != nil {
		if err := s.reg.RequestSeat(id, *msg.PlayerIdx); err == nil {
			s.history.Append(s.displayName(*msg.PlayerIdx) + " joined")
			s.tryAutoStart()
			return
		}
	}
	seat, err := s.reg.AutoAssign(id)
	if err != nil {
		log.Debug().Err(err).Str("conn_id", id.String()).Msg("no seat for new controller")
		return
	}
	s.history.Append(s.displayName(seat) + " joined")
	s.tryAutoStart()
}

// handleClick consumes the session-reserved button ids and forwards
// everything else to the active game. Unseated controllers cannot click.
func (s *Session) handleClick(id uuid.UUID, buttonID string) {
	seat := s.reg.SeatOf(id)
	if seat < 0 {
		return
	}
	switch buttonID {
	case ButtonReturnToLobby:
		s.setEndGame(id, true)
		return
	case ButtonStayInGame:
		s.setEndGame(id, false)
		return
	}

	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	if s.current == nil {
		log.Debug().Str("button", buttonID).Msg("click with no active game")
		return
	}
	cur := s.current
	s.guardGame("click", func() error { return cur.game.HandleClick(seat, buttonID) })
}

// forwardToGame passes a message through to the active game untouched.
func (s *Session) forwardToGame(id uuid.UUID, msgType protocol.MessageType, raw []byte) {
	seat := s.reg.SeatOf(id)
	if seat < 0 {
		return
	}
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	if s.current == nil {
		log.Debug().Str("type", string(msgType)).Msg("message with no handler")
		return
	}
	cur := s.current
	s.guardGame("message", func() error { return cur.game.HandleMessage(seat, string(msgType), raw) })
}

// handleQuit releases the controller's seat but keeps the connection
// open, so the controller drops back to the seat picker.
func (s *Session) handleQuit(id uuid.UUID) {
	seat, ok := s.reg.ReleaseSeat(id)
	if !ok {
		return
	}
	s.cursor.Drop(seat)
	s.history.Append(s.displayName(seat) + " left")
	s.afterMembershipLoss()
}

// handleEsc maps the controller's back gesture: in the menu it clears the
// ready flag, in a game it toggles the leave-game prompt.
func (s *Session) handleEsc(id uuid.UUID) {
	st, ok := s.reg.State(id)
	if !ok || st.Seat < 0 {
		return
	}
	if s.State() == StateMenu {
		s.reg.SetReady(id, false)
		return
	}
	s.setEndGame(id, !st.EndGame)
}

func (s *Session) setEndGame(id uuid.UUID, pressed bool) {
	if !s.reg.SetEndGame(id, pressed) {
		return
	}
	if pressed {
		s.checkEndGame()
	}
}

func (s *Session) setVolume(v int) {
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	s.volMu.Lock()
	s.volume = v
	s.volMu.Unlock()
}

// afterMembershipLoss re-evaluates the consensus rules after a seat
// empties: in the menu a leaver can hand the remaining voters a majority,
// in a game the remaining players may now be unanimous about leaving.
func (s *Session) afterMembershipLoss() {
	if s.State() == StateMenu {
		s.tryCommit()
		return
	}
	s.checkEndGame()
}

// tryCommit starts the winning game when the vote holds a majority.
func (s *Session) tryCommit() {
	if s.State() != StateMenu {
		return
	}
	key, ok := s.lobby.Tally()
	if !ok {
		return
	}
	s.enterGame(key)
}

// enterGame swaps a fresh game instance in at the player-select phase and
// resets the menu flags.
func (s *Session) enterGame(key string) {
	g, desc, err := s.games.New(key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("voted game is not installed")
		return
	}
	s.gameMu.Lock()
	if s.current != nil {
		s.gameMu.Unlock()
		return
	}
	s.current = &activeGame{key: key, desc: desc, game: g}
	s.gameMu.Unlock()

	s.reg.ClearMenuFlags()
	s.reg.ClearEndGameFlags()
	s.history.Append(desc.Name + " selected")
	log.Info().Str("game", key).Msg("entering game")
	s.tryAutoStart()
}

// tryAutoStart starts the pending game once enough players are seated.
func (s *Session) tryAutoStart() {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	s.tryAutoStartLocked()
}

func (s *Session) tryAutoStartLocked() {
	cur := s.current
	if cur == nil || cur.game.Phase() != game.PhasePlayerSelect {
		return
	}
	seats := s.reg.SeatedSeats()
	if len(seats) < cur.desc.MinPlayers || len(seats) > cur.desc.MaxPlayers {
		return
	}
	if err := s.guardGame("start", func() error { return cur.game.Start(seats) }); err != nil {
		return
	}
	if cur.game.Phase() == game.PhasePlaying {
		s.history.Append(cur.desc.Name + " started")
		log.Info().Str("game", cur.key).Ints("seats", seats).Msg("game started")
	}
}

// checkEndGame returns to the menu once every seated player holds the
// leave-game flag. An empty seat set counts as unanimous.
func (s *Session) checkEndGame() {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	if s.current == nil {
		return
	}
	for _, c := range s.reg.Seated() {
		if !c.EndGame {
			return
		}
	}
	s.leaveGameLocked()
}

func (s *Session) leaveGameLocked() {
	cur := s.current
	s.current = nil
	s.guardGame("quit", func() error { cur.game.Quit(); return nil })
	s.reg.ClearMenuFlags()
	s.reg.ClearEndGameFlags()
	s.history.Append("back to the menu")
	log.Info().Str("game", cur.key).Msg("returned to menu")
}

// RunUpdates drives the active game's timers and dispatches pending cursor
// clicks until the context is cancelled.
func (s *Session) RunUpdates(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()
	log.Info().Dur("interval", s.cfg.UpdateInterval).Msg("update loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("update loop stopped")
			return
		case <-ticker.Chan():
			s.tick()
		}
	}
}

// tick runs one update pass. Pending clicks are drained even with no game
// active so a click in the menu is consumed rather than carried into the
// next game.
func (s *Session) tick() {
	now := s.clock.Now()
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	cur := s.current
	s.cursor.DrainPending(func(seat, x, y int) {
		if cur == nil {
			return
		}
		s.guardGame("pointer", func() error { return cur.game.HandlePointer(seat, x, y) })
	})
	if cur == nil {
		return
	}
	s.guardGame("update", func() error { cur.game.Update(now); return nil })
	s.tryAutoStartLocked()
}

// guardGame runs one call into the active game, absorbing errors and
// panics so a broken game never takes the session down. Callers hold
// gameMu.
func (s *Session) guardGame(op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("game panic in %s: %v", op, rec)
			log.Error().Str("op", op).Interface("panic", rec).Msg("game panicked")
		}
	}()
	if err = fn(); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("game rejected call")
	}
	return err
}

// displayName resolves a seat's name for history entries.
func (s *Session) displayName(seat int) string {
	if name, ok := s.reg.names.Get(seat); ok && name != "" {
		return name
	}
	return fmt.Sprintf("player %d", seat+1)
}

// Stats reports counters for the stats endpoint.
func (s *Session) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connections": s.reg.Len(),
		"seated":      s.reg.SeatedLen(),
		"state":       s.State(),
	}
}

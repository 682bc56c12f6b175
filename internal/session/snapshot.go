package session

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Acvariii/ARPi2-sub004/internal/game"
	"github.com/Acvariii/ARPi2-sub004/internal/protocol"
)

// BuildSnapshot composes one connection's view of the session. It is a
// pure read; a game that fails to render one seat's view fails only that
// connection's snapshot for this tick.
func (s *Session) BuildSnapshot(id uuid.UUID) (protocol.Snapshot, error) {
	st, ok := s.reg.State(id)
	if !ok {
		return protocol.Snapshot{}, ErrUnknownConn
	}

	snap := protocol.Snapshot{
		You:        protocol.You{Seat: st.Seat, Name: st.Name, Ready: st.Ready},
		Seats:      s.seatInfos(),
		Cursors:    s.cursor.Fresh(),
		Audio:      s.audioView(),
		History:    s.history.Tail(s.cfg.HistoryTail),
		ServerTime: s.clock.Now(),
	}

	gameView, state, err := s.gameView(st)
	if err != nil {
		return protocol.Snapshot{}, err
	}
	snap.State = state
	if gameView != nil {
		snap.Game = gameView
	} else {
		snap.Lobby = s.lobbyView()
	}
	return snap, nil
}

func (s *Session) seatInfos() []protocol.SeatInfo {
	owners := s.reg.SeatOwners()
	infos := make([]protocol.SeatInfo, NumSeats)
	for seat := 0; seat < NumSeats; seat++ {
		infos[seat] = protocol.SeatInfo{Seat: seat}
		if name, ok := owners[seat]; ok {
			infos[seat].Occupied = true
			infos[seat].Name = name
		}
	}
	return infos
}

func (s *Session) lobbyView() *protocol.LobbyView {
	counts := s.lobby.VoteCounts()
	view := &protocol.LobbyView{
		AllReady:   s.lobby.AllReady(),
		MinPlayers: s.lobby.MinPlayers(),
	}
	for _, desc := range s.games.Descriptors() {
		view.Games = append(view.Games, protocol.GameChoice{
			Key:        desc.Key,
			Name:       desc.Name,
			MinPlayers: desc.MinPlayers,
			MaxPlayers: desc.MaxPlayers,
			Votes:      counts[desc.Key],
		})
	}
	for _, c := range s.reg.Seated() {
		player := protocol.LobbyPlayer{Seat: c.Seat, Name: c.Name, Ready: c.Ready}
		if c.Ready {
			player.Vote = c.Vote
		}
		view.Players = append(view.Players, player)
	}
	return view
}

// gameView renders the per-seat game block, or nil while in the menu.
// Unseated connections get the key and phase only.
func (s *Session) gameView(st ControllerState) (*protocol.GameView, string, error) {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	cur := s.current
	if cur == nil {
		return nil, StateMenu, nil
	}

	view := &protocol.GameView{Key: cur.key, Phase: string(cur.game.Phase())}
	if st.Seat >= 0 {
		seatView, actions, err := renderSeat(cur.game, st.Seat)
		if err != nil {
			return nil, "", fmt.Errorf("rendering seat %d: %w", st.Seat, err)
		}
		view.View = seatView
		view.Actions = actions
		if st.EndGame {
			view.Modal = s.leaveModal()
		}
	}
	return view, cur.key, nil
}

// renderSeat fetches one seat's view and actions, converting a panic in
// the game into an error for this snapshot only.
func renderSeat(g game.Game, seat int) (view json.RawMessage, actions []protocol.Action, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("game panic: %v", rec)
		}
	}()
	if view, err = g.SeatView(seat); err != nil {
		return nil, nil, err
	}
	if actions, err = g.SeatActions(seat); err != nil {
		return nil, nil, err
	}
	return view, actions, nil
}

// leaveModal renders the waiting prompt while this seat wants to leave.
// Callers hold gameMu.
func (s *Session) leaveModal() *protocol.Modal {
	seated := s.reg.Seated()
	pressed := 0
	for _, c := range seated {
		if c.EndGame {
			pressed++
		}
	}
	return &protocol.Modal{
		Text:     fmt.Sprintf("Waiting for the others to leave (%d/%d)", pressed, len(seated)),
		CancelID: ButtonStayInGame,
	}
}

func (s *Session) audioView() protocol.AudioView {
	s.volMu.Lock()
	volume := s.volume
	s.volMu.Unlock()
	return protocol.AudioView{Volume: volume, MusicMuted: s.reg.MuteMajority()}
}

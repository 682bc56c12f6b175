package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// NumSeats is the fixed number of seats around the shared screen.
const NumSeats = 8

// Seat operation errors. The session treats them as no-ops for the sender;
// they surface only in debug logs.
var (
	ErrUnknownConn    = errors.New("unknown connection")
	ErrSeatOutOfRange = errors.New("seat out of range")
	ErrSeatTaken      = errors.New("seat taken")
	ErrNoFreeSeat     = errors.New("no free seat")
)

// Conn defines what the session needs from a transport connection.
// The gateway's websocket connection implements it; tests use fakes.
type Conn interface {
	ID() uuid.UUID
	// Send queues data for delivery and returns an error when the
	// connection cannot accept it in time. A send error means the
	// connection is dead.
	Send(data []byte) error
	Close()
}

// ControllerState is the session-side state of one connection.
type ControllerState struct {
	Seat     int // -1 while unseated
	Name     string
	Ready    bool
	Vote     string // voted game key, "" when none
	EndGame  bool
	MuteVote bool
}

// SeatedController is one seated connection's state plus identity,
// as returned by Registry.Seated.
type SeatedController struct {
	ID uuid.UUID
	ControllerState
}

// Target pairs a connection with its id for a broadcast pass.
type Target struct {
	ID   uuid.UUID
	Conn Conn
}

type connEntry struct {
	conn  Conn
	state ControllerState
}

// Registry tracks live connections and seat ownership. Every mutation and
// read goes through one mutex; iteration helpers copy state out so callers
// never hold the lock while building or sending snapshots.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*connEntry
	seats map[int]uuid.UUID // seat -> owning connection
	names *SeatNames
}

// NewRegistry returns a registry backed by the given seat-name history.
func NewRegistry(names *SeatNames) *Registry {
	return &Registry{
		conns: make(map[uuid.UUID]*connEntry),
		seats: make(map[int]uuid.UUID),
		names: names,
	}
}

// Accept registers a new connection with no seat.
func (r *Registry) Accept(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = &connEntry{
		conn:  conn,
		state: ControllerState{Seat: -1},
	}
}

// Remove drops a connection entirely, freeing its seat. It returns the
// connection so the caller can close it, and the seat it held (-1 if none).
func (r *Registry) Remove(id uuid.UUID) (Conn, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok {
		return nil, -1, false
	}
	seat := entry.state.Seat
	if seat >= 0 {
		delete(r.seats, seat)
	}
	delete(r.conns, id)
	return entry.conn, seat, true
}

// RequestSeat claims an explicit seat for a connection. A seat held by
// another live connection is refused; claiming a new seat releases the
// connection's previous one. The seat-name history records the claim.
func (r *Registry) RequestSeat(id uuid.UUID, seat int) error {
	if seat < 0 || seat >= NumSeats {
		return ErrSeatOutOfRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok {
		return ErrUnknownConn
	}
	if owner, taken := r.seats[seat]; taken {
		if owner == id {
			return nil
		}
		return ErrSeatTaken
	}
	r.claimSeatLocked(entry, id, seat)
	return nil
}

// AutoAssign claims the lowest free seat for a connection.
func (r *Registry) AutoAssign(id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok {
		return -1, ErrUnknownConn
	}
	if entry.state.Seat >= 0 {
		return entry.state.Seat, nil
	}
	for seat := 0; seat < NumSeats; seat++ {
		if _, taken := r.seats[seat]; !taken {
			r.claimSeatLocked(entry, id, seat)
			return seat, nil
		}
	}
	return -1, ErrNoFreeSeat
}

// ReconnectByName routes an unseated connection back to the seat its name
// last held, when that seat is currently free. Name comparison is
// case-insensitive.
func (r *Registry) ReconnectByName(id uuid.UUID, name string) (int, bool) {
	seat, ok := r.names.FindSeat(name)
	if !ok {
		return -1, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, exists := r.conns[id]
	if !exists || entry.state.Seat >= 0 {
		return -1, false
	}
	if _, taken := r.seats[seat]; taken {
		return -1, false
	}
	r.claimSeatLocked(entry, id, seat)
	return seat, true
}

func (r *Registry) claimSeatLocked(entry *connEntry, id uuid.UUID, seat int) {
	if prev := entry.state.Seat; prev >= 0 {
		delete(r.seats, prev)
	}
	entry.state.Seat = seat
	r.seats[seat] = id
	r.names.Set(seat, entry.state.Name)
}

// ReleaseSeat frees a connection's seat and clears its seat-coupled flags.
// The connection stays registered and the name history keeps the seat's
// last name. Returns the released seat, -1 if none was held.
func (r *Registry) ReleaseSeat(id uuid.UUID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok || entry.state.Seat < 0 {
		return -1, false
	}
	seat := entry.state.Seat
	delete(r.seats, seat)
	entry.state.Seat = -1
	entry.state.Ready = false
	entry.state.Vote = ""
	entry.state.EndGame = false
	return seat, true
}

// SetName updates a connection's display name. A seated connection also
// refreshes the seat-name history.
func (r *Registry) SetName(id uuid.UUID, name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok {
		return
	}
	entry.state.Name = name
	if entry.state.Seat >= 0 {
		r.names.Set(entry.state.Seat, name)
	}
}

// SetReady flips a seated connection's ready flag. Unseated connections
// are ignored.
func (r *Registry) SetReady(id uuid.UUID, ready bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok || entry.state.Seat < 0 {
		return false
	}
	entry.state.Ready = ready
	return true
}

// SetVote records a seated connection's game vote.
func (r *Registry) SetVote(id uuid.UUID, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok || entry.state.Seat < 0 {
		return false
	}
	entry.state.Vote = key
	return true
}

// SetEndGame sets or clears a seated connection's leave-game flag.
func (r *Registry) SetEndGame(id uuid.UUID, pressed bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok || entry.state.Seat < 0 {
		return false
	}
	entry.state.EndGame = pressed
	return true
}

// ToggleMuteVote flips a connection's music-mute vote and reports the new
// value.
func (r *Registry) ToggleMuteVote(id uuid.UUID) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok {
		return false, false
	}
	entry.state.MuteVote = !entry.state.MuteVote
	return entry.state.MuteVote, true
}

// ClearMenuFlags resets every connection's ready flag and vote.
func (r *Registry) ClearMenuFlags() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.conns {
		entry.state.Ready = false
		entry.state.Vote = ""
	}
}

// ClearEndGameFlags resets every connection's leave-game flag.
func (r *Registry) ClearEndGameFlags() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.conns {
		entry.state.EndGame = false
	}
}

// State returns a copy of one connection's state.
func (r *Registry) State(id uuid.UUID) (ControllerState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[id]
	if !ok {
		return ControllerState{}, false
	}
	return entry.state, true
}

// SeatOf returns a connection's seat, -1 when unseated or unknown.
func (r *Registry) SeatOf(id uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[id]
	if !ok {
		return -1
	}
	return entry.state.Seat
}

// Seated returns copies of every seated connection's state, ordered by seat.
func (r *Registry) Seated() []SeatedController {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seated := make([]SeatedController, 0, len(r.seats))
	for _, entry := range r.conns {
		if entry.state.Seat < 0 {
			continue
		}
		seated = append(seated, SeatedController{ID: entry.conn.ID(), ControllerState: entry.state})
	}
	sort.Slice(seated, func(i, j int) bool { return seated[i].Seat < seated[j].Seat })
	return seated
}

// SeatedSeats returns the occupied seat numbers in ascending order.
func (r *Registry) SeatedSeats() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seats := make([]int, 0, len(r.seats))
	for seat := range r.seats {
		seats = append(seats, seat)
	}
	sort.Ints(seats)
	return seats
}

// SeatOwners maps each occupied seat to its controller's name.
func (r *Registry) SeatOwners() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owners := make(map[int]string, len(r.seats))
	for seat, id := range r.seats {
		if entry, ok := r.conns[id]; ok {
			owners[seat] = entry.state.Name
		}
	}
	return owners
}

// Targets snapshots every live connection for a broadcast pass.
func (r *Registry) Targets() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make([]Target, 0, len(r.conns))
	for id, entry := range r.conns {
		targets = append(targets, Target{ID: id, Conn: entry.conn})
	}
	return targets
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SeatedLen reports the number of occupied seats.
func (r *Registry) SeatedLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seats)
}

// MuteMajority reports whether music-mute votes hold a strict majority of
// the seated connections.
func (r *Registry) MuteMajority() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.seats) == 0 {
		return false
	}
	votes := 0
	for _, id := range r.seats {
		if entry, ok := r.conns[id]; ok && entry.state.MuteVote {
			votes++
		}
	}
	return votes*2 > len(r.seats)
}

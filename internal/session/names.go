package session

import (
	"strings"
	"sync"
)

// SeatNames remembers which display name last held each seat. It lives for
// the whole process so a controller that drops and reconnects with the same
// name can be routed back to its seat. Entries are overwritten only when a
// different name claims the seat; releasing a seat leaves its entry intact.
type SeatNames struct {
	mu    sync.RWMutex
	names map[int]string
}

// NewSeatNames returns an empty name history.
func NewSeatNames() *SeatNames {
	return &SeatNames{names: make(map[int]string)}
}

// Set records name as the latest holder of seat. Empty names are ignored.
func (s *SeatNames) Set(seat int, name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[seat] = name
}

// Get returns the last recorded name for seat.
func (s *SeatNames) Get(seat int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.names[seat]
	return name, ok
}

// FindSeat returns the lowest seat whose recorded name matches,
// compared case-insensitively.
func (s *SeatNames) FindSeat(name string) (int, bool) {
	if name == "" {
		return -1, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := -1
	for seat, held := range s.names {
		if strings.EqualFold(held, name) && (found == -1 || seat < found) {
			found = seat
		}
	}
	return found, found != -1
}

// Reset clears the history.
func (s *SeatNames) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = make(map[int]string)
}

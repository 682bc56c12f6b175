package session

import "sync"

// HistoryLog is a bounded, append-only log of session events (joins,
// leaves, seat changes, game transitions). When full, the oldest entry is
// evicted. Safe for use from any goroutine.
type HistoryLog struct {
	mu       sync.Mutex
	capacity int
	entries  []string
}

// NewHistoryLog returns a log holding at most capacity entries.
func NewHistoryLog(capacity int) *HistoryLog {
	if capacity < 1 {
		capacity = 1
	}
	return &HistoryLog{capacity: capacity}
}

// Append adds an entry, evicting the oldest when the log is full.
func (h *HistoryLog) Append(entry string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[1:]
	}
}

// Tail returns a copy of the newest n entries, oldest first.
func (h *HistoryLog) Tail(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > len(h.entries) {
		n = len(h.entries)
	}
	if n <= 0 {
		return nil
	}
	tail := make([]string, n)
	copy(tail, h.entries[len(h.entries)-n:])
	return tail
}

// All returns a copy of every entry, oldest first.
func (h *HistoryLog) All() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := make([]string, len(h.entries))
	copy(all, h.entries)
	return all
}

// Len reports the number of stored entries.
func (h *HistoryLog) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

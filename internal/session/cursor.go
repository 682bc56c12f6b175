package session

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Acvariii/ARPi2-sub004/internal/protocol"
)

type cursorEntry struct {
	x, y         int
	clickPending bool
	updatedAt    time.Time
}

// CursorRelay holds the latest pointer position per seat. Normalized
// controller coordinates are clamped and scaled to display pixels on
// update. A click stays pending until the update loop dispatches it, so a
// pointer move arriving between the tap and the next tick cannot lose it.
// Entries untouched for longer than ttl are invisible to readers; there is
// no background sweep.
type CursorRelay struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	width   int
	height  int
	ttl     time.Duration
	cursors map[int]*cursorEntry
}

// NewCursorRelay returns a relay scaling into a width x height pixel space.
func NewCursorRelay(clock clockwork.Clock, width, height int, ttl time.Duration) *CursorRelay {
	return &CursorRelay{
		clock:   clock,
		width:   width,
		height:  height,
		ttl:     ttl,
		cursors: make(map[int]*cursorEntry),
	}
}

// Update stores a seat's pointer position from normalized [0,1] coordinates.
// click marks a pending click; a previously pending click is preserved.
func (r *CursorRelay) Update(seat int, nx, ny float64, click bool) {
	x := scaleToPixels(nx, r.width)
	y := scaleToPixels(ny, r.height)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cursors[seat]
	if !ok {
		entry = &cursorEntry{}
		r.cursors[seat] = entry
	}
	entry.x = x
	entry.y = y
	entry.clickPending = entry.clickPending || click
	entry.updatedAt = r.clock.Now()
}

func scaleToPixels(v float64, size int) int {
	if math.IsNaN(v) || v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	return int(math.Round(v * float64(size-1)))
}

// DrainPending invokes fn once per fresh pending click and clears the
// flags. Stale pending clicks are discarded without dispatch.
func (r *CursorRelay) DrainPending(fn func(seat, x, y int)) {
	type pending struct{ seat, x, y int }
	now := r.clock.Now()

	r.mu.Lock()
	var fire []pending
	for seat, entry := range r.cursors {
		if !entry.clickPending {
			continue
		}
		entry.clickPending = false
		if now.Sub(entry.updatedAt) > r.ttl {
			continue
		}
		fire = append(fire, pending{seat: seat, x: entry.x, y: entry.y})
	}
	r.mu.Unlock()

	sort.Slice(fire, func(i, j int) bool { return fire[i].seat < fire[j].seat })
	for _, p := range fire {
		fn(p.seat, p.x, p.y)
	}
}

// Fresh returns the cursors updated within ttl, ordered by seat.
func (r *CursorRelay) Fresh() []protocol.CursorView {
	now := r.clock.Now()
	r.mu.RLock()
	views := make([]protocol.CursorView, 0, len(r.cursors))
	for seat, entry := range r.cursors {
		if now.Sub(entry.updatedAt) > r.ttl {
			continue
		}
		views = append(views, protocol.CursorView{Seat: seat, X: entry.x, Y: entry.y})
	}
	r.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool { return views[i].Seat < views[j].Seat })
	if len(views) == 0 {
		return nil
	}
	return views
}

// Drop removes a seat's cursor, typically when the seat is released.
func (r *CursorRelay) Drop(seat int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cursors, seat)
}

package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// VideoBroadcaster fans the latest encoded display frame out to every
// viewer connection at a fixed rate. Viewers carry no per-connection
// state: everyone gets the identical bytes, and a viewer that misses a
// frame just gets the next one.
type VideoBroadcaster struct {
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration

	mu      sync.RWMutex
	frame   []byte
	viewers map[uuid.UUID]*websocket.Conn
}

// NewVideoBroadcaster returns a broadcaster ticking at interval.
func NewVideoBroadcaster(clock clockwork.Clock, interval, writeTimeout time.Duration) *VideoBroadcaster {
	return &VideoBroadcaster{
		clock:    clock,
		interval: interval,
		timeout:  writeTimeout,
		viewers:  make(map[uuid.UUID]*websocket.Conn),
	}
}

// SetFrame stores the newest encoded frame, replacing the previous one.
func (v *VideoBroadcaster) SetFrame(frame []byte) {
	v.mu.Lock()
	v.frame = frame
	v.mu.Unlock()
}

// AddViewer registers a viewer socket and starts its discard reader; the
// reader exists only to process control frames and notice the close.
func (v *VideoBroadcaster) AddViewer(ws *websocket.Conn) {
	id := uuid.New()
	v.mu.Lock()
	v.viewers[id] = ws
	total := len(v.viewers)
	v.mu.Unlock()
	log.Info().Str("viewer_id", id.String()).Int("viewers", total).Msg("video viewer connected")

	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				v.removeViewer(id)
				return
			}
		}
	}()
}

func (v *VideoBroadcaster) removeViewer(id uuid.UUID) {
	v.mu.Lock()
	ws, ok := v.viewers[id]
	if ok {
		delete(v.viewers, id)
	}
	total := len(v.viewers)
	v.mu.Unlock()
	if ok {
		ws.Close()
		log.Info().Str("viewer_id", id.String()).Int("viewers", total).Msg("video viewer disconnected")
	}
}

// Viewers reports the current viewer count.
func (v *VideoBroadcaster) Viewers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.viewers)
}

// Run broadcasts frames until the context is cancelled.
func (v *VideoBroadcaster) Run(ctx context.Context) {
	ticker := v.clock.NewTicker(v.interval)
	defer ticker.Stop()
	log.Info().Dur("interval", v.interval).Msg("video loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("video loop stopped")
			return
		case <-ticker.Chan():
			v.broadcastOnce()
		}
	}
}

// broadcastOnce writes the current frame to every viewer; writers that
// fail are collected and dropped after the pass.
func (v *VideoBroadcaster) broadcastOnce() {
	v.mu.RLock()
	frame := v.frame
	targets := make(map[uuid.UUID]*websocket.Conn, len(v.viewers))
	for id, ws := range v.viewers {
		targets[id] = ws
	}
	v.mu.RUnlock()
	if frame == nil || len(targets) == 0 {
		return
	}

	var dead []uuid.UUID
	for id, ws := range targets {
		ws.SetWriteDeadline(time.Now().Add(v.timeout))
		if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		v.removeViewer(id)
	}
}

package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Acvariii/ARPi2-sub004/internal/protocol"
)

// RunBroadcast pushes a personalized snapshot to every controller at the
// broadcast interval until the context is cancelled.
func (s *Session) RunBroadcast(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.BroadcastInterval)
	defer ticker.Stop()
	log.Info().Dur("interval", s.cfg.BroadcastInterval).Msg("broadcast loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcast loop stopped")
			return
		case <-ticker.Chan():
			s.broadcastOnce()
		}
	}
}

// broadcastOnce runs one fan-out pass. The connection set is snapshotted
// up front so the pass never iterates a mutating map; each connection gets
// its own build+send goroutine. Connections whose send fails are collected
// and removed after the pass, which frees their seats.
func (s *Session) broadcastOnce() {
	targets := s.reg.Targets()
	if len(targets) == 0 {
		return
	}

	var (
		wg     sync.WaitGroup
		deadMu sync.Mutex
		dead   []uuid.UUID
	)
	for _, target := range targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			snap, err := s.BuildSnapshot(t.ID)
			if err != nil {
				// build failures skip this tick; only send failures kill
				log.Warn().Err(err).Str("conn_id", t.ID.String()).Msg("snapshot build failed")
				return
			}
			data, err := json.Marshal(protocol.ServerMessage{Type: "snapshot", Data: snap})
			if err != nil {
				log.Error().Err(err).Str("conn_id", t.ID.String()).Msg("snapshot marshal failed")
				return
			}
			if err := t.Conn.Send(data); err != nil {
				deadMu.Lock()
				dead = append(dead, t.ID)
				deadMu.Unlock()
			}
		}(target)
	}
	wg.Wait()

	for _, id := range dead {
		log.Info().Str("conn_id", id.String()).Msg("dropping unresponsive controller")
		s.Disconnect(id)
	}
}

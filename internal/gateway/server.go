// Package gateway is the transport layer: websocket endpoints for
// controllers and video viewers, the static controller UI, and the HTTP
// server assembly around them.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Acvariii/ARPi2-sub004/internal/session"
)

// Server routes HTTP traffic into the session and the video broadcaster.
type Server struct {
	sess      *session.Session
	video     *VideoBroadcaster
	cfg       ConnConfig
	clock     clockwork.Clock
	publicURL string
	staticDir string
	upgrader  websocket.Upgrader
}

// NewServer wires the transport over a session and a video broadcaster.
func NewServer(sess *session.Session, video *VideoBroadcaster, cfg ConnConfig, clock clockwork.Clock, publicURL, staticDir string) *Server {
	return &Server{
		sess:      sess,
		video:     video,
		cfg:       cfg,
		clock:     clock,
		publicURL: publicURL,
		staticDir: staticDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Handler assembles the full HTTP handler: routes, CORS, h2c.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleControllerWS)
	mux.HandleFunc("/ws/video", s.handleVideoWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/qr.png", qrHandler(s.publicURL))
	mux.Handle("/", staticHandler(DiscoverStaticRoot(s.staticDir)))

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// handleControllerWS upgrades a controller's connection and hands it to
// the session. The connection lives until its read pump exits.
func (s *Server) handleControllerWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("controller upgrade failed")
		return
	}
	conn := newControllerConn(ws, s.cfg, s.clock)
	s.sess.Accept(conn)
	go conn.writePump()
	go conn.readPump(
		func(raw []byte) { s.sess.HandleMessage(conn.ID(), raw) },
		func() { s.sess.Disconnect(conn.ID()) },
	)
}

// handleVideoWS upgrades a viewer connection; it only ever receives
// binary frames.
func (s *Server) handleVideoWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("viewer upgrade failed")
		return
	}
	s.video.AddViewer(ws)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleStats reports connection counters as JSON.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.sess.Stats()
	stats["viewers"] = s.video.Viewers()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to write stats")
	}
}

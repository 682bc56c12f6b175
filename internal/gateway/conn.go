package gateway

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Send errors. Either one means the connection is dead to the session.
var (
	ErrConnClosed  = errors.New("connection closed")
	ErrSendTimeout = errors.New("send timed out")
)

// ConnConfig holds the websocket transport tunables, shared by controller
// and viewer connections.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	SendTimeout     time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnConfig returns the production transport settings. Controllers
// are phones on flaky wifi; the ping interval keeps NATs from dropping the
// socket and the read timeout detects the ones that silently vanish.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		SendTimeout:     250 * time.Millisecond,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Controllers join by QR code from arbitrary origins.
			return true
		},
	}
}

// controllerConn is one phone's websocket, adapted to what the session
// expects of a connection. Outbound data goes through a buffered channel
// drained by the write pump so the broadcast loop never blocks on a slow
// socket for longer than the send timeout.
type controllerConn struct {
	id    uuid.UUID
	ws    *websocket.Conn
	cfg   ConnConfig
	clock clockwork.Clock

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newControllerConn(ws *websocket.Conn, cfg ConnConfig, clock clockwork.Clock) *controllerConn {
	return &controllerConn{
		id:    uuid.New(),
		ws:    ws,
		cfg:   cfg,
		clock: clock,
		send:  make(chan []byte, 16),
		done:  make(chan struct{}),
	}
}

func (c *controllerConn) ID() uuid.UUID { return c.id }

// Send queues data for the write pump. It fails once the buffer stays
// full past the send timeout or the connection has closed.
func (c *controllerConn) Send(data []byte) error {
	timeout := c.clock.After(c.cfg.SendTimeout)
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-timeout:
		return ErrSendTimeout
	}
}

// Close shuts the socket down. Safe to call from any goroutine, any
// number of times.
func (c *controllerConn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// writePump owns all writes on the socket: queued messages and the
// keepalive pings. It exits when the connection closes or a write fails.
func (c *controllerConn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id.String()).Msg("controller write failed")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id.String()).Msg("controller ping failed")
				return
			}
		}
	}
}

// readPump feeds inbound messages to handle, one at a time, until the
// socket dies, then reports the disconnect via onClose.
func (c *controllerConn) readPump(handle func(raw []byte), onClose func()) {
	defer func() {
		c.Close()
		onClose()
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("conn_id", c.id.String()).Msg("unexpected controller close")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		handle(raw)
	}
}

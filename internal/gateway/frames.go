package gateway

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// FrameConsumer subscribes to a NATS subject carrying encoded display
// frames (published by the out-of-process renderer) and feeds each one to
// the video broadcaster. The server works without it; controllers just
// see no video.
type FrameConsumer struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

// NewFrameConsumer connects to NATS and starts forwarding frames from
// subject into video.
func NewFrameConsumer(url, subject string, video *VideoBroadcaster) (*FrameConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		video.SetFrame(msg.Data)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to %q: %w", subject, err)
	}

	log.Info().Str("url", url).Str("subject", subject).Msg("frame consumer started")
	return &FrameConsumer{nc: nc, sub: sub}, nil
}

// Close drains the subscription and closes the connection.
func (f *FrameConsumer) Close() {
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
	f.nc.Close()
	log.Info().Msg("frame consumer stopped")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Acvariii/ARPi2-sub004/internal/config"
	"github.com/Acvariii/ARPi2-sub004/internal/game"
	"github.com/Acvariii/ARPi2-sub004/internal/games/quickdraw"
	"github.com/Acvariii/ARPi2-sub004/internal/gateway"
	"github.com/Acvariii/ARPi2-sub004/internal/session"
)

// installers maps each game key to its registry installer; config picks
// which ones are enabled.
var installers = map[string]func(*game.Registry) error{
	quickdraw.Key: quickdraw.Register,
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	games := game.NewRegistry()
	for _, key := range cfg.Games.Enabled {
		install, ok := installers[key]
		if !ok {
			log.Fatal().Str("game", key).Msg("unknown game in config")
		}
		if err := install(games); err != nil {
			log.Fatal().Err(err).Str("game", key).Msg("failed to install game")
		}
		log.Info().Str("game", key).Msg("game installed")
	}

	clock := clockwork.NewRealClock()
	sess := session.New(session.Config{
		MinReadyPlayers:   cfg.Session.MinReadyPlayers,
		BroadcastInterval: cfg.Session.BroadcastInterval(),
		UpdateInterval:    cfg.Session.UpdateInterval(),
		HistoryCapacity:   cfg.Session.HistoryCapacity,
		HistoryTail:       cfg.Session.HistoryTail,
		CursorTTL:         cfg.Session.CursorTTL(),
		DisplayWidth:      cfg.Display.Width,
		DisplayHeight:     cfg.Display.Height,
	}, clock, games, session.NewSeatNames())

	connCfg := gateway.DefaultConnConfig()
	connCfg.SendTimeout = cfg.Session.SendTimeout()
	video := gateway.NewVideoBroadcaster(clock, cfg.Video.Interval(), connCfg.WriteTimeout)
	srv := gateway.NewServer(sess, video, connCfg, clock, cfg.Server.PublicURL, cfg.Server.StaticDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sess.RunBroadcast(ctx)
	go sess.RunUpdates(ctx)
	go video.Run(ctx)

	var frames *gateway.FrameConsumer
	if cfg.Frames.NatsURL != "" {
		frames, err = gateway.NewFrameConsumer(cfg.Frames.NatsURL, cfg.Frames.Subject, video)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start frame consumer")
		}
		defer frames.Close()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("public_url", cfg.Server.PublicURL).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	cancel()

	log.Info().Msg("shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

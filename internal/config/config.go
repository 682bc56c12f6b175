// Package config loads the server configuration from an optional YAML
// file with environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Display DisplayConfig `yaml:"display"`
	Session SessionConfig `yaml:"session"`
	Video   VideoConfig   `yaml:"video"`
	Frames  FramesConfig  `yaml:"frames"`
	Games   GamesConfig   `yaml:"games"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	PublicURL string `yaml:"public_url"` // controller join URL, rendered as the QR code
	StaticDir string `yaml:"static_dir"` // empty means discover a default root
}

// DisplayConfig is the shared screen's pixel space; cursor coordinates
// are scaled into it.
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SessionConfig tunes the session core.
type SessionConfig struct {
	MinReadyPlayers     int `yaml:"min_ready_players"`
	BroadcastIntervalMs int `yaml:"broadcast_interval_ms"`
	UpdateIntervalMs    int `yaml:"update_interval_ms"`
	SendTimeoutMs       int `yaml:"send_timeout_ms"`
	HistoryCapacity     int `yaml:"history_capacity"`
	HistoryTail         int `yaml:"history_tail"`
	CursorTTLSeconds    int `yaml:"cursor_ttl_s"`
}

// VideoConfig tunes the viewer frame fan-out.
type VideoConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// FramesConfig points the frame consumer at a NATS subject carrying
// encoded video frames. An empty URL disables the consumer.
type FramesConfig struct {
	NatsURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// GamesConfig selects which installed games are enabled.
type GamesConfig struct {
	Enabled []string `yaml:"enabled"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			PublicURL: "http://localhost:8080",
		},
		Display: DisplayConfig{Width: 1920, Height: 1080},
		Session: SessionConfig{
			MinReadyPlayers:     1,
			BroadcastIntervalMs: 150,
			UpdateIntervalMs:    50,
			SendTimeoutMs:       250,
			HistoryCapacity:     200,
			HistoryTail:         20,
			CursorTTLSeconds:    10,
		},
		Video:  VideoConfig{IntervalMs: 40},
		Frames: FramesConfig{Subject: "display.frames"},
		Games:  GamesConfig{Enabled: []string{"quickdraw"}},
	}
}

// Load reads the YAML file at path and applies env overrides. A missing
// file is not an error; the defaults are used. Any other read or parse
// failure is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("ADDR", c.Server.Addr)
	c.Server.PublicURL = getEnv("PUBLIC_URL", c.Server.PublicURL)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)
	c.Frames.NatsURL = getEnv("NATS_URL", c.Frames.NatsURL)
	c.Session.BroadcastIntervalMs = getEnvAsInt("BROADCAST_INTERVAL_MS", c.Session.BroadcastIntervalMs)
}

// BroadcastInterval returns the controller fan-out period.
func (c SessionConfig) BroadcastInterval() time.Duration {
	return time.Duration(c.BroadcastIntervalMs) * time.Millisecond
}

// UpdateInterval returns the game/cursor tick period.
func (c SessionConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMs) * time.Millisecond
}

// SendTimeout returns how long an outbound send may wait for the write
// pump before the connection is declared dead.
func (c SessionConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMs) * time.Millisecond
}

// CursorTTL returns the cursor staleness cutoff.
func (c SessionConfig) CursorTTL() time.Duration {
	return time.Duration(c.CursorTTLSeconds) * time.Second
}

// Interval returns the video fan-out period.
func (c VideoConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

/*
Package configs loads and validates the application's configuration from
environment variables.

Every tunable the synchronization engine depends on (history bounds,
outbox limit, heartbeat and handshake timing) lives here as a default
that deployments may override.
*/
package configs

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig contains all configuration parameters required to run the
// server. Values are read from environment variables with the defaults
// shown in the env tags.
type AppConfig struct {
	// General server settings.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`

	// Security settings.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	JWTSecret      string   `env:"JWT_SECRET"`

	// Database settings. Empty means messages live only in memory.
	DatabaseDSN string `env:"DATABASE_URL"`

	// Room settings. Catalog rooms are permanently instantiated; names
	// outside the catalog are created lazily when AllowDynamicRooms is
	// set and destroyed when their last member leaves.
	RoomCatalog       []string `env:"ROOM_CATALOG" envSeparator:"," envDefault:"general,tech,gaming,music"`
	AllowDynamicRooms bool     `env:"ALLOW_DYNAMIC_ROOMS" envDefault:"true"`

	// Synchronization engine tunables.
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"200"`
	HistoryTail  int `env:"HISTORY_TAIL" envDefault:"50"`
	OutboxLimit  int `env:"OUTBOX_LIMIT" envDefault:"1000"`
	MaxTextLen   int `env:"MAX_TEXT_LEN" envDefault:"500"`

	// Connection timing.
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	HeartbeatGrace    int           `env:"HEARTBEAT_GRACE" envDefault:"2"`

	// Per-session message rate limiting.
	SendRate  float64 `env:"SEND_RATE" envDefault:"5"`
	SendBurst int     `env:"SEND_BURST" envDefault:"10"`
}

// LoadConfig parses the environment into an AppConfig and validates it.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *AppConfig) validate() error {
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return fmt.Errorf("port number %d is outside the allowed range (1024-65535)", cfg.Port)
	}

	if cfg.JWTSecret == "" {
		if cfg.Environment != "development" {
			return fmt.Errorf("JWT_SECRET environment variable is required in %s environment", cfg.Environment)
		}
		cfg.JWTSecret = "your_default_insecure_secret_key_change_me"
	}

	if cfg.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}

	if cfg.HistoryTail <= 0 || cfg.HistoryTail > cfg.HistoryLimit {
		return fmt.Errorf("HISTORY_TAIL must be in 1-%d, got %d", cfg.HistoryLimit, cfg.HistoryTail)
	}

	if cfg.OutboxLimit <= 0 {
		return fmt.Errorf("OUTBOX_LIMIT must be positive, got %d", cfg.OutboxLimit)
	}

	if cfg.MaxTextLen <= 0 {
		return fmt.Errorf("MAX_TEXT_LEN must be positive, got %d", cfg.MaxTextLen)
	}

	if cfg.HandshakeTimeout <= 0 {
		return fmt.Errorf("HANDSHAKE_TIMEOUT must be positive, got %s", cfg.HandshakeTimeout)
	}

	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive, got %s", cfg.HeartbeatInterval)
	}

	if cfg.HeartbeatGrace < 1 {
		return fmt.Errorf("HEARTBEAT_GRACE must be at least 1, got %d", cfg.HeartbeatGrace)
	}

	if len(cfg.RoomCatalog) == 0 && !cfg.AllowDynamicRooms {
		return fmt.Errorf("ROOM_CATALOG is empty and dynamic rooms are disabled; no room could ever be joined")
	}

	return nil
}

// PongWait is how long the server waits for heartbeat traffic before
// declaring the connection dead.
func (cfg *AppConfig) PongWait() time.Duration {
	return cfg.HeartbeatInterval * time.Duration(cfg.HeartbeatGrace)
}

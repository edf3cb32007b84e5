// Package config holds gateway configuration, loaded from the environment
// with defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// GatewayConfig holds the conversation gateway settings.
type GatewayConfig struct {
	ListenAddr string // HTTP/WebSocket listen address

	JWTSecret        string // HS256 signing secret for handshake credentials
	AuthAllowExpired bool   // accept expired tokens (signature still checked)
	AgentWebhookURL  string // agent processor endpoint; empty disables dispatch
	AgentTimeoutSec  int    // dispatch submission timeout
	PingIntervalSec  int    // heartbeat probe interval
	MaxMissedPongs   int    // consecutive missed pongs before eviction
	ReadBufferSize   int    // WebSocket read buffer
	WriteBufferSize  int    // WebSocket write buffer
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		ListenAddr:      ":8080",
		AgentTimeoutSec: 30,
		PingIntervalSec: 20,
		MaxMissedPongs:  3,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// FromEnv loads gateway configuration from environment variables, falling
// back to defaults for any missing values.
func FromEnv() *GatewayConfig {
	cfg := DefaultConfig()

	if addr := os.Getenv("GATEWAY_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if secret := os.Getenv("GATEWAY_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if v := os.Getenv("AUTH_ALLOW_EXPIRED"); v != "" {
		if allow, err := strconv.ParseBool(v); err == nil {
			cfg.AuthAllowExpired = allow
		}
	}
	if url := os.Getenv("AGENT_WEBHOOK_URL"); url != "" {
		cfg.AgentWebhookURL = url
	}
	if v := os.Getenv("AGENT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AgentTimeoutSec = n
		}
	}
	if v := os.Getenv("GATEWAY_PING_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PingIntervalSec = n
		}
	}
	if v := os.Getenv("GATEWAY_MAX_MISSED_PONGS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxMissedPongs = n
		}
	}
	return cfg
}

// PingInterval returns the heartbeat probe interval as a duration.
func (c *GatewayConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}

// AgentTimeout returns the dispatch submission timeout as a duration.
func (c *GatewayConfig) AgentTimeout() time.Duration {
	return time.Duration(c.AgentTimeoutSec) * time.Second
}

// Package providers wires the gateway core to its HTTP and WebSocket
// surface: the upgrade endpoint, the broadcast side-channel, and the stats
// introspection routes.
package providers

import (
	"github.com/rs/zerolog"

	"github.com/storeline/chat-gateway/config"
	"github.com/storeline/chat-gateway/src/auth"
	"github.com/storeline/chat-gateway/src/bridge"
	"github.com/storeline/chat-gateway/src/dispatch"
	"github.com/storeline/chat-gateway/src/hub"
	"github.com/storeline/chat-gateway/src/service"
)

// Gateway owns one conversation gateway instance: registry, router,
// delivery service, auth verifier, and optional cross-instance bridge.
// Construct with NewGateway, tear down with Stop; nothing here is a
// package-level singleton, so tests run as many instances as they like.
type Gateway struct {
	cfg      *config.GatewayConfig
	registry *hub.Registry
	router   *hub.Router
	service  *service.Service
	verifier *auth.Verifier
	bridge   bridge.Bridge
	logger   zerolog.Logger
}

// NewGateway builds a gateway from configuration.
func NewGateway(cfg *config.GatewayConfig, logger zerolog.Logger) *Gateway {
	registry := hub.NewRegistry(logger)
	svc := service.New(registry, logger)

	var dispatcher hub.Dispatcher = dispatch.NopDispatcher{}
	if cfg.AgentWebhookURL != "" {
		dispatcher = dispatch.NewWebhookDispatcher(cfg.AgentWebhookURL, cfg.AgentTimeout(), logger)
	}

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))
	if cfg.AuthAllowExpired {
		verifier = auth.NewVerifierAllowExpired([]byte(cfg.JWTSecret))
	}

	return &Gateway{
		cfg:      cfg,
		registry: registry,
		router:   hub.NewRouter(registry, dispatcher, logger),
		service:  svc,
		verifier: verifier,
		logger:   logger,
	}
}

// Service returns the delivery service.
func (g *Gateway) Service() *service.Service { return g.service }

// Registry returns the connection registry.
func (g *Gateway) Registry() *hub.Registry { return g.registry }

// StartBridge tries to start the Redis pub/sub bridge. If Redis is not
// reachable the gateway runs standalone; that is not an error.
func (g *Gateway) StartBridge(cfg *bridge.RedisConfig) {
	rb := bridge.NewRedisBridge(cfg, g.service, g.logger)
	if err := rb.Start(); err != nil {
		g.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		return
	}
	g.bridge = rb
	g.registry.SetBridge(rb)
	g.logger.Info().Str("redis_addr", cfg.Addr).Msg("redis bridge connected")
}

// Stop closes the bridge and evicts every live connection.
func (g *Gateway) Stop() {
	if g.bridge != nil {
		if err := g.bridge.Stop(); err != nil {
			g.logger.Error().Err(err).Msg("bridge stop error")
		}
		g.bridge = nil
	}
	g.registry.Close()
}

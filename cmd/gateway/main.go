// The gateway binary serves the real-time conversation gateway: WebSocket
// connections scoped to a conversation, the broadcast side-channel used by
// the agent processor, and stats introspection.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/storeline/chat-gateway/config"
	"github.com/storeline/chat-gateway/providers"
	"github.com/storeline/chat-gateway/src/bridge"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.FromEnv()
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("GATEWAY_JWT_SECRET is required")
	}

	gw := providers.NewGateway(cfg, logger)
	gw.StartBridge(bridge.RedisConfigFromEnv())
	defer gw.Stop()

	app := fiber.New()
	gw.RegisterRoutes(app)

	appHandler := app.Handler()
	wsHandler := gw.FastHTTPHandler()

	// Fiber v3 cannot hand out *fasthttp.RequestCtx, so the upgrade path is
	// muxed at the fasthttp level and everything else goes to Fiber.
	server := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			path := string(ctx.Path())
			if strings.HasPrefix(path, "/ws/") && path != "/ws/info" {
				wsHandler(ctx)
				return
			}
			appHandler(ctx)
		},
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("gateway listening")
		if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

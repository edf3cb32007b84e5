package providers

import (
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/storeline/chat-gateway/src/hub"
	"github.com/storeline/chat-gateway/src/types"
)

var upgrader = websocket.FastHTTPUpgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// RegisterRoutes registers the HTTP surface via Fiber. The WebSocket
// upgrade itself uses FastHTTPHandler, registered at the app level since
// Fiber v3 does not expose *fasthttp.RequestCtx.
func (g *Gateway) RegisterRoutes(group fiber.Router) {
	group.Get("/ws/info", g.handleInfo)
	group.Get("/stats", g.handleStats)
	group.Post("/broadcast", g.handleBroadcast)
}

func (g *Gateway) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket":     true,
		"endpoint":      "/ws/{conversation_id}",
		"clients":       g.registry.ActiveCount(),
		"conversations": len(g.registry.Topics()),
	})
}

func (g *Gateway) handleStats(c fiber.Ctx) error {
	return c.JSON(g.service.Stats())
}

// handleBroadcast is the synchronous side-channel: callers outside a live
// connection (the agent processor's completion callback, admin tooling)
// inject an envelope into a topic and get back the recipient count.
func (g *Gateway) handleBroadcast(c fiber.Ctx) error {
	conversationID := c.Query("conversation_id")
	message := c.Query("message")
	if conversationID == "" || message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation_id and message are required",
		})
	}

	var recipients int
	switch c.Query("message_type", types.TypeMessage) {
	case types.TypeSystemNotification:
		recipients = g.service.DeliverNotification(conversationID, message)
	case types.TypeMessage:
		recipients = g.service.DeliverMessage(conversationID, message)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message_type must be message or system_notification",
		})
	}

	return c.JSON(fiber.Map{"recipients": recipients})
}

// FastHTTPHandler returns a raw fasthttp handler for WebSocket upgrades at
// /ws/{conversation_id}. The bearer credential, user_id, and client_id
// arrive as query parameters because a browser WebSocket handshake cannot
// carry custom headers. The token value must never reach a log line.
func (g *Gateway) FastHTTPHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}

		conversationID := strings.TrimPrefix(string(ctx.Path()), "/ws/")
		if conversationID == "" || strings.Contains(conversationID, "/") {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetBodyString(`{"error":"not_found","message":"conversation id missing"}`)
			return
		}

		// Admission happens strictly before the upgrade: a rejected attempt
		// never constructs or registers a connection.
		token := string(ctx.QueryArgs().Peek("token"))
		claims, err := g.verifier.Verify(token)
		if err != nil {
			g.logger.Debug().
				Str("conversation_id", conversationID).
				Msg("handshake rejected")
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			ctx.SetBodyString(`{"error":"unauthorized","message":"invalid credential"}`)
			return
		}

		clientID := string(ctx.QueryArgs().Peek("client_id"))
		if clientID == "" {
			clientID = uuid.New().String()
		}

		err = upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			client := hub.NewClient(clientID, claims.Subject, conversationID, &fasthttpConn{conn}, g.registry, g.logger)

			// Queued before registration so it precedes any broadcast.
			client.Enqueue(types.ConnectionEstablished(conversationID))
			g.registry.Register(client)

			go client.WritePump()
			go client.RunHeartbeat(g.cfg.PingInterval(), g.cfg.MaxMissedPongs)
			client.ReadPump(g.router)
		})
		if err != nil {
			g.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// fasthttpConn wraps fasthttp/websocket.Conn to satisfy types.Conn.
type fasthttpConn struct {
	conn *websocket.Conn
}

func (f *fasthttpConn) WriteJSON(v any) error { return f.conn.WriteJSON(v) }
func (f *fasthttpConn) ReadJSON(v any) error  { return f.conn.ReadJSON(v) }
func (f *fasthttpConn) Close() error          { return f.conn.Close() }

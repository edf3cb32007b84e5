package hub

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/storeline/chat-gateway/src/types"
)

// Dispatcher is the external agent-processing collaborator. Submit hands a
// user message off for asynchronous processing; the reply arrives later via
// the broadcast delivery path, never as a return value.
type Dispatcher interface {
	Submit(ctx context.Context, conversationID, userID, content string) error
}

// Router classifies inbound envelopes and dispatches them. It is stateless
// across envelopes; the only per-connection state it touches is the
// heartbeat bookkeeping on the client itself.
type Router struct {
	registry   *Registry
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewRouter builds a router over the registry and dispatcher.
func NewRouter(registry *Registry, dispatcher Dispatcher, logger zerolog.Logger) *Router {
	return &Router{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "router").Logger(),
	}
}

// Handle processes one inbound envelope from a client. A malformed envelope
// gets an error reply on that connection only and never closes it; only
// read errors, explicit close, or heartbeat timeout do that.
func (rt *Router) Handle(c *Client, env types.Envelope) {
	if err := env.Validate(c.ConversationID); err != nil {
		rt.logger.Debug().
			Err(err).
			Str("client_id", c.ID).
			Str("type", env.Type).
			Msg("rejected envelope")
		c.Enqueue(types.ErrorReply(c.ConversationID, err.Error()))
		return
	}

	switch env.Type {
	case types.TypePing:
		c.Enqueue(types.Pong(c.ConversationID))
	case types.TypePong:
		c.markPong()
	case types.TypeMessage:
		rt.handleMessage(c, env)
	default:
		// Valid but unexpected from a client (typing echoes and server-only
		// types). Reject the envelope, keep the connection.
		c.Enqueue(types.ErrorReply(c.ConversationID, "unsupported client envelope type: "+env.Type))
	}
}

// handleMessage broadcasts the typing affordance to the topic and hands the
// content to the dispatcher. It never blocks on the collaborator: Submit is
// called on a fresh goroutine and a failure only produces a log line. The
// reply reaches the topic later through the delivery path, independent of
// this connection's lifecycle.
func (rt *Router) handleMessage(c *Client, env types.Envelope) {
	rt.registry.Broadcast(c.ConversationID, types.NewTyping(c.ConversationID, types.SenderAgent))

	if rt.dispatcher == nil {
		return
	}
	go func(conversationID, userID, content string) {
		if err := rt.dispatcher.Submit(context.Background(), conversationID, userID, content); err != nil &&
			!errors.Is(err, context.Canceled) {
			rt.logger.Error().
				Err(err).
				Str("conversation_id", conversationID).
				Msg("agent dispatch failed")
		}
	}(c.ConversationID, c.UserID, env.Data.Content)
}

package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/storeline/chat-gateway/src/types"
)

// sendBufferSize is the default outbound queue depth per connection.
const sendBufferSize = 256

// Client is one live, authenticated, bidirectional session bound to exactly
// one conversation topic for its lifetime. The Send queue is owned by the
// client alone; the registry only ever calls Enqueue.
type Client struct {
	ID             string
	UserID         string
	ConversationID string

	conn          types.Conn
	registry      *Registry
	Send          chan types.Envelope
	establishedAt time.Time

	mu          sync.RWMutex
	lastPong    time.Time
	missedPongs int
	closed      bool
	done        chan struct{}

	logger zerolog.Logger
}

// NewClient wraps a WebSocket connection as a conversation client. The
// caller registers it and starts the pumps.
func NewClient(id, userID, conversationID string, conn types.Conn, r *Registry, logger zerolog.Logger) *Client {
	now := time.Now()
	return &Client{
		ID:             id,
		UserID:         userID,
		ConversationID: conversationID,
		conn:           conn,
		registry:       r,
		Send:           make(chan types.Envelope, sendBufferSize),
		establishedAt:  now,
		lastPong:       now,
		done:           make(chan struct{}),
		logger: logger.With().
			Str("component", "client").
			Str("client_id", id).
			Logger(),
	}
}

// EstablishedAt returns when the connection was admitted.
func (c *Client) EstablishedAt() time.Time { return c.establishedAt }

// LastPong returns the time of the most recent heartbeat reply.
func (c *Client) LastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// Enqueue attempts a non-blocking send on the outbound queue. Returns false
// when the client is closing or the buffer is full; the caller skips it.
func (c *Client) Enqueue(env types.Envelope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}

// markPong records a heartbeat reply and resets the missed counter.
func (c *Client) markPong() {
	c.mu.Lock()
	c.lastPong = time.Now()
	c.missedPongs = 0
	c.mu.Unlock()
}

// ReadPump reads inbound envelopes and hands them to the router. It returns
// on read error or client close; either way the connection is synchronously
// unregistered before the pump exits.
func (c *Client) ReadPump(router *Router) {
	defer c.Close()

	for {
		var env types.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		router.Handle(c, env)
	}
}

// WritePump drains the outbound queue onto the socket. A write error stops
// the pump; ReadPump notices the dead socket and runs the close path.
func (c *Client) WritePump() {
	for {
		select {
		case env := <-c.Send:
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close tears the connection down: stops the pumps, closes the transport,
// and synchronously removes the client from the registry. Idempotent; safe
// to call from the read-error path and the heartbeat supervisor at once.
func (c *Client) Close() {
	if !c.markClosed() {
		return
	}
	_ = c.conn.Close()
	c.registry.Unregister(c.ID)
	c.logger.Debug().Msg("connection closed")
}

// closeTransport closes the socket and pumps without touching the registry.
// Used when the registry has already removed the entry itself.
func (c *Client) closeTransport() {
	if !c.markClosed() {
		return
	}
	_ = c.conn.Close()
}

// markClosed flips the closed flag once. Returns false if already closed.
func (c *Client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.done)
	return true
}

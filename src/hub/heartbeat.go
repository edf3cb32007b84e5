package hub

import (
	"time"

	"github.com/storeline/chat-gateway/src/types"
)

// Heartbeat defaults. Liveness is judged purely by pong responsiveness, so
// a connection waiting tens of seconds on agent processing is never
// mistaken for dead.
const (
	DefaultPingInterval   = 20 * time.Second
	DefaultMaxMissedPongs = 3
)

// RunHeartbeat probes the connection with a point-to-point ping every
// interval. Each interval without a pong since the previous probe counts as
// a miss; after maxMissed consecutive misses the connection is closed and
// unregistered. Call in a goroutine; returns when the client closes.
func (c *Client) RunHeartbeat(interval time.Duration, maxMissed int) {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	if maxMissed <= 0 {
		maxMissed = DefaultMaxMissedPongs
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.countMiss() >= maxMissed {
				c.logger.Warn().
					Int("missed_pongs", maxMissed).
					Msg("heartbeat timeout, evicting connection")
				c.Close()
				return
			}
			// Direct probe, not a topic broadcast.
			c.Enqueue(types.Ping(c.ConversationID))
		case <-c.done:
			return
		}
	}
}

// countMiss increments the missed-pong counter and returns the count before
// this interval's probe. A pong routed in between resets it to zero.
func (c *Client) countMiss() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	missed := c.missedPongs
	c.missedPongs++
	return missed
}

// Package hub owns the live connection registry for conversation topics:
// registration, fan-out broadcast, heartbeat supervision, and inbound
// envelope routing.
package hub

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/storeline/chat-gateway/src/types"
)

// MessageBridge publishes broadcast envelopes to other gateway instances.
// Defined here to avoid circular imports with the bridge package.
type MessageBridge interface {
	Publish(conversationID string, env types.Envelope) error
	Available() bool
}

// Registry maps conversation topics to their live subscriber sets. It is the
// single synchronization point of the gateway: all registration, removal,
// and broadcast snapshots go through its lock.
//
// One RWMutex guards every topic bucket. Fine at the scale of one gateway
// instance; shard by conversation_id hash before this becomes contended.
type Registry struct {
	mu       sync.RWMutex
	topics   map[string]map[string]*Client // conversation_id -> client_id -> client
	byClient map[string]string             // client_id -> conversation_id
	total    uint64                        // admissions since construction

	onConnect []func(*Client)
	onDisconn []func(*Client)
	bridge    MessageBridge
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry. Each gateway instance owns exactly
// one; tests construct as many as they need.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		topics:   make(map[string]map[string]*Client),
		byClient: make(map[string]string),
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// SetBridge attaches a cross-instance message bridge. When set, locally
// issued broadcasts are also forwarded to other instances.
func (r *Registry) SetBridge(b MessageBridge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bridge = b
}

// OnConnect registers a callback invoked after each successful registration.
func (r *Registry) OnConnect(cb func(*Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConnect = append(r.onConnect, cb)
}

// OnDisconnect registers a callback invoked after each removal.
func (r *Registry) OnDisconnect(cb func(*Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisconn = append(r.onDisconn, cb)
}

// Register inserts a client into its topic bucket. Registering the same
// client_id twice replaces the earlier connection: the old transport is
// closed and the bucket never holds a client_id twice.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	var replaced *Client
	if prevTopic, ok := r.byClient[c.ID]; ok {
		if prev := r.topics[prevTopic][c.ID]; prev != nil && prev != c {
			replaced = prev
		}
		delete(r.topics[prevTopic], c.ID)
		if len(r.topics[prevTopic]) == 0 {
			delete(r.topics, prevTopic)
		}
	}
	if r.topics[c.ConversationID] == nil {
		r.topics[c.ConversationID] = make(map[string]*Client)
	}
	r.topics[c.ConversationID][c.ID] = c
	r.byClient[c.ID] = c.ConversationID
	r.total++
	callbacks := r.onConnect
	r.mu.Unlock()

	if replaced != nil {
		// Already out of the bucket, only the transport needs closing.
		replaced.closeTransport()
		r.logger.Info().Str("client_id", c.ID).Msg("replaced existing connection")
	}

	r.logger.Info().
		Str("client_id", c.ID).
		Str("conversation_id", c.ConversationID).
		Msg("client registered")

	for _, cb := range callbacks {
		cb(c)
	}
}

// Unregister removes a client from whichever topic bucket holds it.
// Idempotent: the read-error path and the heartbeat supervisor may both
// call it for the same connection.
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	topic, ok := r.byClient[clientID]
	if !ok {
		r.mu.Unlock()
		return
	}
	c := r.topics[topic][clientID]
	delete(r.topics[topic], clientID)
	if len(r.topics[topic]) == 0 {
		delete(r.topics, topic)
	}
	delete(r.byClient, clientID)
	callbacks := r.onDisconn
	r.mu.Unlock()

	r.logger.Info().
		Str("client_id", clientID).
		Str("conversation_id", topic).
		Msg("client unregistered")

	if c != nil {
		for _, cb := range callbacks {
			cb(c)
		}
	}
}

// Broadcast fans an envelope out to every current subscriber of a topic and
// returns the number of connections it actually reached. A failed enqueue
// (closing client, full buffer) is skipped and never aborts the rest.
//
// The read lock is held across the enqueues. Enqueues never block, and
// holding the lock gives every broadcast a consistent subscriber snapshot:
// a concurrently closing client is either fully included or fully excluded.
func (r *Registry) Broadcast(conversationID string, env types.Envelope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs, ok := r.topics[conversationID]
	if !ok {
		return 0
	}
	delivered := 0
	for id, c := range subs {
		if c.Enqueue(env) {
			delivered++
		} else {
			r.logger.Warn().
				Str("client_id", id).
				Str("conversation_id", conversationID).
				Msg("send buffer full or closing, dropping")
		}
	}
	return delivered
}

// Publish broadcasts locally and forwards the envelope to other gateway
// instances through the bridge, when one is attached. Returns the local
// recipient count.
func (r *Registry) Publish(conversationID string, env types.Envelope) int {
	r.mu.RLock()
	b := r.bridge
	r.mu.RUnlock()

	if b != nil && b.Available() {
		if err := b.Publish(conversationID, env); err != nil {
			r.logger.Error().Err(err).Msg("bridge publish failed")
		}
	}
	return r.Broadcast(conversationID, env)
}

// ActiveCount returns the number of live connections across all topics.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byClient)
}

// TotalCount returns the number of admissions since the registry was built.
func (r *Registry) TotalCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Snapshot returns the client IDs currently subscribed to a topic.
func (r *Registry) Snapshot(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.topics[conversationID]
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	return ids
}

// Topics returns topic names with their subscriber counts.
func (r *Registry) Topics() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]int, len(r.topics))
	for topic, subs := range r.topics {
		result[topic] = len(subs)
	}
	return result
}

// Client returns the live client with the given ID, or nil.
func (r *Registry) Client(clientID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topic, ok := r.byClient[clientID]
	if !ok {
		return nil
	}
	return r.topics[topic][clientID]
}

// Close evicts every connection. Used on gateway shutdown and in tests.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.byClient))
	for topic, subs := range r.topics {
		for id, c := range subs {
			clients = append(clients, c)
			delete(subs, id)
			delete(r.byClient, id)
		}
		delete(r.topics, topic)
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.closeTransport()
	}
	r.logger.Debug().Msg("registry closed")
}

package bridge

import "github.com/storeline/chat-gateway/src/types"

// Bridge relays broadcast envelopes between gateway instances so that
// viewers of one conversation connected to different instances all receive
// the same agent replies.
type Bridge interface {
	// Publish sends an envelope to all other instances via the bridge.
	Publish(conversationID string, env types.Envelope) error

	// Start begins listening for envelopes from other instances.
	Start() error

	// Stop shuts down the bridge connection.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// BroadcastTarget receives envelopes relayed from other instances. The
// delivery service implements it; relayed envelopes fan out locally only,
// never back onto the bridge.
type BroadcastTarget interface {
	DeliverLocal(conversationID string, env types.Envelope)
}

// Package service is the broadcast delivery surface of the gateway. The
// agent processor's completion callback and the HTTP side-channel both
// converge here; delivery is topic-addressed, so every viewer of a
// conversation receives the same envelope.
package service

import (
	"github.com/rs/zerolog"

	"github.com/storeline/chat-gateway/src/hub"
	"github.com/storeline/chat-gateway/src/types"
)

// Stats is the introspection snapshot exposed on the stats endpoint.
type Stats struct {
	ActiveConnections int    `json:"active_connections"`
	TotalConnections  uint64 `json:"total_connections"`
}

// Service provides the high-level delivery API over the registry.
type Service struct {
	registry *hub.Registry
	logger   zerolog.Logger
}

// New creates a delivery service backed by the given registry.
func New(registry *hub.Registry, logger zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// Registry returns the underlying registry.
func (s *Service) Registry() *hub.Registry { return s.registry }

// Deliver fans an envelope out to every live subscriber of the conversation
// and forwards it across the instance bridge. Returns the local recipient
// count; zero subscribers is not an error.
func (s *Service) Deliver(conversationID string, env types.Envelope) int {
	recipients := s.registry.Publish(conversationID, env)
	s.logger.Debug().
		Str("conversation_id", conversationID).
		Str("type", env.Type).
		Int("recipients", recipients).
		Msg("delivered")
	return recipients
}

// DeliverMessage builds and delivers an agent message envelope.
func (s *Service) DeliverMessage(conversationID, content string) int {
	return s.Deliver(conversationID, types.NewMessage(conversationID, content, types.SenderAgent))
}

// DeliverNotification builds and delivers a system_notification envelope.
func (s *Service) DeliverNotification(conversationID, content string) int {
	return s.Deliver(conversationID, types.SystemNotification(conversationID, content))
}

// DeliverLocal fans a bridge-received envelope out to local subscribers
// only, without re-publishing. Satisfies the bridge's BroadcastTarget.
func (s *Service) DeliverLocal(conversationID string, env types.Envelope) {
	s.registry.Broadcast(conversationID, env)
}

// Stats reports active and lifetime connection counts.
func (s *Service) Stats() Stats {
	return Stats{
		ActiveConnections: s.registry.ActiveCount(),
		TotalConnections:  s.registry.TotalCount(),
	}
}

package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Envelope types exchanged over a conversation connection.
const (
	TypeConnectionEstablished = "connection_established"
	TypeMessage               = "message"
	TypeTyping                = "typing"
	TypePing                  = "ping"
	TypePong                  = "pong"
	TypeSystemNotification    = "system_notification"
	TypeError                 = "error"
)

// Payload senders.
const (
	SenderUser   = "user"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// Envelope validation errors.
var (
	ErrUnknownType   = errors.New("unknown envelope type")
	ErrEmptyContent  = errors.New("message content is empty")
	ErrTopicMismatch = errors.New("conversation_id does not match connection topic")
)

var knownTypes = map[string]bool{
	TypeConnectionEstablished: true,
	TypeMessage:               true,
	TypeTyping:                true,
	TypePing:                  true,
	TypePong:                  true,
	TypeSystemNotification:    true,
	TypeError:                 true,
}

// Payload is the free-form body of a message envelope.
type Payload struct {
	ID        string `json:"id,omitempty"`
	Content   string `json:"content,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Envelope is the wire message unit. Envelopes are immutable values:
// construct one, send it, never mutate it afterwards.
type Envelope struct {
	Type           string  `json:"type"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Data           Payload `json:"data,omitzero"`
	Timestamp      string  `json:"timestamp"`
}

// Validate checks an inbound envelope against the topic the connection is
// bound to. It rejects unknown types, cross-topic messages, and empty
// message content. Ping and pong carry no payload and always pass.
func (e Envelope) Validate(boundTopic string) error {
	if !knownTypes[e.Type] {
		return ErrUnknownType
	}
	if e.Type == TypeMessage {
		if e.ConversationID != "" && e.ConversationID != boundTopic {
			return ErrTopicMismatch
		}
		if e.Data.Content == "" {
			return ErrEmptyContent
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewMessage builds a message envelope for a conversation.
func NewMessage(conversationID, content, sender string) Envelope {
	ts := now()
	return Envelope{
		Type:           TypeMessage,
		ConversationID: conversationID,
		Data: Payload{
			ID:        uuid.New().String(),
			Content:   content,
			Sender:    sender,
			Timestamp: ts,
		},
		Timestamp: ts,
	}
}

// NewTyping builds the typing affordance broadcast when a user message is
// handed off for processing.
func NewTyping(conversationID, sender string) Envelope {
	return Envelope{
		Type:           TypeTyping,
		ConversationID: conversationID,
		Data:           Payload{Sender: sender},
		Timestamp:      now(),
	}
}

// SystemNotification builds a system_notification envelope.
func SystemNotification(conversationID, content string) Envelope {
	ts := now()
	return Envelope{
		Type:           TypeSystemNotification,
		ConversationID: conversationID,
		Data: Payload{
			ID:        uuid.New().String(),
			Content:   content,
			Sender:    SenderSystem,
			Timestamp: ts,
		},
		Timestamp: ts,
	}
}

// ConnectionEstablished is sent to a client immediately after admission,
// before any other envelope.
func ConnectionEstablished(conversationID string) Envelope {
	return Envelope{
		Type:           TypeConnectionEstablished,
		ConversationID: conversationID,
		Timestamp:      now(),
	}
}

// Ping builds a point-to-point heartbeat probe.
func Ping(conversationID string) Envelope {
	return Envelope{Type: TypePing, ConversationID: conversationID, Timestamp: now()}
}

// Pong builds the heartbeat reply.
func Pong(conversationID string) Envelope {
	return Envelope{Type: TypePong, ConversationID: conversationID, Timestamp: now()}
}

// ErrorReply builds the structured rejection sent back to the originating
// connection when a single inbound envelope is malformed. The connection
// itself stays open.
func ErrorReply(conversationID, detail string) Envelope {
	return Envelope{
		Type:           TypeError,
		ConversationID: conversationID,
		Data:           Payload{Sender: SenderSystem, Detail: detail},
		Timestamp:      now(),
	}
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

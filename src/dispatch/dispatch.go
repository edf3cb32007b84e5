// Package dispatch forwards user messages to the external agent processor.
// The processor is an opaque collaborator: it receives a message and, at an
// arbitrary later time, injects its reply through the gateway's broadcast
// endpoint. Nothing here ever blocks a connection's read loop.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// submission is the payload posted to the agent processor.
type submission struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Content        string `json:"content"`
}

// WebhookDispatcher submits user messages to the agent processor over HTTP.
type WebhookDispatcher struct {
	url     string
	client  *fasthttp.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher posting to the given URL.
func NewWebhookDispatcher(url string, timeout time.Duration, logger zerolog.Logger) *WebhookDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookDispatcher{
		url:     url,
		client:  &fasthttp.Client{},
		timeout: timeout,
		logger:  logger.With().Str("component", "dispatch").Logger(),
	}
}

// Submit posts the message to the processor. The call returns once the
// processor has accepted the submission; the eventual reply travels back
// through the broadcast delivery path, not through this call.
func (d *WebhookDispatcher) Submit(ctx context.Context, conversationID, userID, content string) error {
	body, err := json.Marshal(submission{
		ConversationID: conversationID,
		UserID:         userID,
		Content:        content,
	})
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(d.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := d.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("submit to agent processor: %w", err)
	}
	if code := resp.StatusCode(); code >= 300 {
		return fmt.Errorf("agent processor returned status %d", code)
	}

	d.logger.Debug().
		Str("conversation_id", conversationID).
		Msg("message submitted to agent processor")
	return nil
}

// NopDispatcher accepts every submission and does nothing. Used in tests
// and when the gateway runs without an agent processor configured.
type NopDispatcher struct{}

// Submit discards the message.
func (NopDispatcher) Submit(context.Context, string, string, string) error { return nil }

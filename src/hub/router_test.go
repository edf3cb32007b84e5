package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeline/chat-gateway/src/types"
)

// captureDispatcher records submissions handed off by the router.
type captureDispatcher struct {
	mu   sync.Mutex
	subs []submission
	err  error
}

type submission struct {
	conversationID string
	userID         string
	content        string
}

func (d *captureDispatcher) Submit(_ context.Context, conversationID, userID, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, submission{conversationID, userID, content})
	return d.err
}

func (d *captureDispatcher) submissions() []submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]submission, len(d.subs))
	copy(cp, d.subs)
	return cp
}

func TestRouterPingGetsPong(t *testing.T) {
	r := newTestRegistry(t)
	c, conn := newTestClient(t, r, "c1", "u1", "conv-1")
	router := NewRouter(r, nil, zerolog.Nop())

	router.Handle(c, types.Ping("conv-1"))

	written := waitForWritten(t, conn, 1)
	assert.Equal(t, types.TypePong, written[0].Type)
}

func TestRouterPongUpdatesLiveness(t *testing.T) {
	r := newTestRegistry(t)
	c, conn := newTestClient(t, r, "c1", "u1", "conv-1")
	router := NewRouter(r, nil, zerolog.Nop())

	before := c.LastPong()
	time.Sleep(5 * time.Millisecond)
	router.Handle(c, types.Pong("conv-1"))

	assert.True(t, c.LastPong().After(before))
	assert.Empty(t, conn.getWritten(), "pong gets no reply")
}

func TestRouterMessageDispatchesAndBroadcastsTyping(t *testing.T) {
	r := newTestRegistry(t)
	a, connA := newTestClient(t, r, "a", "user-1", "C1")
	_, connB := newTestClient(t, r, "b", "user-2", "C1")
	disp := &captureDispatcher{}
	router := NewRouter(r, disp, zerolog.Nop())

	router.Handle(a, types.Envelope{
		Type:           types.TypeMessage,
		ConversationID: "C1",
		Data:           types.Payload{Content: "hello", Sender: types.SenderUser},
	})

	// Both viewers of the topic receive the typing affordance.
	wa := waitForWritten(t, connA, 1)
	wb := waitForWritten(t, connB, 1)
	assert.Equal(t, types.TypeTyping, wa[0].Type)
	assert.Equal(t, types.TypeTyping, wb[0].Type)

	require.Eventually(t, func() bool {
		return len(disp.submissions()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	sub := disp.submissions()[0]
	assert.Equal(t, "C1", sub.conversationID)
	assert.Equal(t, "user-1", sub.userID)
	assert.Equal(t, "hello", sub.content)
}

func TestRouterMalformedEnvelopeKeepsConnectionOpen(t *testing.T) {
	r := newTestRegistry(t)
	c, conn := newTestClient(t, r, "c1", "u1", "conv-1")
	router := NewRouter(r, &captureDispatcher{}, zerolog.Nop())

	cases := []types.Envelope{
		{Type: "bogus"},
		{Type: types.TypeMessage, ConversationID: "conv-1"},                                              // empty content
		{Type: types.TypeMessage, ConversationID: "other-conv", Data: types.Payload{Content: "x"}},       // wrong topic
		{Type: types.TypeSystemNotification, ConversationID: "conv-1", Data: types.Payload{Content: "x"}}, // server-only type
	}
	for _, env := range cases {
		router.Handle(c, env)
	}

	written := waitForWritten(t, conn, len(cases))
	for _, env := range written {
		assert.Equal(t, types.TypeError, env.Type)
	}
	assert.Equal(t, 1, r.ActiveCount(), "malformed envelopes never close the connection")
}

func TestRouterDispatchFailureDoesNotCloseConnection(t *testing.T) {
	r := newTestRegistry(t)
	c, _ := newTestClient(t, r, "c1", "u1", "conv-1")
	disp := &captureDispatcher{err: assert.AnError}
	router := NewRouter(r, disp, zerolog.Nop())

	router.Handle(c, types.Envelope{
		Type:           types.TypeMessage,
		ConversationID: "conv-1",
		Data:           types.Payload{Content: "doomed"},
	})

	require.Eventually(t, func() bool {
		return len(disp.submissions()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestRouterNilDispatcherStillServesHeartbeat(t *testing.T) {
	r := newTestRegistry(t)
	c, conn := newTestClient(t, r, "c1", "u1", "conv-1")
	router := NewRouter(r, nil, zerolog.Nop())

	router.Handle(c, types.Envelope{
		Type:           types.TypeMessage,
		ConversationID: "conv-1",
		Data:           types.Payload{Content: "no agent configured"},
	})
	router.Handle(c, types.Ping("conv-1"))

	// Typing then pong, in order.
	written := waitForWritten(t, conn, 2)
	assert.Equal(t, types.TypeTyping, written[0].Type)
	assert.Equal(t, types.TypePong, written[1].Type)
}

package hub

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/storeline/chat-gateway/src/types"
)

// mockConn implements types.Conn for testing without a real WebSocket.
type mockConn struct {
	mu       sync.Mutex
	written  []types.Envelope
	readCh   chan types.Envelope
	closed   bool
	closedCh chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:   make(chan types.Envelope, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if env, ok := v.(types.Envelope); ok {
		m.written = append(m.written, env)
	}
	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	select {
	case env := <-m.readCh:
		if ptr, ok := v.(*types.Envelope); ok {
			*ptr = env
		}
		return nil
	case <-m.closedCh:
		return &closeError{}
	}
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockConn) getWritten() []types.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.Envelope, len(m.written))
	copy(cp, m.written)
	return cp
}

type closeError struct{}

func (e *closeError) Error() string { return "connection closed" }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(zerolog.Nop())
	t.Cleanup(r.Close)
	return r
}

// newTestClient creates and registers a client backed by a mock connection.
// The write pump is started; heartbeat and read pump are left to the test.
func newTestClient(t *testing.T, r *Registry, clientID, userID, conversationID string) (*Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	c := NewClient(clientID, userID, conversationID, conn, r, zerolog.Nop())
	r.Register(c)
	go c.WritePump()
	return c, conn
}

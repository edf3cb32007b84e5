package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopDispatcher(t *testing.T) {
	assert.NoError(t, NopDispatcher{}.Submit(context.Background(), "C1", "u1", "hello"))
}

func TestWebhookDispatcherSubmits(t *testing.T) {
	var mu sync.Mutex
	var got submission

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &got)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, 5*time.Second, zerolog.Nop())
	err := d.Submit(context.Background(), "C1", "user-1", "track my order")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "C1", got.ConversationID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "track my order", got.Content)
}

func TestWebhookDispatcherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, 5*time.Second, zerolog.Nop())
	err := d.Submit(context.Background(), "C1", "u1", "x")
	assert.Error(t, err)
}

func TestWebhookDispatcherUnreachable(t *testing.T) {
	d := NewWebhookDispatcher("http://127.0.0.1:1/process", time.Second, zerolog.Nop())
	err := d.Submit(context.Background(), "C1", "u1", "x")
	assert.Error(t, err)
}

func TestWebhookDispatcherDefaultTimeout(t *testing.T) {
	d := NewWebhookDispatcher("http://example.invalid", 0, zerolog.Nop())
	assert.Equal(t, 30*time.Second, d.timeout)
}

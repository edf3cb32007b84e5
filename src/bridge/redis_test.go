package bridge

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeline/chat-gateway/src/types"
)

func redisMessage(payload string) *redis.Message {
	return &redis.Message{Payload: payload}
}

// mockBroadcastTarget records envelopes relayed from the bridge.
type mockBroadcastTarget struct {
	received []types.Envelope
}

func (m *mockBroadcastTarget) DeliverLocal(_ string, env types.Envelope) {
	m.received = append(m.received, env)
}

func TestRedisEnvelopeSerialization(t *testing.T) {
	env := types.NewMessage("conv-7", "your refund was approved", types.SenderAgent)
	wrapped := redisEnvelope{
		InstanceID:     "instance-abc",
		ConversationID: "conv-7",
		Envelope:       env,
	}

	data, err := json.Marshal(wrapped)
	require.NoError(t, err)

	var decoded redisEnvelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "instance-abc", decoded.InstanceID)
	assert.Equal(t, "conv-7", decoded.ConversationID)
	assert.Equal(t, env, decoded.Envelope)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, "storeline:gw:", cfg.Prefix)
}

func TestRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_GW_PREFIX", "test:gw:")

	cfg := RedisConfigFromEnv()
	assert.Equal(t, "redis.example.com:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "test:gw:", cfg.Prefix)
}

func TestRedisConfigFromEnvInvalidDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := RedisConfigFromEnv()
	assert.Equal(t, 0, cfg.DB) // falls back to default
}

func TestRedisBridgeAvailableFalseBeforeStart(t *testing.T) {
	rb := NewRedisBridge(DefaultRedisConfig(), &mockBroadcastTarget{}, zerolog.Nop())
	assert.False(t, rb.Available())
}

func TestRedisBridgeInstanceIDUnique(t *testing.T) {
	target := &mockBroadcastTarget{}
	b1 := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())
	b2 := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())
	assert.NotEqual(t, b1.instanceID, b2.instanceID)
}

func TestHandleRedisMessageSkipsSelf(t *testing.T) {
	target := &mockBroadcastTarget{}
	rb := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())

	env := types.SystemNotification("conv-1", "hello")
	self, err := json.Marshal(redisEnvelope{
		InstanceID:     rb.instanceID,
		ConversationID: "conv-1",
		Envelope:       env,
	})
	require.NoError(t, err)
	other, err := json.Marshal(redisEnvelope{
		InstanceID:     "some-other-node",
		ConversationID: "conv-1",
		Envelope:       env,
	})
	require.NoError(t, err)

	rb.handleRedisMessage(redisMessage(string(self)))
	assert.Empty(t, target.received, "own messages are skipped")

	rb.handleRedisMessage(redisMessage(string(other)))
	require.Len(t, target.received, 1)
	assert.Equal(t, env, target.received[0])
}

func TestHandleRedisMessageBadPayload(t *testing.T) {
	target := &mockBroadcastTarget{}
	rb := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())

	rb.handleRedisMessage(redisMessage("{not json"))
	assert.Empty(t, target.received)
}

package events

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-outbreak/types"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestConsumer(client *redis.Client, trigger func()) *ReportConsumer {
	c := NewReportConsumer(client, trigger, "outbreak:reports", "detector", "test-1", zap.NewNop())
	c.block = -1
	return c
}

func readEvent(t *testing.T, client *redis.Client, stream string) Event {
	t.Helper()
	msgs, err := client.XRange(context.Background(), stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	ev, err := parseEvent(msgs[0])
	require.NoError(t, err)
	assert.NotNil(t, msgs[0].Values["timestamp"])
	return ev
}

func TestPublishGeneration(t *testing.T) {
	_, client := setupTestRedis(t)
	pub := NewRedisPublisher(client, DefaultStreams(), zap.NewNop())

	result := types.DetectionResult{Generation: 42, ClustersFound: 1}
	require.NoError(t, pub.PublishGeneration(context.Background(), result))

	ev := readEvent(t, client, "outbreak:clusters")
	assert.Equal(t, EventGenerationReplaced, ev.EventType)

	var got types.DetectionResult
	require.NoError(t, json.Unmarshal(ev.Payload, &got))
	assert.Equal(t, int64(42), got.Generation)
	assert.Equal(t, 1, got.ClustersFound)
}

func TestPublishAlert(t *testing.T) {
	_, client := setupTestRedis(t)
	pub := NewRedisPublisher(client, DefaultStreams(), zap.NewNop())

	alert := types.HealthAlert{ID: "a-1", ClusterID: "c-1", Level: types.AlertCritical}
	require.NoError(t, pub.PublishAlert(context.Background(), alert))

	ev := readEvent(t, client, "outbreak:alerts")
	assert.Equal(t, EventAlertCreated, ev.EventType)

	var got types.HealthAlert
	require.NoError(t, json.Unmarshal(ev.Payload, &got))
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, types.AlertCritical, got.Level)
}

func TestPublish_ServerDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	pub := NewRedisPublisher(client, DefaultStreams(), zap.NewNop())
	mr.Close()

	err := pub.PublishAlert(context.Background(), types.HealthAlert{ID: "a-1"})
	assert.Error(t, err)
}

func TestParseEvent_Malformed(t *testing.T) {
	_, err := parseEvent(redis.XMessage{ID: "1-0", Values: map[string]interface{}{}})
	assert.Error(t, err)

	_, err = parseEvent(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": "{not json"}})
	assert.Error(t, err)

	_, err = parseEvent(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": `{"timestamp":1}`}})
	assert.Error(t, err)
}

func TestEnsureGroup_Idempotent(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, ensureGroup(ctx, client, "outbreak:reports", "detector"))
	require.NoError(t, ensureGroup(ctx, client, "outbreak:reports", "detector"))
}

func TestConsumer_OneTriggerPerBatch(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	pub := NewRedisPublisher(client, DefaultStreams(), zap.NewNop())

	var triggers int32
	c := newTestConsumer(client, func() { atomic.AddInt32(&triggers, 1) })
	require.NoError(t, ensureGroup(ctx, client, c.stream, c.group))

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, pub.PublishReport(ctx, types.SymptomReport{ID: id, Severity: 5}))
	}

	n, err := c.consumeBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(1), atomic.LoadInt32(&triggers))

	pending, err := client.XPending(ctx, c.stream, c.group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	// nothing new: no trigger
	n, err = c.consumeBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(1), atomic.LoadInt32(&triggers))
}

func TestConsumer_AcksUnknownAndMalformed(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	var triggers int32
	c := newTestConsumer(client, func() { atomic.AddInt32(&triggers, 1) })
	require.NoError(t, ensureGroup(ctx, client, c.stream, c.group))

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: c.stream, Values: map[string]interface{}{"data": "garbage"}}).Err())
	_, err := publishEvent(ctx, client, c.stream, 0, "something.else", map[string]string{"x": "y"})
	require.NoError(t, err)

	n, err := c.consumeBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(0), atomic.LoadInt32(&triggers))

	pending, err := client.XPending(ctx, c.stream, c.group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	_, client := setupTestRedis(t)
	pub := NewRedisPublisher(client, DefaultStreams(), zap.NewNop())

	var triggers int32
	c := newTestConsumer(client, func() { atomic.AddInt32(&triggers, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		return client.Exists(context.Background(), c.stream).Val() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, pub.PublishReport(context.Background(), types.SymptomReport{ID: "r1"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&triggers) >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

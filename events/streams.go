package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	EventGenerationReplaced = "generation.replaced"
	EventAlertCreated       = "alert.created"
	EventReportCreated      = "report.created"
)

// Event is the JSON carried in the "data" field of every stream entry.
type Event struct {
	EventType string          `json:"event_type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func publishEvent(ctx context.Context, client *redis.Client, stream string, maxLen int64, eventType string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	now := time.Now()
	data, err := json.Marshal(Event{EventType: eventType, Timestamp: now.Unix(), Payload: body})
	if err != nil {
		return "", fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": now.Unix(),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return client.XAdd(ctx, args).Result()
}

func parseEvent(msg redis.XMessage) (Event, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return Event{}, fmt.Errorf("message %s has no data field", msg.ID)
	}
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return Event{}, fmt.Errorf("message %s: %w", msg.ID, err)
	}
	if ev.EventType == "" {
		return Event{}, fmt.Errorf("message %s: missing event_type", msg.ID)
	}
	return ev, nil
}

// ensureGroup creates the consumer group, and the stream with it, if missing.
func ensureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

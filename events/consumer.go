package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 100
	defaultBlock     = 5 * time.Second
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
)

// ReportConsumer reads report.created events through a consumer group and calls
// trigger once per non-empty batch. Messages are acked after the trigger, so a crash
// in between replays them (at-least-once).
type ReportConsumer struct {
	client    *redis.Client
	trigger   func()
	stream    string
	group     string
	consumer  string
	batchSize int64
	block     time.Duration
	logger    *zap.Logger
}

func NewReportConsumer(client *redis.Client, trigger func(), stream, group, consumer string, logger *zap.Logger) *ReportConsumer {
	return &ReportConsumer{
		client:    client,
		trigger:   trigger,
		stream:    stream,
		group:     group,
		consumer:  consumer,
		batchSize: defaultBatchSize,
		block:     defaultBlock,
		logger:    logger,
	}
}

// Start consumes until ctx is cancelled, backing off exponentially on read errors.
func (c *ReportConsumer) Start(ctx context.Context) error {
	if err := ensureGroup(ctx, c.client, c.stream, c.group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Report consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.group),
		zap.String("consumer_name", c.consumer),
	)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := c.consumeBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume report events", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = initialBackoff
	}
}

// consumeBatch handles one read and returns how many report events it saw.
func (c *ReportConsumer) consumeBatch(ctx context.Context) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	var ids []string
	reports := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			ids = append(ids, msg.ID)
			ev, err := parseEvent(msg)
			if err != nil {
				c.logger.Warn("Dropping malformed event", zap.String("message_id", msg.ID), zap.Error(err))
				continue
			}
			if ev.EventType != EventReportCreated {
				c.logger.Warn("Unknown event type", zap.String("event_type", ev.EventType))
				continue
			}
			reports++
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if reports > 0 {
		c.logger.Info("New reports received, scheduling detection", zap.Int("reports", reports))
		c.trigger()
	}

	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		c.logger.Warn("Failed to ack messages", zap.Int("messages", len(ids)), zap.Error(err))
	}
	return reports, nil
}

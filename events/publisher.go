package events

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"go-outbreak/types"
)

type Streams struct {
	Clusters string
	Alerts   string
	Reports  string
	MaxLen   int64
}

func DefaultStreams() Streams {
	return Streams{
		Clusters: "outbreak:clusters",
		Alerts:   "outbreak:alerts",
		Reports:  "outbreak:reports",
		MaxLen:   10000,
	}
}

// RedisPublisher writes engine results and new-report notifications to Redis Streams.
type RedisPublisher struct {
	client  *redis.Client
	streams Streams
	logger  *zap.Logger
}

func NewRedisPublisher(client *redis.Client, streams Streams, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, streams: streams, logger: logger}
}

func (p *RedisPublisher) PublishGeneration(ctx context.Context, result types.DetectionResult) error {
	id, err := publishEvent(ctx, p.client, p.streams.Clusters, p.streams.MaxLen, EventGenerationReplaced, result)
	if err != nil {
		return fmt.Errorf("failed to publish generation %d: %w", result.Generation, err)
	}
	p.logger.Debug("Published generation", zap.Int64("generation", result.Generation), zap.String("message_id", id))
	return nil
}

func (p *RedisPublisher) PublishAlert(ctx context.Context, alert types.HealthAlert) error {
	id, err := publishEvent(ctx, p.client, p.streams.Alerts, p.streams.MaxLen, EventAlertCreated, alert)
	if err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", alert.ID, err)
	}
	p.logger.Debug("Published alert", zap.String("alert_id", alert.ID), zap.String("message_id", id))
	return nil
}

// PublishReport announces a stored report so a consumer can schedule detection.
func (p *RedisPublisher) PublishReport(ctx context.Context, report types.SymptomReport) error {
	_, err := publishEvent(ctx, p.client, p.streams.Reports, p.streams.MaxLen, EventReportCreated, report)
	if err != nil {
		return fmt.Errorf("failed to publish report %s: %w", report.ID, err)
	}
	return nil
}

// NopPublisher drops everything; used when Redis is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishGeneration(context.Context, types.DetectionResult) error { return nil }
func (NopPublisher) PublishAlert(context.Context, types.HealthAlert) error { return nil }

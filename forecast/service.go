package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-outbreak/cache"
	"go-outbreak/types"
)

const DefaultTTL = time.Hour

// Service fronts a Forecaster with a KV cache. Concurrent requests for the same
// key share one computation. A failing cache is logged and bypassed.
type Service struct {
	forecaster *Forecaster
	kv         cache.KVStore
	ttl        time.Duration
	group      singleflight.Group
	logger     *zap.Logger
}

// NewService wires the cache. kv may be nil, in which case every call computes.
func NewService(source AggregateSource, kv cache.KVStore, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		forecaster: NewForecaster(source, ttl),
		kv:         kv,
		ttl:        ttl,
		logger:     logger,
	}
}

// CacheKey identifies a prediction by region, horizon and disease filter.
func CacheKey(region types.BoundingBox, horizonDays int, disease string) string {
	return fmt.Sprintf("prediction:%s:%d:%s", region.Key(), horizonDays, strings.ToLower(strings.TrimSpace(disease)))
}

func (s *Service) Get(ctx context.Context, region types.BoundingBox, horizonDays int, disease string) (types.Prediction, error) {
	if err := ValidateRequest(region, horizonDays); err != nil {
		return types.Prediction{}, err
	}
	key := CacheKey(region, horizonDays, disease)

	if p, ok := s.lookup(ctx, key); ok {
		return p, nil
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		if p, ok := s.lookup(ctx, key); ok {
			return p, nil
		}
		p, err := s.forecaster.Forecast(ctx, region, horizonDays, disease)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, p)
		return p, nil
	})
	if err != nil {
		return types.Prediction{}, err
	}
	if shared {
		s.logger.Debug("Prediction computation shared", zap.String("key", key))
	}

	p := v.(types.Prediction)
	p.Points = append([]types.ForecastPoint(nil), p.Points...)
	return p, nil
}

func (s *Service) lookup(ctx context.Context, key string) (types.Prediction, bool) {
	if s.kv == nil {
		return types.Prediction{}, false
	}
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Prediction cache read failed, computing directly", zap.String("key", key), zap.Error(err))
		}
		return types.Prediction{}, false
	}

	var p types.Prediction
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Warn("Discarding undecodable cached prediction", zap.String("key", key), zap.Error(err))
		return types.Prediction{}, false
	}
	return p, true
}

func (s *Service) store(ctx context.Context, key string, p types.Prediction) {
	if s.kv == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("Failed to encode prediction", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, key, string(data), s.ttl); err != nil {
		s.logger.Warn("Prediction cache write failed", zap.String("key", key), zap.Error(err))
	}
}

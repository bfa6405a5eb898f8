// Package forecast projects near-future daily case counts for a region with a
// least-squares linear trend. The core projection is pure; presentation jitter
// and caching are layered on top of it.
package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go-outbreak/types"
)

const (
	ModelVersion   = "linear-trend-v1"
	HistoryDays    = 90
	MaxHorizonDays = 90

	minDailyPoints    = 7
	trendWindow       = 14
	fullQualityPoints = 30
	intervalFraction  = 0.3

	MinConfidence = 0.3
	MaxConfidence = 0.95
)

// AggregateSource is the slice of the Report Store the forecaster reads.
type AggregateSource interface {
	ListDailyAggregates(ctx context.Context, region *types.BoundingBox, disease string, daysBack int) ([]types.DailyAggregate, error)
}

// Trend is the deterministic output of Project.
type Trend struct {
	Points     []types.ForecastPoint
	Confidence float64
	Degraded   bool
}

type Forecaster struct {
	source AggregateSource
	ttl    time.Duration
	now    func() time.Time
}

func NewForecaster(source AggregateSource, ttl time.Duration) *Forecaster {
	return &Forecaster{source: source, ttl: ttl, now: time.Now}
}

// ValidateRequest rejects malformed bounds and horizons outside [1, MaxHorizonDays].
func ValidateRequest(region types.BoundingBox, horizonDays int) error {
	if err := region.Validate(); err != nil {
		return err
	}
	if horizonDays < 1 || horizonDays > MaxHorizonDays {
		return &types.ValidationError{Field: "horizonDays", Reason: fmt.Sprintf("%d not in [1, %d]", horizonDays, MaxHorizonDays)}
	}
	return nil
}

// Forecast loads the region's daily history and projects it horizonDays forward.
func (f *Forecaster) Forecast(ctx context.Context, region types.BoundingBox, horizonDays int, disease string) (types.Prediction, error) {
	if err := ValidateRequest(region, horizonDays); err != nil {
		return types.Prediction{}, err
	}

	history, err := f.source.ListDailyAggregates(ctx, &region, disease, HistoryDays)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("failed to load daily aggregates: %w", err)
	}

	now := f.now().UTC()
	trend, err := Project(history, horizonDays, now)
	if err != nil {
		return types.Prediction{}, err
	}

	return types.Prediction{
		Region:       region,
		Disease:      disease,
		HorizonDays:  horizonDays,
		Points:       trend.Points,
		Confidence:   trend.Confidence,
		Degraded:     trend.Degraded,
		ModelVersion: ModelVersion,
		GeneratedAt:  now,
		ExpiresAt:    now.Add(f.ttl),
	}, nil
}

// Project fits the trend over history and returns horizonDays points starting the day after today.
// Fewer than seven daily points produce a flat conservative forecast flagged as degraded.
func Project(history []types.DailyAggregate, horizonDays int, today time.Time) (trend Trend, err error) {
	if horizonDays < 1 {
		return Trend{}, &types.ValidationError{Field: "horizonDays", Reason: "must be at least 1"}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &types.ComputationError{Stage: "forecast", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	days := make([]types.DailyAggregate, len(history))
	copy(days, history)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	start := startOfDay(today)
	if len(days) < minDailyPoints {
		return conservative(days, horizonDays, start), nil
	}

	window := days
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}
	values := make([]float64, len(window))
	for i, d := range window {
		values[i] = float64(d.TotalCases)
	}

	slope := leastSquaresSlope(values)
	last := values[len(values)-1]
	severity := weightedSeverity(window)

	points := make([]types.ForecastPoint, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		predicted := int(math.Round(math.Max(0, last+slope*float64(i))))
		points[i-1] = pointFor(start.AddDate(0, 0, i), predicted, severity)
	}

	confidence := clamp(dataQuality(len(days))*trendConsistency(values), MinConfidence, MaxConfidence)
	if math.IsNaN(confidence) {
		return Trend{}, &types.ComputationError{Stage: "forecast", Err: fmt.Errorf("confidence is NaN")}
	}
	return Trend{Points: points, Confidence: confidence}, nil
}

// conservative repeats the mean daily count with a wide interval.
func conservative(days []types.DailyAggregate, horizonDays int, start time.Time) Trend {
	baseline := 0
	if len(days) > 0 {
		total := 0
		for _, d := range days {
			total += d.TotalCases
		}
		baseline = int(math.Round(float64(total) / float64(len(days))))
	}
	severity := weightedSeverity(days)

	points := make([]types.ForecastPoint, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		points[i-1] = types.ForecastPoint{
			Date:           start.AddDate(0, 0, i),
			PredictedCases: baseline,
			Lower:          0,
			Upper:          baseline*2 + 1,
			RiskLevel:      RiskLevelFor(float64(baseline) * severity),
		}
	}
	return Trend{Points: points, Confidence: MinConfidence, Degraded: true}
}

func pointFor(date time.Time, predicted int, severity float64) types.ForecastPoint {
	margin := int(math.Round(float64(predicted) * intervalFraction))
	lower := predicted - margin
	if lower < 0 {
		lower = 0
	}
	return types.ForecastPoint{
		Date:           date,
		PredictedCases: predicted,
		Lower:          lower,
		Upper:          predicted + margin,
		RiskLevel:      RiskLevelFor(float64(predicted) * severity),
	}
}

// RiskLevelFor buckets predicted cases weighted by average severity.
func RiskLevelFor(load float64) types.RiskLevel {
	switch {
	case load < 20:
		return types.RiskLow
	case load < 50:
		return types.RiskMedium
	case load < 100:
		return types.RiskHigh
	default:
		return types.RiskCritical
	}
}

func leastSquaresSlope(values []float64) float64 {
	n := float64(len(values))
	meanX := (n - 1) / 2
	var meanY float64
	for _, v := range values {
		meanY += v
	}
	meanY /= n

	var num, den float64
	for i, v := range values {
		dx := float64(i) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func dataQuality(points int) float64 {
	return math.Min(1, float64(points)/fullQualityPoints)
}

// trendConsistency falls as day-over-day deltas get noisier relative to the level of the series.
func trendConsistency(values []float64) float64 {
	if len(values) < 2 {
		return MinConfidence
	}
	deltas := make([]float64, len(values)-1)
	var meanDelta float64
	for i := 1; i < len(values); i++ {
		deltas[i-1] = values[i] - values[i-1]
		meanDelta += deltas[i-1]
	}
	meanDelta /= float64(len(deltas))

	var variance float64
	for _, d := range deltas {
		variance += (d - meanDelta) * (d - meanDelta)
	}
	variance /= float64(len(deltas))

	var level float64
	for _, v := range values {
		level += v
	}
	level /= float64(len(values))

	return math.Max(MinConfidence, 1/(1+variance/(level*level+1)))
}

func weightedSeverity(days []types.DailyAggregate) float64 {
	var sum float64
	var weight int
	for _, d := range days {
		sum += d.AvgSeverity * float64(d.Count)
		weight += d.Count
	}
	if weight == 0 {
		return 0
	}
	return sum / float64(weight)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Package anomaly flags clusters whose metrics sit far from the population mean.
package anomaly

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go-outbreak/types"
)

const (
	DefaultThreshold = 2.0
	minPopulation    = 3
	maxConfidence    = 0.99
	spreadEpsilon    = 1e-9
)

type Metric string

const (
	MetricCaseCount        Metric = "caseCount"
	MetricGrowthRate       Metric = "growthRate"
	MetricRiskScore        Metric = "riskScore"
	MetricAvgSeverity      Metric = "avgSeverity"
	MetricSymptomDiversity Metric = "symptomDiversity"
)

// metricTypes maps the triggering metric to the anomaly classification.
var metricTypes = map[Metric]types.AnomalyType{
	MetricCaseCount:        types.AnomalySpatial,
	MetricGrowthRate:       types.AnomalyTemporal,
	MetricRiskScore:        types.AnomalySeverity,
	MetricAvgSeverity:      types.AnomalySeverity,
	MetricSymptomDiversity: types.AnomalyPattern,
}

var recommendedActions = map[types.AnomalyType][]string{
	types.AnomalySpatial: {
		"Verify report locations with local health offices",
		"Expand surveillance to neighboring areas",
	},
	types.AnomalyTemporal: {
		"Review reporting timeline for the affected area",
		"Increase monitoring frequency",
	},
	types.AnomalySeverity: {
		"Prioritize clinical assessment of reported cases",
		"Alert nearby healthcare facilities",
	},
	types.AnomalyPattern: {
		"Review symptom combinations with epidemiologists",
		"Collect samples for laboratory confirmation",
	},
}

type Options struct {
	Threshold float64
	Metrics   []Metric
}

func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Metrics: []Metric{MetricCaseCount}}
}

// ParseMetrics reads a comma-separated metric list such as "caseCount,growthRate".
// An empty list means the default case count metric.
func ParseMetrics(list string) ([]Metric, error) {
	var out []Metric
	seen := make(map[Metric]bool)
	for _, part := range strings.Split(list, ",") {
		m := Metric(strings.TrimSpace(part))
		if m == "" || seen[m] {
			continue
		}
		if _, ok := metricTypes[m]; !ok {
			return nil, &types.ValidationError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", m)}
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return []Metric{MetricCaseCount}, nil
	}
	return out, nil
}

func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold <= 0 {
		return &types.ValidationError{Field: "threshold", Reason: "must be positive"}
	}
	for _, m := range o.Metrics {
		if _, ok := metricTypes[m]; !ok {
			return &types.ValidationError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", m)}
		}
	}
	return nil
}

// Detect returns one anomaly per (cluster, metric) whose |z| exceeds the threshold.
// Fewer than three clusters, or a metric with zero spread, yields nothing.
func Detect(clusters []types.OutbreakCluster, opts Options, now time.Time) ([]types.Anomaly, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = []Metric{MetricCaseCount}
	}

	anomalies := []types.Anomaly{}
	if len(clusters) < minPopulation {
		return anomalies, nil
	}

	for _, m := range metrics {
		values := make([]float64, len(clusters))
		for i, c := range clusters {
			values[i] = metricValue(c, m)
		}
		mean, stddev := populationStats(values)
		if !hasSpread(values, mean, stddev) {
			continue
		}

		for i, c := range clusters {
			z := (values[i] - mean) / stddev
			if math.Abs(z) <= opts.Threshold {
				continue
			}
			anomalies = append(anomalies, newAnomaly(c, m, values[i], mean, z, opts.Threshold, now))
		}
	}
	return anomalies, nil
}

func newAnomaly(c types.OutbreakCluster, m Metric, value, mean, z, threshold float64, now time.Time) types.Anomaly {
	kind := metricTypes[m]
	direction := "above"
	if z < 0 {
		direction = "below"
	}
	where := c.LocationLabel
	if where == "" {
		where = types.FormatCoordinate(c.Centroid)
	}

	actions := make([]string, len(recommendedActions[kind]))
	copy(actions, recommendedActions[kind])

	return types.Anomaly{
		Type:               kind,
		Severity:           SeverityFor(z, threshold),
		ClusterID:          c.ID,
		Description:        fmt.Sprintf("Cluster near %s has %s %.2f, %.1f standard deviations %s the mean of %.2f", where, m, value, math.Abs(z), direction, mean),
		Location:           c.Centroid,
		LocationLabel:      c.LocationLabel,
		Metric:             string(m),
		Value:              value,
		ZScore:             z,
		Confidence:         Confidence(z),
		DetectedAt:         now,
		RecommendedActions: actions,
	}
}

// SeverityFor grades how far |z| overshoots the threshold.
func SeverityFor(z, threshold float64) types.AnomalySeverityLevel {
	excess := math.Abs(z) - threshold
	switch {
	case excess >= 2:
		return types.AnomalyCritical
	case excess >= 1:
		return types.AnomalyHigh
	case excess >= 0.5:
		return types.AnomalyMedium
	default:
		return types.AnomalyLow
	}
}

// Confidence grows with |z| and approaches but never reaches 1.
func Confidence(z float64) float64 {
	a := math.Abs(z)
	return math.Min(maxConfidence, a/(a+1))
}

func metricValue(c types.OutbreakCluster, m Metric) float64 {
	switch m {
	case MetricGrowthRate:
		return c.GrowthRate
	case MetricRiskScore:
		return c.RiskScore
	case MetricAvgSeverity:
		return c.AvgSeverity
	case MetricSymptomDiversity:
		return float64(len(c.DominantSymptoms))
	default:
		return float64(c.MemberCount)
	}
}

// hasSpread reports whether the values differ enough for a z-score to mean anything.
// Equal values that are not exactly representable leave a rounding residue in stddev.
func hasSpread(values []float64, mean, stddev float64) bool {
	if math.IsNaN(stddev) || stddev <= spreadEpsilon*math.Max(1, math.Abs(mean)) {
		return false
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return true
		}
	}
	return false
}

func populationStats(values []float64) (mean, stddev float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

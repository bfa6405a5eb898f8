package types

import "time"

type AnomalyType string

const (
	AnomalySpatial  AnomalyType = "spatial"
	AnomalyTemporal AnomalyType = "temporal"
	AnomalySeverity AnomalyType = "severity"
	AnomalyPattern  AnomalyType = "pattern"
)

type AnomalySeverityLevel string

const (
	AnomalyLow      AnomalySeverityLevel = "low"
	AnomalyMedium   AnomalySeverityLevel = "medium"
	AnomalyHigh     AnomalySeverityLevel = "high"
	AnomalyCritical AnomalySeverityLevel = "critical"
)

// Anomaly lives for one response cycle only.
type Anomaly struct {
	Type               AnomalyType          `json:"type"`
	Severity           AnomalySeverityLevel `json:"severity"`
	ClusterID          string               `json:"clusterId"`
	Description        string               `json:"description"`
	Location           Point                `json:"location"`
	LocationLabel      string               `json:"locationLabel,omitempty"`
	Metric             string               `json:"metric"`
	Value              float64              `json:"value"`
	ZScore             float64              `json:"zScore"`
	Confidence         float64              `json:"confidence"`
	DetectedAt         time.Time            `json:"detectedAt"`
	RecommendedActions []string             `json:"recommendedActions"`
}

type AnomalySummary struct {
	TotalAnomalies int `json:"totalAnomalies"`
	CriticalCount  int `json:"criticalCount"`
	HighCount      int `json:"highCount"`
	MediumCount    int `json:"mediumCount"`
	LowCount       int `json:"lowCount"`
}

type AnomalyReport struct {
	Anomalies []Anomaly      `json:"anomalies"`
	Summary   AnomalySummary `json:"summary"`
}

func SummarizeAnomalies(anomalies []Anomaly) AnomalySummary {
	s := AnomalySummary{TotalAnomalies: len(anomalies)}
	for _, a := range anomalies {
		switch a.Severity {
		case AnomalyCritical:
			s.CriticalCount++
		case AnomalyHigh:
			s.HighCount++
		case AnomalyMedium:
			s.MediumCount++
		default:
			s.LowCount++
		}
	}
	return s
}

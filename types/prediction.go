package types

import "time"

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type ForecastPoint struct {
	Date           time.Time `json:"date"`
	PredictedCases int       `json:"predictedCases"`
	Lower          int       `json:"lower"`
	Upper          int       `json:"upper"`
	RiskLevel      RiskLevel `json:"riskLevel"`
}

// Prediction is a cached forecast. Points has exactly HorizonDays entries and
// Confidence stays within [0.3, 0.95].
type Prediction struct {
	Region       BoundingBox     `json:"region"`
	Disease      string          `json:"disease,omitempty"`
	HorizonDays  int             `json:"horizonDays"`
	Points       []ForecastPoint `json:"points"`
	Confidence   float64         `json:"confidence"`
	Degraded     bool            `json:"degraded"`
	ModelVersion string          `json:"modelVersion"`
	GeneratedAt  time.Time       `json:"generatedAt"`
	ExpiresAt    time.Time       `json:"expiresAt"`
}

package types

import "time"

type AlertLevel string

const (
	AlertHigh     AlertLevel = "high"
	AlertCritical AlertLevel = "critical"
)

// HealthAlert is persisted. Acknowledged is flipped by the authorization-gated
// collaborator only; the engine writes it as false and never touches it again.
type HealthAlert struct {
	ID                 string     `firestore:"-" json:"id"`
	ClusterID          string     `firestore:"clusterId" json:"clusterId"`
	Level              AlertLevel `firestore:"level" json:"level"`
	Title              string     `firestore:"title" json:"title"`
	Description        string     `firestore:"description" json:"description"`
	AffectedRegions    []string   `firestore:"affectedRegions" json:"affectedRegions"`
	EstimatedImpact    string     `firestore:"estimatedImpact" json:"estimatedImpact"`
	RecommendedActions []string   `firestore:"recommendedActions" json:"recommendedActions"`
	RiskScore          float64    `firestore:"riskScore" json:"riskScore"`
	Acknowledged       bool       `firestore:"acknowledged" json:"acknowledged"`
	CreatedAt          time.Time  `firestore:"createdAt" json:"createdAt"`
	ExpiresAt          time.Time  `firestore:"expiresAt" json:"expiresAt"`
}

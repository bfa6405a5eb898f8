package types

import "time"

type SeverityTier string

const (
	TierNormal     SeverityTier = "normal"
	TierUnusual    SeverityTier = "unusual"
	TierConcerning SeverityTier = "concerning"
	TierCritical   SeverityTier = "critical"
)

// OutbreakCluster is fully derived from one detection run and never patched in place.
type OutbreakCluster struct {
	ID               string       `firestore:"-" json:"id"`
	Generation       int64        `firestore:"generation" json:"generation"`
	Centroid         Point        `firestore:"centroid" json:"centroid"`
	RadiusDeg        float64      `firestore:"radiusDeg" json:"radiusDeg"`
	BoundingBox      BoundingBox  `firestore:"boundingBox" json:"boundingBox"`
	MemberCount      int          `firestore:"memberCount" json:"memberCount"`
	MemberIDs        []string     `firestore:"memberIds" json:"memberIds"`
	DominantSymptoms []string     `firestore:"dominantSymptoms" json:"dominantSymptoms"`
	AvgSeverity      float64      `firestore:"avgSeverity" json:"avgSeverity"`
	Tier             SeverityTier `firestore:"tier" json:"tier"`
	RiskScore        float64      `firestore:"riskScore" json:"riskScore"`
	GrowthRate       float64      `firestore:"growthRate" json:"growthRate"`
	LocationLabel    string       `firestore:"locationLabel" json:"locationLabel"`
	FirstDetectedAt  time.Time    `firestore:"firstDetectedAt" json:"firstDetectedAt"`
	DetectedAt       time.Time    `firestore:"detectedAt" json:"detectedAt"`
}

// OutbreakClusterSummary is the slim projection returned by a detection run.
type OutbreakClusterSummary struct {
	ID               string       `json:"id"`
	Centroid         Point        `json:"centroid"`
	MemberCount      int          `json:"memberCount"`
	DominantSymptoms []string     `json:"dominantSymptoms"`
	Tier             SeverityTier `json:"tier"`
	RiskScore        float64      `json:"riskScore"`
	LocationLabel    string       `json:"locationLabel"`
}

func (c OutbreakCluster) Summary() OutbreakClusterSummary {
	return OutbreakClusterSummary{
		ID:               c.ID,
		Centroid:         c.Centroid,
		MemberCount:      c.MemberCount,
		DominantSymptoms: c.DominantSymptoms,
		Tier:             c.Tier,
		RiskScore:        c.RiskScore,
		LocationLabel:    c.LocationLabel,
	}
}

// DetectionResult is what detectOutbreaks hands to the transport layer.
type DetectionResult struct {
	Generation      int64                    `json:"generation"`
	ClustersFound   int                      `json:"clustersFound"`
	CriticalCount   int                      `json:"criticalCount"`
	ConcerningCount int                      `json:"concerningCount"`
	AlertsCreated   int                      `json:"alertsCreated"`
	Clusters        []OutbreakClusterSummary `json:"clusters"`
	Warnings        []string                 `json:"warnings,omitempty"`
}

package alerts

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-outbreak/types"
)

const (
	RiskThreshold = 75.0
	DefaultExpiry = 72 * time.Hour

	impactHorizonDays = 7
)

var alertNamespace = uuid.MustParse("b3d9e4f0-2c61-5a8e-8f17-4e0c9a2d6b53")

// RecommendedActions is attached to every alert.
var RecommendedActions = []string{
	"Deploy field investigation team",
	"Increase surveillance in affected area",
	"Prepare containment measures",
	"Notify public health authorities",
}

var levelTitles = map[types.AlertLevel]string{
	types.AlertHigh:     "High",
	types.AlertCritical: "Critical",
}

// ShouldAlert is true for critical clusters and any cluster scoring above RiskThreshold.
func ShouldAlert(c types.OutbreakCluster) bool {
	return c.Tier == types.TierCritical || c.RiskScore > RiskThreshold
}

// AlertID is derived from the cluster id so reruns over the same cluster map to the same alert.
func AlertID(clusterID string) string {
	return uuid.NewSHA1(alertNamespace, []byte(clusterID)).String()
}

// Generate projects the qualifying clusters into alerts. Clusters are read, never modified.
func Generate(clusters []types.OutbreakCluster, now time.Time, expiry time.Duration) []types.HealthAlert {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	out := []types.HealthAlert{}
	for _, c := range clusters {
		if !ShouldAlert(c) {
			continue
		}
		out = append(out, newAlert(c, now, expiry))
	}
	return out
}

func newAlert(c types.OutbreakCluster, now time.Time, expiry time.Duration) types.HealthAlert {
	level := types.AlertHigh
	if c.Tier == types.TierCritical {
		level = types.AlertCritical
	}

	region := c.LocationLabel
	if region == "" {
		region = types.FormatCoordinate(c.Centroid)
	}

	symptoms := "unspecified symptoms"
	if len(c.DominantSymptoms) > 0 {
		symptoms = strings.Join(c.DominantSymptoms, ", ")
	}

	description := fmt.Sprintf("%d reports of %s within %.2f° of %s (risk score %.1f, average severity %.1f).",
		c.MemberCount, symptoms, c.RadiusDeg, types.FormatCoordinate(c.Centroid), c.RiskScore, c.AvgSeverity)

	actions := make([]string, len(RecommendedActions))
	copy(actions, RecommendedActions)

	return types.HealthAlert{
		ID:                 AlertID(c.ID),
		ClusterID:          c.ID,
		Level:              level,
		Title:              fmt.Sprintf("%s outbreak risk near %s", levelTitles[level], region),
		Description:        description,
		AffectedRegions:    []string{region},
		EstimatedImpact:    EstimatedImpact(c.MemberCount, c.GrowthRate),
		RecommendedActions: actions,
		RiskScore:          c.RiskScore,
		Acknowledged:       false,
		CreatedAt:          now,
		ExpiresAt:          now.Add(expiry),
	}
}

// EstimatedImpact describes the current size and a naive one-week projection at the current growth rate.
func EstimatedImpact(memberCount int, growthRate float64) string {
	projected := memberCount + int(math.Round(growthRate*impactHorizonDays))
	scale := "localized"
	switch {
	case projected >= 100:
		scale = "widespread"
	case projected >= 25:
		scale = "regional"
	}
	return fmt.Sprintf("%d reported cases growing at %.1f per day; about %d cases within %d days (%s)",
		memberCount, growthRate, projected, impactHorizonDays, scale)
}

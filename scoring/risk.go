// Package scoring turns a cluster's membership into a 0-100 risk score and a severity tier.
package scoring

import (
	"errors"
	"math"
	"time"

	"go-outbreak/types"
)

const (
	severityWeight = 40.0
	densityWeight  = 35.0
	recencyWeight  = 25.0

	recencyWindowDays = 14.0

	criticalThreshold   = 80.0
	concerningThreshold = 65.0
	unusualThreshold    = 45.0
)

var errNoMembers = errors.New("cluster has no members")

type Result struct {
	RiskScore float64            `json:"riskScore"`
	Tier      types.SeverityTier `json:"tier"`
}

// Factors exposes the three weighted inputs, mostly for logging and tests.
type Factors struct {
	Severity float64
	Density  float64
	Recency  float64
}

// Score is a pure function of the members: severity, density (log10 of the
// member count) and recency over a 14 day window.
func Score(members []types.SymptomReport, now time.Time) (Result, error) {
	f, err := ComputeFactors(members, now)
	if err != nil {
		return Result{}, err
	}

	risk := math.Min(100, f.Severity*severityWeight+f.Density*densityWeight+f.Recency*recencyWeight)
	if math.IsNaN(risk) || math.IsInf(risk, 0) {
		return Result{}, &types.ComputationError{Stage: "scoring", Err: errors.New("risk score is not a finite number")}
	}
	return Result{RiskScore: risk, Tier: TierFor(risk)}, nil
}

// ComputeFactors sums in integers so the result does not depend on member order.
func ComputeFactors(members []types.SymptomReport, now time.Time) (Factors, error) {
	if len(members) == 0 {
		return Factors{}, &types.ComputationError{Stage: "scoring", Err: errNoMembers}
	}

	var severitySum, ageSeconds int64
	for _, r := range members {
		severitySum += int64(r.Severity)
		age := now.Sub(r.CreatedAt)
		if age > 0 {
			ageSeconds += int64(age / time.Second)
		}
	}

	n := float64(len(members))
	avgSeverity := float64(severitySum) / n
	avgAgeDays := float64(ageSeconds) / n / 86400

	return Factors{
		Severity: avgSeverity / 10,
		Density:  math.Log10(n),
		Recency:  clamp(1-avgAgeDays/recencyWindowDays, 0, 1),
	}, nil
}

// TierFor maps a risk score to its tier. Each lower bound is exclusive.
func TierFor(risk float64) types.SeverityTier {
	switch {
	case risk > criticalThreshold:
		return types.TierCritical
	case risk > concerningThreshold:
		return types.TierConcerning
	case risk > unusualThreshold:
		return types.TierUnusual
	default:
		return types.TierNormal
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

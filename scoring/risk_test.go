package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-outbreak/types"
)

var now = time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC)

func members(ageHours float64, severities ...int) []types.SymptomReport {
	out := make([]types.SymptomReport, len(severities))
	for i, s := range severities {
		out[i] = types.SymptomReport{
			ID:        string(rune('a' + i)),
			Severity:  s,
			CreatedAt: now.Add(-time.Duration(ageHours * float64(time.Hour))),
		}
	}
	return out
}

func TestScore_FormulaComponents(t *testing.T) {
	res, err := Score(members(24, 8, 7, 9), now)
	require.NoError(t, err)

	want := 0.8*40 + math.Log10(3)*35 + (1-1.0/14)*25
	assert.InDelta(t, want, res.RiskScore, 1e-9)
	assert.Equal(t, types.TierConcerning, res.Tier)
}

func TestScore_CapsAtHundred(t *testing.T) {
	sev := make([]int, 1000)
	for i := range sev {
		sev[i] = 10
	}
	res, err := Score(members(0, sev...), now)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.RiskScore)
	assert.Equal(t, types.TierCritical, res.Tier)
}

func TestScore_OldReportsLoseRecency(t *testing.T) {
	res, err := Score(members(24*30, 5, 5), now)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*40+math.Log10(2)*35, res.RiskScore, 1e-9)
}

func TestScore_FutureTimestampsCountAsFresh(t *testing.T) {
	res, err := Score(members(-48, 10), now)
	require.NoError(t, err)
	assert.InDelta(t, 40+25, res.RiskScore, 1e-9)
}

func TestScore_MonotonicInSeverity(t *testing.T) {
	prev := -1.0
	for s := 1; s <= 10; s++ {
		res, err := Score(members(36, s, s, s, s), now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.RiskScore, prev, "severity %d", s)
		prev = res.RiskScore
	}
}

func TestScore_StableUnderReordering(t *testing.T) {
	m := members(0, 3, 9, 4, 7, 1, 10, 2)
	for i := range m {
		m[i].CreatedAt = now.Add(-time.Duration(i*7+3) * time.Hour)
	}
	first, err := Score(m, now)
	require.NoError(t, err)

	reversed := make([]types.SymptomReport, len(m))
	for i := range m {
		reversed[len(m)-1-i] = m[i]
	}
	second, err := Score(reversed, now)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScore_EmptyMembersIsComputationError(t *testing.T) {
	_, err := Score(nil, now)
	var cerr *types.ComputationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "scoring", cerr.Stage)
}

func TestTierFor_ExclusiveBounds(t *testing.T) {
	assert.Equal(t, types.TierNormal, TierFor(45))
	assert.Equal(t, types.TierUnusual, TierFor(45.01))
	assert.Equal(t, types.TierUnusual, TierFor(65))
	assert.Equal(t, types.TierConcerning, TierFor(65.5))
	assert.Equal(t, types.TierConcerning, TierFor(80))
	assert.Equal(t, types.TierCritical, TierFor(80.1))
}

package forecast

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-outbreak/types"
)

func samplePrediction(t *testing.T) types.Prediction {
	cases := make([]int, 14)
	for i := range cases {
		cases[i] = 50 + i
	}
	trend, err := Project(dailySeries(testNow.AddDate(0, 0, -14), cases, 5), 10, testNow)
	require.NoError(t, err)
	return types.Prediction{Points: trend.Points, Confidence: trend.Confidence, HorizonDays: 10}
}

func TestApplyJitter_ZeroAmplitudeIsIdentity(t *testing.T) {
	p := samplePrediction(t)
	assert.Equal(t, p, ApplyJitter(p, 0, rand.New(rand.NewSource(1))))
}

func TestApplyJitter_StaysWithinAmplitudeAndCopies(t *testing.T) {
	p := samplePrediction(t)
	original := append([]types.ForecastPoint(nil), p.Points...)

	out := ApplyJitter(p, 0.2, rand.New(rand.NewSource(99)))

	require.Len(t, out.Points, len(p.Points))
	assert.Equal(t, original, p.Points, "input must not be modified")
	assert.Equal(t, p.Confidence, out.Confidence)
	for i, pt := range out.Points {
		base := float64(original[i].PredictedCases)
		assert.GreaterOrEqual(t, float64(pt.PredictedCases), base*0.8-1)
		assert.LessOrEqual(t, float64(pt.PredictedCases), base*1.2+1)
		assert.LessOrEqual(t, pt.Lower, pt.PredictedCases)
		assert.GreaterOrEqual(t, pt.Upper, pt.PredictedCases)
		assert.Equal(t, original[i].RiskLevel, pt.RiskLevel)
		assert.Equal(t, original[i].Date, pt.Date)
	}
}

func TestApplyJitter_SeededIsReproducible(t *testing.T) {
	p := samplePrediction(t)
	a := ApplyJitter(p, 0.2, rand.New(rand.NewSource(5)))
	b := ApplyJitter(p, 0.2, rand.New(rand.NewSource(5)))
	assert.Equal(t, a, b)
}

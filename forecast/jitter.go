package forecast

import (
	"math"
	"math/rand"

	"go-outbreak/types"
)

// ApplyJitter returns a copy of p with every predicted count scaled by a random
// factor in [1-amplitude, 1+amplitude] and its interval recomputed. Risk levels
// and confidence are left as computed. An amplitude of zero returns p untouched.
func ApplyJitter(p types.Prediction, amplitude float64, rng *rand.Rand) types.Prediction {
	if amplitude <= 0 || rng == nil {
		return p
	}
	if amplitude > 1 {
		amplitude = 1
	}

	out := p
	out.Points = make([]types.ForecastPoint, len(p.Points))
	for i, pt := range p.Points {
		factor := 1 + amplitude*(2*rng.Float64()-1)
		predicted := int(math.Round(float64(pt.PredictedCases) * factor))
		if predicted < 0 {
			predicted = 0
		}
		jittered := pointFor(pt.Date, predicted, 0)
		jittered.RiskLevel = pt.RiskLevel
		out.Points[i] = jittered
	}
	return out
}

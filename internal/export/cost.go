package export

import "bpsim/proto/predictor"

// costWeights is an illustrative relative lookup latency per predictor, in arbitrary units.
// It is not measured and plays no part in scoring.
var costWeights = map[predictor.Kind]float64{
	predictor.AlwaysTaken: 1,
	predictor.NeverTaken:  1,
	predictor.Bimodal:     2,
	predictor.GShare:      3,
	predictor.Perceptron:  8,
	predictor.TAGE:        6,
}

// CostWeight returns the static cost figure shown next to each predictor. Unknown kinds cost 0.
func CostWeight(k predictor.Kind) float64 {
	return costWeights[k]
}

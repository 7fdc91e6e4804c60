package engine

import "math"

// SharpeRatio computes the ratio of mean to standard deviation over a set of
// per-trade pnls. Fewer than two trades or zero variance yields 0.
func SharpeRatio(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}

	var sum float64
	for _, p := range pnls {
		sum += p
	}
	mean := sum / float64(len(pnls))

	var variance float64
	for _, p := range pnls {
		diff := p - mean
		variance += diff * diff
	}
	std := math.Sqrt(variance / float64(len(pnls)))

	if std == 0 {
		return 0
	}
	return mean / std
}

package indicator

import "math"

// RegressionSlope returns the least-squares slope of the series, in value
// units per index step. NaN for fewer than two points.
func RegressionSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := float64(n)*sumXX - sumX*sumX
	if denom == 0 {
		return math.NaN()
	}
	return (float64(n)*sumXY - sumX*sumY) / denom
}

// NormalizedSlope divides the regression slope by the window midpoint value
// so trends are comparable across price scales. Used as a flatness test.
func NormalizedSlope(values []float64) float64 {
	slope := RegressionSlope(values)
	if math.IsNaN(slope) {
		return math.NaN()
	}
	mid := values[len(values)/2]
	if mid == 0 {
		return math.NaN()
	}
	return slope / mid
}

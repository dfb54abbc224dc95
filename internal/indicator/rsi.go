package indicator

import "math"

// RSI computes the Wilder-smoothed RSI over the whole close series and
// returns the latest value. Requires at least period+1 closes; returns NaN
// otherwise. avgLoss == 0 is reported as 100.
func RSI(closes []float64, period int) float64 {
	series := RSISeries(closes, period)
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// RSISeries returns the Wilder RSI at every index of the close series.
// Indices before the warm-up window (period deltas) hold NaN. The divergence
// detector needs the value at arbitrary swing indices, not just the edge.
func RSISeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	out := make([]float64, len(closes))
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
	}

	// Initial averages over the first `period` deltas.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	// Recursive smoothing for the rest.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

package detector

import (
	"math"

	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/indicator"
)

// MATrendParams tunes the watchlist (rising moving average) check.
type MATrendParams struct {
	Period  int // moving average length
	Points  int // trailing MA samples compared
	Spacing int // candles between consecutive samples
}

func DefaultMATrendParams() MATrendParams {
	return MATrendParams{Period: 50, Points: 5, Spacing: 3}
}

// RisingMA samples the moving average at Points trailing offsets and flags a
// rising trend when at least Points-2 of the consecutive deltas increase and
// the newest sample exceeds the oldest.
func RisingMA(candles []domain.Candle, p MATrendParams) bool {
	closes := domain.Closes(candles)

	samples := make([]float64, p.Points)
	for i := 0; i < p.Points; i++ {
		offset := (p.Points - 1 - i) * p.Spacing
		v := indicator.SMAAt(closes, p.Period, offset)
		if math.IsNaN(v) {
			return false
		}
		samples[i] = v
	}

	rising := 0
	for i := 1; i < len(samples); i++ {
		if samples[i] > samples[i-1] {
			rising++
		}
	}
	return rising >= p.Points-2 && samples[len(samples)-1] > samples[0]
}

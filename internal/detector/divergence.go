package detector

import (
	"math"

	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/indicator"
)

// DivergenceParams tunes the swing-high search for one timeframe.
type DivergenceParams struct {
	Lookback      int     // candles on each side a swing high must dominate
	RecencyWindow int     // max candles between the latest swing and series end
	RSIPeriod     int
	MinRSIGap     float64 // required RSI drop between the two swing highs
}

// DefaultHourlyDivergence matches the hourly scan parameters.
func DefaultHourlyDivergence() DivergenceParams {
	return DivergenceParams{Lookback: 5, RecencyWindow: 8, RSIPeriod: 14, MinRSIGap: 2}
}

// DefaultFastDivergence matches the 5-minute scan parameters.
func DefaultFastDivergence() DivergenceParams {
	return DivergenceParams{Lookback: 5, RecencyWindow: 12, RSIPeriod: 14, MinRSIGap: 2}
}

// BearishDivergence reports whether the two most recent swing highs show
// price making a higher high while RSI makes a lower high.
//
// The RSI gap rejection is strict (< MinRSIGap): a drop of exactly
// MinRSIGap is accepted.
func BearishDivergence(candles []domain.Candle, p DivergenceParams) bool {
	rsi := indicator.RSISeries(domain.Closes(candles), p.RSIPeriod)
	if rsi == nil {
		return false
	}
	return bearishDivergenceWithRSI(candles, rsi, p)
}

func bearishDivergenceWithRSI(candles []domain.Candle, rsi []float64, p DivergenceParams) bool {
	swings := swingHighs(candles, p.Lookback)
	if len(swings) < 2 {
		return false
	}

	recent := swings[len(swings)-1]
	prev := swings[len(swings)-2]

	if len(candles)-1-recent > p.RecencyWindow {
		return false
	}
	if recent-prev < 2*p.Lookback {
		return false
	}
	if candles[recent].High <= candles[prev].High {
		return false // no higher high in price
	}

	if math.IsNaN(rsi[prev]) || math.IsNaN(rsi[recent]) {
		return false
	}
	if rsi[prev]-rsi[recent] < p.MinRSIGap {
		return false
	}
	return true
}

// swingHighs returns the indices whose high strictly exceeds every high
// within lookback candles on both sides.
func swingHighs(candles []domain.Candle, lookback int) []int {
	var out []int
	for i := lookback; i < len(candles)-lookback; i++ {
		h := candles[i].High
		isSwing := true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= h {
				isSwing = false
				break
			}
		}
		if isSwing {
			out = append(out, i)
		}
	}
	return out
}

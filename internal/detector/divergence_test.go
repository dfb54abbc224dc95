package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maketruthy/boxscan/internal/domain"
)

// twoSwingCandles builds 60 candles with swing highs at index 20 (high 110)
// and index 50 (high recentHigh).
func twoSwingCandles(recentHigh float64) []domain.Candle {
	out := make([]domain.Candle, 60)
	for i := range out {
		out[i] = domain.Candle{
			Time: int64(i) * 3600, Open: 99, High: 100, Low: 98, Close: 99.5, Volume: 1,
		}
	}
	out[20].High = 110
	out[50].High = recentHigh
	return out
}

func flatRSI(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base
	}
	return out
}

func divParams() DivergenceParams {
	return DivergenceParams{Lookback: 5, RecencyWindow: 10, RSIPeriod: 14, MinRSIGap: 2}
}

func TestSwingHighs(t *testing.T) {
	candles := twoSwingCandles(112)
	swings := swingHighs(candles, 5)
	assert.Equal(t, []int{20, 50}, swings)
}

func TestBearishDivergence_GapBoundary(t *testing.T) {
	candles := twoSwingCandles(112) // price higher high
	p := divParams()

	// RSI lower high by exactly 2.0: accepted (rejection is strictly < 2).
	rsi := flatRSI(60, 50)
	rsi[20] = 70
	rsi[50] = 68
	assert.True(t, bearishDivergenceWithRSI(candles, rsi, p))

	// RSI gap 1.9: rejected.
	rsi[50] = 68.1
	assert.False(t, bearishDivergenceWithRSI(candles, rsi, p))
}

func TestBearishDivergence_RequiresHigherHighInPrice(t *testing.T) {
	candles := twoSwingCandles(108) // recent swing lower than previous
	rsi := flatRSI(60, 50)
	rsi[20] = 70
	rsi[50] = 60
	assert.False(t, bearishDivergenceWithRSI(candles, rsi, divParams()))
}

func TestBearishDivergence_RecencyWindow(t *testing.T) {
	candles := twoSwingCandles(112)
	rsi := flatRSI(60, 50)
	rsi[20] = 70
	rsi[50] = 60

	p := divParams()
	p.RecencyWindow = 5 // recent swing is 9 candles from the end
	assert.False(t, bearishDivergenceWithRSI(candles, rsi, p))
}

func TestBearishDivergence_SwingSeparation(t *testing.T) {
	// Swings at 43 and 50: only 7 candles apart, less than 2*lookback = 10.
	candles := make([]domain.Candle, 60)
	for i := range candles {
		candles[i] = domain.Candle{High: 100, Low: 98, Open: 99, Close: 99.5}
	}
	candles[43].High = 110
	candles[50].High = 112

	rsi := flatRSI(60, 50)
	rsi[43] = 70
	rsi[50] = 60
	assert.False(t, bearishDivergenceWithRSI(candles, rsi, divParams()))
}

func TestBearishDivergence_TooShortSeries(t *testing.T) {
	candles := twoSwingCandles(112)[:10]
	assert.False(t, BearishDivergence(candles, divParams()))
}

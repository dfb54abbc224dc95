package indicator

import (
	"math"

	"github.com/maketruthy/boxscan/internal/domain"
)

// SMA returns the simple moving average of the trailing period values.
// Returns NaN when there is not enough data.
func SMA(values []float64, period int) float64 {
	return SMAAt(values, period, 0)
}

// SMAAt computes the SMA ending `offset` values before the end of the
// series. offset 0 is the latest value.
func SMAAt(values []float64, period, offset int) float64 {
	if period <= 0 || offset < 0 || len(values) < period+offset {
		return math.NaN()
	}
	end := len(values) - offset
	sum := 0.0
	for i := end - period; i < end; i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// VWMA returns the volume-weighted moving average of the trailing period
// candles. Falls back to NaN on short input or zero total volume.
func VWMA(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return math.NaN()
	}
	var priceVol, vol float64
	for _, c := range candles[len(candles)-period:] {
		priceVol += c.Close * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return math.NaN()
	}
	return priceVol / vol
}

// VWMAAt computes the VWMA ending offset candles before the end of the series.
func VWMAAt(candles []domain.Candle, period, offset int) float64 {
	if offset < 0 || len(candles) < offset {
		return math.NaN()
	}
	return VWMA(candles[:len(candles)-offset], period)
}

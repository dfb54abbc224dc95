package indicator

import (
	"math"

	"github.com/maketruthy/boxscan/internal/domain"
)

const (
	tenkanPeriod  = 9
	kijunPeriod   = 26
	spanBPeriod   = 52
	cloudShift    = 26 // the cloud as currently displayed, not the live edge
	cloudNearMult = 0.98
)

// IchimokuCloudTop returns max(Span A, Span B) evaluated cloudShift candles
// back from the series end, i.e. the cloud boundary under the latest candle.
// Returns NaN when the series is too short.
func IchimokuCloudTop(candles []domain.Candle) float64 {
	idx := len(candles) - 1 - cloudShift
	if idx < spanBPeriod-1 {
		return math.NaN()
	}

	tenkan := midpointHighLow(candles, idx, tenkanPeriod)
	kijun := midpointHighLow(candles, idx, kijunPeriod)
	spanA := (tenkan + kijun) / 2
	spanB := midpointHighLow(candles, idx, spanBPeriod)

	return math.Max(spanA, spanB)
}

// ClassifyCloud places price relative to the cloud top: at or above the top
// is "above", within nearMult of it is "near", anything else "below".
// NaN cloud tops classify as unknown.
func ClassifyCloud(price, cloudTop float64) domain.CloudStatus {
	if math.IsNaN(cloudTop) || cloudTop <= 0 {
		return domain.CloudUnknown
	}
	switch {
	case price >= cloudTop:
		return domain.CloudAbove
	case price >= cloudTop*cloudNearMult:
		return domain.CloudNear
	default:
		return domain.CloudBelow
	}
}

// midpointHighLow is the Ichimoku line primitive: (highest high + lowest
// low)/2 over the period ending at index i inclusive.
func midpointHighLow(candles []domain.Candle, i, period int) float64 {
	hi := math.Inf(-1)
	lo := math.Inf(1)
	for j := i - period + 1; j <= i; j++ {
		if candles[j].High > hi {
			hi = candles[j].High
		}
		if candles[j].Low < lo {
			lo = candles[j].Low
		}
	}
	return (hi + lo) / 2
}

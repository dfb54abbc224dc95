package detector

import (
	"math"

	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/indicator"
)

// PullbackParams tunes the trigger-candle search on the daily timeframe.
type PullbackParams struct {
	TriggerWindow int     // daily candles searched for a trigger
	MinBodyPct    float64 // trigger candle body vs its open
	VolMult       float64 // trigger candle volume vs baseline mean
	VolBaseline   int     // daily candles forming the volume baseline
	NearPct       float64 // distance from an average that still counts as "at support"
	FlatTolerance float64 // relative MA drop still considered flat
	RisingOffset  int     // candles back for the rising-average comparison
}

func DefaultPullbackParams() PullbackParams {
	return PullbackParams{
		TriggerWindow: 7,
		MinBodyPct:    0.07,
		VolMult:       10,
		VolBaseline:   20,
		NearPct:       0.03,
		FlatTolerance: 0.002,
		RisingOffset:  5,
	}
}

// PullbackScan looks for a recent high-volume trigger candle on the daily
// series and, when found, classifies what the current pullback leans on.
// It runs for every symbol, including ones the cloud filter later discards.
func PullbackScan(daily []domain.Candle, currentPrice float64, p PullbackParams) domain.PullbackSignal {
	ratio, age, found := findTrigger(daily, p)
	if !found {
		return domain.PullbackSignal{Triggered: false, Kind: domain.PullbackNone}
	}

	sig := domain.PullbackSignal{
		Triggered:    true,
		Kind:         domain.PullbackNone,
		TriggerRatio: ratio,
		TriggerAge:   age,
	}
	sig.Kind = classifyPullback(daily, currentPrice, p)
	return sig
}

// findTrigger scans the newest TriggerWindow daily candles for one with a
// body of at least MinBodyPct and volume VolMult times the baseline mean.
func findTrigger(daily []domain.Candle, p PullbackParams) (ratio float64, age int, found bool) {
	last := len(daily) - 1
	for i := last; i >= last-p.TriggerWindow+1 && i >= p.VolBaseline; i-- {
		c := daily[i]
		if c.Open == 0 || c.Body()/c.Open < p.MinBodyPct {
			continue
		}
		var sum float64
		for j := i - p.VolBaseline; j < i; j++ {
			sum += daily[j].Volume
		}
		mean := sum / float64(p.VolBaseline)
		if mean == 0 {
			continue
		}
		r := c.Volume / mean
		if r >= p.VolMult {
			return r, last - i, true
		}
	}
	return 0, 0, false
}

// classifyPullback checks TREND_110, then SUPPORT_50, then SUPPORT_180, in
// that priority order.
func classifyPullback(daily []domain.Candle, price float64, p PullbackParams) domain.PullbackKind {
	vwma := indicator.VWMA(daily, 110)
	vwmaPrev := indicator.VWMAAt(daily, 110, p.RisingOffset)
	if !math.IsNaN(vwma) && !math.IsNaN(vwmaPrev) && vwma > vwmaPrev && price > vwma {
		return domain.PullbackTrend110
	}

	closes := domain.Closes(daily)
	for _, period := range []int{50, 180} {
		ma := indicator.SMAAt(closes, period, 0)
		maPrev := indicator.SMAAt(closes, period, p.RisingOffset)
		if math.IsNaN(ma) || math.IsNaN(maPrev) {
			continue
		}
		flatOrRising := ma >= maPrev*(1-p.FlatTolerance)
		if flatOrRising && withinPct(price, ma, p.NearPct) {
			if period == 50 {
				return domain.PullbackSupport50
			}
			return domain.PullbackSupport180
		}
	}
	return domain.PullbackNone
}

package detector

import (
	"fmt"

	"github.com/maketruthy/boxscan/internal/domain"
)

// VolumeSpikeParams tunes the abnormal-volume scan.
type VolumeSpikeParams struct {
	Window   int     // newest candles to inspect
	Baseline int     // preceding candles forming the volume baseline
	MinRatio float64 // spike threshold vs baseline mean
}

func DefaultVolumeSpikeParams() VolumeSpikeParams {
	return VolumeSpikeParams{Window: 50, Baseline: 20, MinRatio: 20}
}

// VolumeSpikeScan walks backward through the newest Window candles and
// returns the most recent candle whose volume is at least MinRatio times
// the mean of the Baseline candles before it. Nil when no spike exists.
func VolumeSpikeScan(candles []domain.Candle, p VolumeSpikeParams) *domain.VolumeSpike {
	last := len(candles) - 1
	oldest := len(candles) - p.Window
	if oldest < p.Baseline {
		oldest = p.Baseline
	}

	for i := last; i >= oldest; i-- {
		var sum float64
		for j := i - p.Baseline; j < i; j++ {
			sum += candles[j].Volume
		}
		mean := sum / float64(p.Baseline)
		if mean == 0 {
			continue
		}
		ratio := candles[i].Volume / mean
		if ratio >= p.MinRatio {
			ago := last - i
			return &domain.VolumeSpike{
				Ratio:      ratio,
				CandlesAgo: ago,
				Age:        ageLabel(ago),
			}
		}
	}
	return nil
}

func ageLabel(candlesAgo int) string {
	if candlesAgo == 0 {
		return "current"
	}
	return fmt.Sprintf("%d candles ago", candlesAgo)
}

package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maketruthy/boxscan/internal/detector"
	"github.com/maketruthy/boxscan/internal/domain"
)

// rangeBoundCandles builds a series oscillating inside [100, 110] with a few
// long bullish candles that pin levels at both edges.
func rangeBoundCandles() []domain.Candle {
	var out []domain.Candle
	for i := 0; i < 74; i++ {
		if i%20 == 10 {
			// long bullish candle: body 10 vs ~1 average
			out = append(out, domain.Candle{
				Time: int64(i) * 3600, Open: 100, High: 110.5, Low: 99.9, Close: 110, Volume: 5,
			})
			continue
		}
		out = append(out, domain.Candle{
			Time: int64(i) * 3600, Open: 104, High: 110, Low: 100, Close: 105, Volume: 1,
		})
	}
	return out
}

func TestFindLevels_ClustersAndClassifies(t *testing.T) {
	candles := rangeBoundCandles()
	p := detector.DefaultBoxParams()

	levels := detector.FindLevels(candles, candles, candles, candles, 105, p)
	require.Len(t, levels, 2)

	assert.InDelta(t, 100, levels[0].Price, 0.5)
	assert.Equal(t, domain.LevelSupport, levels[0].Kind)
	assert.InDelta(t, 110, levels[1].Price, 0.5)
	assert.Equal(t, domain.LevelResistance, levels[1].Kind)
	assert.GreaterOrEqual(t, levels[0].Touches, p.MinTouches)
	assert.GreaterOrEqual(t, levels[1].Touches, p.MinTouches)
}

func TestDetectBoxes_FindsRangeBox(t *testing.T) {
	candles := rangeBoundCandles()
	p := detector.DefaultBoxParams()

	levels := detector.FindLevels(candles, candles, candles, candles, 105, p)
	boxes := detector.DetectBoxes(levels, candles, p)
	require.NotEmpty(t, boxes)

	best := boxes[0]
	assert.Greater(t, best.Top, best.Bottom)
	assert.Equal(t, domain.BoxSupportResistance, best.Kind)
	assert.GreaterOrEqual(t, best.CandlesInRange, p.MinCandlesInBox)
	assert.Greater(t, best.Score, 0.0)
}

func TestDetectBoxes_Idempotent(t *testing.T) {
	candles := rangeBoundCandles()
	p := detector.DefaultBoxParams()

	levels := detector.FindLevels(candles, candles, candles, candles, 105, p)
	first := detector.DetectBoxes(levels, candles, p)
	second := detector.DetectBoxes(levels, candles, p)
	require.Equal(t, first, second, "identical input must yield the identical ordered list")
}

func TestDetectBoxes_RejectsTrendingSeries(t *testing.T) {
	// Straight uptrend: no level pair keeps enough candle midpoints inside.
	var candles []domain.Candle
	for i := 0; i < 80; i++ {
		price := 100 + float64(i)*2
		candles = append(candles, domain.Candle{
			Time: int64(i) * 3600, Open: price, High: price + 1, Low: price - 1, Close: price + 0.5, Volume: 1,
		})
	}
	p := detector.DefaultBoxParams()
	levels := detector.FindLevels(candles, candles, candles, candles, 260, p)
	boxes := detector.DetectBoxes(levels, candles, p)
	assert.Empty(t, boxes)
}

func TestClassifyPosition(t *testing.T) {
	p := detector.DefaultBoxParams()
	box := domain.BoxRange{Top: 110, Bottom: 100}

	pos, pct := detector.ClassifyPosition(105, box, p)
	assert.Equal(t, domain.PositionMiddle, pos)
	assert.InDelta(t, 50, pct, 0.001)

	pos, _ = detector.ClassifyPosition(109, box, p)
	assert.Equal(t, domain.PositionTop, pos)

	pos, _ = detector.ClassifyPosition(101, box, p)
	assert.Equal(t, domain.PositionBottom, pos)

	pos, _ = detector.ClassifyPosition(114, box, p) // > 110 * 1.03
	assert.Equal(t, domain.PositionBreakout, pos)

	pos, _ = detector.ClassifyPosition(96, box, p) // < 100 * 0.97
	assert.Equal(t, domain.PositionBelow, pos)
}

func TestBoxInfo_NoBoxCarriesNoFields(t *testing.T) {
	// Too little data for any level: HasBox false and zeroed box fields.
	candles := []domain.Candle{{Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1}}
	info := detector.BoxInfo(candles, candles, candles, candles, 100, detector.DefaultBoxParams())
	assert.False(t, info.HasBox)
	assert.Zero(t, info.Top)
	assert.Zero(t, info.Bottom)
	assert.Empty(t, info.Position)
}

func TestBoxInfo_FullPipeline(t *testing.T) {
	candles := rangeBoundCandles()
	info := detector.BoxInfo(candles, candles, candles, candles, 105, detector.DefaultBoxParams())
	require.True(t, info.HasBox)
	assert.Equal(t, domain.PositionMiddle, info.Position)
	assert.Greater(t, info.Top, info.Bottom)
}

package detector

import (
	"math"
	"sort"

	"github.com/maketruthy/boxscan/internal/domain"
)

// BoxParams holds the hand-tuned thresholds of the box detector. The near/
// breakout percentages carry no structural meaning, they are configuration.
type BoxParams struct {
	BodyMult        float64 // long bullish candle: body vs average body
	ClusterPct      float64 // max relative difference inside one level cluster
	TouchPct        float64 // candle-to-level distance that counts as a touch
	MinTouches      int     // levels with fewer touches are discarded
	MinRangePct     float64 // box range / midpoint lower bound
	MaxRangePct     float64 // box range / midpoint upper bound
	RecentWindow    int     // target candles considered for occupancy
	MinCandlesInBox int     // minimum midpoints inside the box
	BreakoutPct     float64 // price beyond top/bottom by this much leaves the box
}

func DefaultBoxParams() BoxParams {
	return BoxParams{
		BodyMult:        2.0,
		ClusterPct:      0.01,
		TouchPct:        0.015,
		MinTouches:      3,
		MinRangePct:     0.01,
		MaxRangePct:     0.20,
		RecentWindow:    72,
		MinCandlesInBox: 10,
		BreakoutPct:     0.03,
	}
}

// FindLevels extracts clustered support/resistance levels from long bullish
// candles on three timeframes and scores them by touch count on the target
// timeframe. Levels are returned sorted by price ascending.
func FindLevels(short, medium, long, target []domain.Candle, currentPrice float64, p BoxParams) []domain.PriceLevel {
	var raw []float64
	for _, set := range [][]domain.Candle{short, medium, long} {
		raw = append(raw, longBullishLevels(set, p.BodyMult)...)
	}
	if len(raw) == 0 {
		return nil
	}
	sort.Float64s(raw)

	clustered := clusterLevels(raw, p.ClusterPct)

	levels := make([]domain.PriceLevel, 0, len(clustered))
	for _, price := range clustered {
		touches := countTouches(target, price, p.TouchPct)
		if touches < p.MinTouches {
			continue
		}
		kind := domain.LevelSupport
		if price >= currentPrice {
			kind = domain.LevelResistance
		}
		levels = append(levels, domain.PriceLevel{Price: price, Touches: touches, Kind: kind})
	}
	return levels
}

// longBullishLevels returns the open and close of every candle whose body is
// at least bodyMult times the set's average body and which closed up.
func longBullishLevels(candles []domain.Candle, bodyMult float64) []float64 {
	if len(candles) == 0 {
		return nil
	}
	var sum float64
	for _, c := range candles {
		sum += c.Body()
	}
	avg := sum / float64(len(candles))
	if avg == 0 {
		return nil
	}

	var out []float64
	for _, c := range candles {
		if c.Bullish() && c.Body() >= bodyMult*avg {
			out = append(out, c.Open, c.Close)
		}
	}
	return out
}

// clusterLevels merges sorted prices whose relative difference from the
// cluster start is within clusterPct, replacing each cluster with its mean.
func clusterLevels(sorted []float64, clusterPct float64) []float64 {
	var out []float64
	i := 0
	for i < len(sorted) {
		j := i + 1
		sum := sorted[i]
		for j < len(sorted) && relDiff(sorted[j], sorted[i]) <= clusterPct {
			sum += sorted[j]
			j++
		}
		out = append(out, sum/float64(j-i))
		i = j
	}
	return out
}

func relDiff(a, b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / b
}

// countTouches counts target candles with any of open/high/low/close within
// touchPct of the level.
func countTouches(candles []domain.Candle, level, touchPct float64) int {
	if level == 0 {
		return 0
	}
	n := 0
	for _, c := range candles {
		if withinPct(c.Open, level, touchPct) || withinPct(c.High, level, touchPct) ||
			withinPct(c.Low, level, touchPct) || withinPct(c.Close, level, touchPct) {
			n++
		}
	}
	return n
}

func withinPct(price, level, pct float64) bool {
	return math.Abs(price-level)/level <= pct
}

// DetectBoxes pairs adjacent levels into candidate consolidation boxes and
// ranks them by score descending. Identical input always yields the
// identical ordered list.
func DetectBoxes(levels []domain.PriceLevel, target []domain.Candle, p BoxParams) []domain.BoxRange {
	if len(levels) < 2 {
		return nil
	}

	recent := target
	if len(recent) > p.RecentWindow {
		recent = recent[len(recent)-p.RecentWindow:]
	}

	var boxes []domain.BoxRange
	for i := 0; i+1 < len(levels); i++ {
		bottom, top := levels[i], levels[i+1]
		mid := (top.Price + bottom.Price) / 2
		rangePct := (top.Price - bottom.Price) / mid
		if rangePct < p.MinRangePct || rangePct > p.MaxRangePct {
			continue
		}

		inRange := 0
		for _, c := range recent {
			m := c.Midpoint()
			if m >= bottom.Price && m <= top.Price {
				inRange++
			}
		}
		if inRange < p.MinCandlesInBox {
			continue
		}

		score := float64(bottom.Touches+top.Touches) * float64(inRange) / float64(p.RecentWindow)
		boxes = append(boxes, domain.BoxRange{
			Top:            top.Price,
			Bottom:         bottom.Price,
			Kind:           boxKind(bottom.Kind, top.Kind),
			CandlesInRange: inRange,
			Score:          score,
		})
	}

	sort.SliceStable(boxes, func(i, j int) bool { return boxes[i].Score > boxes[j].Score })
	return boxes
}

func boxKind(bottom, top domain.LevelKind) domain.BoxKind {
	switch {
	case bottom == domain.LevelSupport && top == domain.LevelSupport:
		return domain.BoxSupportSupport
	case bottom == domain.LevelSupport:
		return domain.BoxSupportResistance
	default:
		return domain.BoxResistanceResistance
	}
}

// ClassifyPosition locates price relative to the box. The percentile is only
// meaningful for in-box positions.
func ClassifyPosition(price float64, box domain.BoxRange, p BoxParams) (domain.BoxPosition, float64) {
	switch {
	case price > box.Top*(1+p.BreakoutPct):
		return domain.PositionBreakout, 0
	case price < box.Bottom*(1-p.BreakoutPct):
		return domain.PositionBelow, 0
	}

	pct := (price - box.Bottom) / (box.Top - box.Bottom) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	switch {
	case pct >= 66:
		return domain.PositionTop, pct
	case pct >= 33:
		return domain.PositionMiddle, pct
	default:
		return domain.PositionBottom, pct
	}
}

// BoxInfo runs the full level + box pipeline for one target timeframe and
// folds the best box into a TimeframeBoxInfo.
func BoxInfo(short, medium, long, target []domain.Candle, currentPrice float64, p BoxParams) domain.TimeframeBoxInfo {
	levels := FindLevels(short, medium, long, target, currentPrice, p)
	boxes := DetectBoxes(levels, target, p)
	if len(boxes) == 0 {
		return domain.TimeframeBoxInfo{HasBox: false}
	}

	best := boxes[0]
	pos, pct := ClassifyPosition(currentPrice, best, p)
	return domain.TimeframeBoxInfo{
		HasBox:      true,
		Top:         best.Top,
		Bottom:      best.Bottom,
		Score:       best.Score,
		Kind:        best.Kind,
		Position:    pos,
		PositionPct: pct,
	}
}

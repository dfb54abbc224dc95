package domain

import "time"

// LevelKind classifies a clustered price level relative to the current price.
type LevelKind string

const (
	LevelSupport    LevelKind = "support"
	LevelResistance LevelKind = "resistance"
)

// PriceLevel is a clustered support/resistance level with its touch count.
type PriceLevel struct {
	Price   float64   `json:"price"`
	Touches int       `json:"touches"`
	Kind    LevelKind `json:"kind"`
}

// BoxKind describes which kinds of levels bound a box.
type BoxKind string

const (
	BoxSupportSupport       BoxKind = "support-support"
	BoxSupportResistance    BoxKind = "support-resistance"
	BoxResistanceResistance BoxKind = "resistance-resistance"
)

// BoxRange is a consolidation band between two adjacent levels. Top > Bottom always.
type BoxRange struct {
	Top            float64 `json:"top"`
	Bottom         float64 `json:"bottom"`
	Kind           BoxKind `json:"kind"`
	CandlesInRange int     `json:"candles_in_range"`
	Score          float64 `json:"score"`
}

// BoxPosition locates the current price relative to a box.
type BoxPosition string

const (
	PositionBreakout BoxPosition = "breakout"
	PositionTop      BoxPosition = "top"
	PositionMiddle   BoxPosition = "middle"
	PositionBottom   BoxPosition = "bottom"
	PositionBelow    BoxPosition = "below"
)

// TimeframeBoxInfo is the per-timeframe box summary. Box fields are only
// meaningful when HasBox is true.
type TimeframeBoxInfo struct {
	HasBox      bool        `json:"has_box"`
	Top         float64     `json:"top,omitempty"`
	Bottom      float64     `json:"bottom,omitempty"`
	Score       float64     `json:"score,omitempty"`
	Kind        BoxKind     `json:"kind,omitempty"`
	Position    BoxPosition `json:"position,omitempty"`
	PositionPct float64     `json:"position_pct,omitempty"`
}

// CloudStatus is the price position relative to the Ichimoku cloud top.
type CloudStatus string

const (
	CloudAbove   CloudStatus = "above"
	CloudNear    CloudStatus = "near"
	CloudBelow   CloudStatus = "below"
	CloudUnknown CloudStatus = "unknown"
)

// VolumeSpike records the most recent abnormal-volume candle.
type VolumeSpike struct {
	Ratio      float64 `json:"ratio"`
	CandlesAgo int     `json:"candles_ago"`
	Age        string  `json:"age"`
}

// PullbackKind classifies which average the current pullback leans on.
type PullbackKind string

const (
	PullbackTrend110   PullbackKind = "TREND_110"
	PullbackSupport50  PullbackKind = "SUPPORT_50"
	PullbackSupport180 PullbackKind = "SUPPORT_180"
	PullbackNone       PullbackKind = "NONE"
)

// PullbackSignal is computed for every symbol, including ones the cloud
// filter short-circuits.
type PullbackSignal struct {
	Triggered    bool         `json:"triggered"`
	Kind         PullbackKind `json:"kind"`
	TriggerRatio float64      `json:"trigger_ratio,omitempty"` // trigger candle volume vs 20d average
	TriggerAge   int          `json:"trigger_age,omitempty"`   // daily candles since the trigger
}

// SymbolAnalysis is the full per-symbol scan output. A new scan pass
// supersedes the previous value, it never mutates it.
type SymbolAnalysis struct {
	Symbol       string                         `json:"symbol"`
	Venue        Venue                          `json:"venue"`
	QuoteVolume  float64                        `json:"quote_volume"`
	CurrentPrice float64                        `json:"current_price"`
	Boxes        map[Timeframe]TimeframeBoxInfo `json:"timeframes"`
	BoxCount     int                            `json:"box_count"`
	Cloud1H      CloudStatus                    `json:"cloud_1h"`
	Cloud4H      CloudStatus                    `json:"cloud_4h"`
	VolumeSpike  *VolumeSpike                   `json:"volume_spike,omitempty"`
	Watchlist    bool                           `json:"watchlist"`
	Pullback     PullbackSignal                 `json:"pullback"`
	Divergence   bool                           `json:"divergence"`
	AnalyzedAt   time.Time                      `json:"analyzed_at"`
}

// HasSignal reports whether the symbol carries anything worth showing.
// Symbols with no signal at all are dropped from the snapshot.
func (a *SymbolAnalysis) HasSignal() bool {
	return a.BoxCount > 0 || a.Pullback.Triggered || a.Divergence ||
		a.VolumeSpike != nil || a.Watchlist
}

// ConfluenceScore ranks multi-timeframe cloud agreement.
func (a *SymbolAnalysis) ConfluenceScore() int {
	switch {
	case a.Cloud1H == CloudAbove && a.Cloud4H == CloudAbove:
		return 3
	case a.Cloud1H == CloudAbove && a.Cloud4H == CloudNear:
		return 2
	case a.Cloud1H == CloudAbove:
		return 1
	default:
		return 0
	}
}

// ScanSnapshot is the single most recent (possibly partial) ranked result
// set. It is replaced wholesale after every batch; readers never see a
// half-written value.
type ScanSnapshot struct {
	Results       []SymbolAnalysis `json:"results"`
	TotalAnalyzed int              `json:"total_analyzed"`
	FoundCount    int              `json:"found_count"`
	LastUpdated   time.Time        `json:"last_updated"`
	InProgress    bool             `json:"in_progress"`
}

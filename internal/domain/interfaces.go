package domain

import (
	"context"
	"time"
)

// CandleSource fetches OHLCV candles from one venue. Implementations must
// return candles oldest first and surface venue throttling as a
// distinguishable error so callers can retry.
type CandleSource interface {
	Venue() Venue
	Candles(ctx context.Context, market string, tf Timeframe, count int) ([]Candle, error)
}

// UniverseProvider lists the tradable symbols to scan, deduplicated across
// venues and sorted by trailing quote volume.
type UniverseProvider interface {
	Markets(ctx context.Context) ([]MarketTicker, error)
}

// CycleStats summarizes one completed scan cycle for the history log.
type CycleStats struct {
	StartedAt     time.Time
	Duration      time.Duration
	UniverseSize  int
	Analyzed      int
	Matched       int
	CacheHits     int
	FetchFailures int
}

// ScanRecorder persists per-cycle operational stats. Analysis results
// themselves are not persisted.
type ScanRecorder interface {
	RecordCycle(ctx context.Context, stats CycleStats) error
	Close() error
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maketruthy/boxscan/internal/detector"
	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/indicator"
	"github.com/maketruthy/boxscan/internal/infrastructure/exchange"
	"github.com/maketruthy/boxscan/internal/ratelimit"
)

// candleCounts is how much history each timeframe fetch asks for. The daily
// series must cover the 180-day support average; everything else fits in one
// venue page.
var candleCounts = map[domain.Timeframe]int{
	domain.Timeframe5m:  200,
	domain.Timeframe30m: 200,
	domain.Timeframe1h:  200,
	domain.Timeframe4h:  200,
	domain.Timeframe1d:  200,
}

// levelSources maps a target timeframe to the three timeframes its
// support/resistance levels are extracted from. Coarser frames repeat when
// nothing coarser exists, which doubles their weight the same way the level
// clustering favors them anyway.
var levelSources = map[domain.Timeframe][3]domain.Timeframe{
	domain.Timeframe5m:  {domain.Timeframe5m, domain.Timeframe30m, domain.Timeframe1h},
	domain.Timeframe30m: {domain.Timeframe30m, domain.Timeframe1h, domain.Timeframe4h},
	domain.Timeframe1h:  {domain.Timeframe1h, domain.Timeframe4h, domain.Timeframe1d},
	domain.Timeframe4h:  {domain.Timeframe4h, domain.Timeframe1d, domain.Timeframe1d},
	domain.Timeframe1d:  {domain.Timeframe1d, domain.Timeframe1d, domain.Timeframe1d},
}

// AnalyzerParams bundles every detector threshold plus the retry policy.
type AnalyzerParams struct {
	Box              detector.BoxParams
	HourlyDivergence detector.DivergenceParams
	FastDivergence   detector.DivergenceParams
	VolumeSpike      detector.VolumeSpikeParams
	MATrend          detector.MATrendParams
	Pullback         detector.PullbackParams

	RateLimitRetries int           // extra attempts after a throttled fetch
	RetryBackoff     time.Duration // multiplied by the attempt number
}

func DefaultAnalyzerParams() AnalyzerParams {
	return AnalyzerParams{
		Box:              detector.DefaultBoxParams(),
		HourlyDivergence: detector.DefaultHourlyDivergence(),
		FastDivergence:   detector.DefaultFastDivergence(),
		VolumeSpike:      detector.DefaultVolumeSpikeParams(),
		MATrend:          detector.DefaultMATrendParams(),
		Pullback:         detector.DefaultPullbackParams(),
		RateLimitRetries: 2,
		RetryBackoff:     5 * time.Second,
	}
}

// Analyzer runs the full multi-timeframe analysis for one symbol, fetching
// candles through the per-venue slot limiters.
type Analyzer struct {
	sources  map[domain.Venue]domain.CandleSource
	limiters map[domain.Venue]*ratelimit.SlotLimiter
	params   AnalyzerParams
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error // injectable for tests
}

func NewAnalyzer(
	sources map[domain.Venue]domain.CandleSource,
	limiters map[domain.Venue]*ratelimit.SlotLimiter,
	params AnalyzerParams,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		sources:  sources,
		limiters: limiters,
		params:   params,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Analyze performs the two-phase fetch-and-filter analysis.
//
// Phase 1 fetches the 1h and 1d series, always computes the pullback signal,
// and classifies the hourly Ichimoku cloud. Symbols below the cloud get a
// minimal result without any further network calls. Phase 2 fetches the
// remaining timeframes and runs the full detector suite.
func (a *Analyzer) Analyze(ctx context.Context, ticker domain.MarketTicker) (*domain.SymbolAnalysis, error) {
	h1, err := a.fetch(ctx, ticker, domain.Timeframe1h)
	if err != nil {
		return nil, err
	}
	if len(h1) == 0 {
		return nil, fmt.Errorf("%s: empty 1h series", ticker.Symbol)
	}
	daily, err := a.fetch(ctx, ticker, domain.Timeframe1d)
	if err != nil {
		return nil, err
	}

	price := h1[len(h1)-1].Close

	result := &domain.SymbolAnalysis{
		Symbol:       ticker.Symbol,
		Venue:        ticker.Venue,
		QuoteVolume:  ticker.QuoteVolume,
		CurrentPrice: price,
		Boxes:        make(map[domain.Timeframe]domain.TimeframeBoxInfo),
		Cloud1H:      indicator.ClassifyCloud(price, indicator.IchimokuCloudTop(h1)),
		Cloud4H:      domain.CloudUnknown,
		Pullback:     detector.PullbackScan(daily, price, a.params.Pullback),
	}

	// Cloud filter: below (or unclassifiable) short-circuits phase 2. The
	// pullback signal above is kept either way, that is intentional.
	if result.Cloud1H != domain.CloudAbove && result.Cloud1H != domain.CloudNear {
		return result, nil
	}

	m5, err := a.fetch(ctx, ticker, domain.Timeframe5m)
	if err != nil {
		return nil, err
	}
	m30, err := a.fetch(ctx, ticker, domain.Timeframe30m)
	if err != nil {
		return nil, err
	}
	h4, err := a.fetch(ctx, ticker, domain.Timeframe4h)
	if err != nil {
		return nil, err
	}

	byTF := map[domain.Timeframe][]domain.Candle{
		domain.Timeframe5m:  m5,
		domain.Timeframe30m: m30,
		domain.Timeframe1h:  h1,
		domain.Timeframe4h:  h4,
		domain.Timeframe1d:  daily,
	}

	result.Cloud4H = indicator.ClassifyCloud(price, indicator.IchimokuCloudTop(h4))

	for _, tf := range domain.AllTimeframes {
		src := levelSources[tf]
		info := detector.BoxInfo(byTF[src[0]], byTF[src[1]], byTF[src[2]], byTF[tf], price, a.params.Box)
		result.Boxes[tf] = info
		if info.HasBox {
			result.BoxCount++
		}
	}

	// Divergence only counts when both timeframes agree.
	result.Divergence = detector.BearishDivergence(h1, a.params.HourlyDivergence) &&
		detector.BearishDivergence(m5, a.params.FastDivergence)

	result.VolumeSpike = detector.VolumeSpikeScan(h1, a.params.VolumeSpike)
	result.Watchlist = detector.RisingMA(h1, a.params.MATrend)

	return result, nil
}

// fetch reserves a venue rate-limit slot, waits it out, then fetches one
// candle series. Throttled fetches are retried with linear backoff; any
// other error is returned as is.
func (a *Analyzer) fetch(ctx context.Context, ticker domain.MarketTicker, tf domain.Timeframe) ([]domain.Candle, error) {
	source, ok := a.sources[ticker.Venue]
	if !ok {
		return nil, fmt.Errorf("no candle source for venue %s", ticker.Venue)
	}

	var lastErr error
	for attempt := 0; attempt <= a.params.RateLimitRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * a.params.RetryBackoff
			a.logger.Debug("rate limited, backing off",
				zap.String("symbol", ticker.Symbol), zap.String("timeframe", string(tf)),
				zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
			if err := a.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if limiter := a.limiters[ticker.Venue]; limiter != nil {
			if err := a.sleep(ctx, limiter.Consume()); err != nil {
				return nil, err
			}
		}

		candles, err := source.Candles(ctx, ticker.Market, tf, candleCounts[tf])
		if err == nil {
			return candles, nil
		}
		if !errors.Is(err, exchange.ErrRateLimited) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%s %s: %w", ticker.Symbol, tf, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

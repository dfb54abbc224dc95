package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/infrastructure/exchange"
	"github.com/maketruthy/boxscan/internal/ratelimit"
)

// scriptedSource serves canned candle series per timeframe and can be told
// to throttle its first N calls.
type scriptedSource struct {
	mu            sync.Mutex
	venue         domain.Venue
	series        map[domain.Timeframe][]domain.Candle
	fail          map[domain.Timeframe]error
	throttleFirst int
	calls         []domain.Timeframe
}

func (s *scriptedSource) Venue() domain.Venue { return s.venue }

func (s *scriptedSource) Candles(_ context.Context, _ string, tf domain.Timeframe, _ int) ([]domain.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, tf)
	if s.throttleFirst > 0 {
		s.throttleFirst--
		return nil, exchange.ErrRateLimited
	}
	if err := s.fail[tf]; err != nil {
		return nil, err
	}
	return s.series[tf], nil
}

func (s *scriptedSource) callLog() []domain.Timeframe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Timeframe(nil), s.calls...)
}

// flatSeries is n identical candles. The cloud top of a flat series equals
// the price, which classifies as above.
func flatSeries(n int, price float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			Time: int64(i) * 3600, Open: price, High: price, Low: price, Close: price, Volume: 1,
		}
	}
	return out
}

// belowCloudSeries drops from high to low partway through, leaving the
// latest close well under the displayed cloud.
func belowCloudSeries(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		price := 200.0
		if i >= n-50 {
			price = 100.0
		}
		out[i] = domain.Candle{
			Time: int64(i) * 3600, Open: price, High: price, Low: price, Close: price, Volume: 1,
		}
	}
	return out
}

// spikeSeries is a flat series whose last candle carries abnormal volume.
func spikeSeries(n int, price, lastVolume float64) []domain.Candle {
	out := flatSeries(n, price)
	out[n-1].Volume = lastVolume
	return out
}

func allFlat(n int, price float64) map[domain.Timeframe][]domain.Candle {
	m := make(map[domain.Timeframe][]domain.Candle, len(domain.AllTimeframes))
	for _, tf := range domain.AllTimeframes {
		m[tf] = flatSeries(n, price)
	}
	return m
}

func newTestAnalyzer(src *scriptedSource, params AnalyzerParams) *Analyzer {
	a := NewAnalyzer(
		map[domain.Venue]domain.CandleSource{src.venue: src},
		map[domain.Venue]*ratelimit.SlotLimiter{},
		params,
		zap.NewNop(),
	)
	a.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return a
}

func testTicker() domain.MarketTicker {
	return domain.MarketTicker{
		Symbol: "AAA", Market: "KRW-AAA", QuoteVolume: 1e9, Venue: domain.VenueUpbit,
	}
}

func TestAnalyze_BelowCloudShortCircuits(t *testing.T) {
	src := &scriptedSource{
		venue: domain.VenueUpbit,
		series: map[domain.Timeframe][]domain.Candle{
			domain.Timeframe1h: belowCloudSeries(200),
			domain.Timeframe1d: flatSeries(200, 100),
		},
	}
	a := newTestAnalyzer(src, DefaultAnalyzerParams())

	res, err := a.Analyze(context.Background(), testTicker())
	require.NoError(t, err)

	assert.Equal(t, domain.CloudBelow, res.Cloud1H)
	assert.Equal(t, domain.CloudUnknown, res.Cloud4H)
	assert.Equal(t, 0, res.BoxCount)
	assert.Empty(t, res.Boxes)

	// Only the hourly and daily series were fetched.
	assert.Equal(t, []domain.Timeframe{domain.Timeframe1h, domain.Timeframe1d}, src.callLog())
}

func TestAnalyze_PullbackComputedBelowCloud(t *testing.T) {
	daily := flatSeries(200, 100)
	// 8% body on 50x baseline volume, 4 days back.
	daily[195] = domain.Candle{
		Time: 195 * 3600, Open: 100, High: 108.5, Low: 99.5, Close: 108, Volume: 50,
	}
	src := &scriptedSource{
		venue: domain.VenueUpbit,
		series: map[domain.Timeframe][]domain.Candle{
			domain.Timeframe1h: belowCloudSeries(200),
			domain.Timeframe1d: daily,
		},
	}
	a := newTestAnalyzer(src, DefaultAnalyzerParams())

	res, err := a.Analyze(context.Background(), testTicker())
	require.NoError(t, err)

	assert.Equal(t, domain.CloudBelow, res.Cloud1H)
	assert.True(t, res.Pullback.Triggered)
	assert.Equal(t, domain.PullbackSupport50, res.Pullback.Kind)
	assert.True(t, res.HasSignal())
	assert.Len(t, src.callLog(), 2)
}

func TestAnalyze_FullPass(t *testing.T) {
	series := allFlat(200, 100)
	series[domain.Timeframe1h] = spikeSeries(200, 100, 100)
	src := &scriptedSource{venue: domain.VenueUpbit, series: series}
	a := newTestAnalyzer(src, DefaultAnalyzerParams())

	res, err := a.Analyze(context.Background(), testTicker())
	require.NoError(t, err)

	assert.Equal(t, domain.CloudAbove, res.Cloud1H)
	assert.Equal(t, domain.CloudAbove, res.Cloud4H)
	assert.Equal(t, 100.0, res.CurrentPrice)

	require.NotNil(t, res.VolumeSpike)
	assert.InDelta(t, 100, res.VolumeSpike.Ratio, 0.001)
	assert.Equal(t, "current", res.VolumeSpike.Age)

	assert.False(t, res.Divergence)
	assert.False(t, res.Watchlist)
	assert.Len(t, res.Boxes, len(domain.AllTimeframes))
	assert.Equal(t, 0, res.BoxCount)

	assert.Len(t, src.callLog(), 5)
}

func TestAnalyze_RateLimitRetry(t *testing.T) {
	src := &scriptedSource{
		venue:         domain.VenueUpbit,
		series:        allFlat(200, 100),
		throttleFirst: 2,
	}
	a := newTestAnalyzer(src, DefaultAnalyzerParams())

	var backoffs []time.Duration
	a.sleep = func(ctx context.Context, d time.Duration) error {
		if d > 0 {
			backoffs = append(backoffs, d)
		}
		return nil
	}

	_, err := a.Analyze(context.Background(), testTicker())
	require.NoError(t, err)

	// The hourly fetch was attempted three times with linear backoff.
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, backoffs)
	assert.Len(t, src.callLog(), 7)
}

func TestAnalyze_RateLimitExhausted(t *testing.T) {
	src := &scriptedSource{
		venue:         domain.VenueUpbit,
		series:        allFlat(200, 100),
		throttleFirst: 100,
	}
	a := newTestAnalyzer(src, DefaultAnalyzerParams())
	a.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := a.Analyze(context.Background(), testTicker())
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrRateLimited)

	// Initial attempt plus two retries, then give up.
	assert.Len(t, src.callLog(), 3)
}

func TestAnalyze_OtherErrorsNotRetried(t *testing.T) {
	boom := errors.New("candle decode failed")
	src := &scriptedSource{
		venue:  domain.VenueUpbit,
		series: allFlat(200, 100),
		fail:   map[domain.Timeframe]error{domain.Timeframe1d: boom},
	}
	a := newTestAnalyzer(src, DefaultAnalyzerParams())

	_, err := a.Analyze(context.Background(), testTicker())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []domain.Timeframe{domain.Timeframe1h, domain.Timeframe1d}, src.callLog())
}

func TestAnalyze_UnknownVenue(t *testing.T) {
	a := NewAnalyzer(
		map[domain.Venue]domain.CandleSource{},
		map[domain.Venue]*ratelimit.SlotLimiter{},
		DefaultAnalyzerParams(),
		zap.NewNop(),
	)
	_, err := a.Analyze(context.Background(), testTicker())
	require.Error(t, err)
}

package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/infrastructure/exchange"
)

// majorCoins are excluded from the scan universe: the box strategy targets
// mid/low caps, not the heavily arbitraged majors.
var majorCoins = map[string]bool{
	"BTC": true, "ETH": true, "XRP": true, "USDT": true, "USDC": true,
	"BNB": true, "SOL": true, "ADA": true, "DOGE": true, "TRX": true,
	"DOT": true, "MATIC": true, "AVAX": true, "LINK": true, "UNI": true,
	"ATOM": true, "LTC": true, "BCH": true, "ETC": true, "XLM": true,
}

// UniverseService merges Upbit and Bithumb KRW markets into one ranked,
// deduplicated symbol list. The list is cached briefly and served stale when
// the venues are unreachable.
type UniverseService struct {
	upbit   *exchange.UpbitSource
	bithumb *exchange.BithumbSource
	logger  *zap.Logger

	ttl  time.Duration
	topN int

	mu        sync.Mutex
	cached    []domain.MarketTicker
	fetchedAt time.Time
	timeNow   func() time.Time // for testing
}

func NewUniverseService(upbit *exchange.UpbitSource, bithumb *exchange.BithumbSource, ttl time.Duration, topN int, logger *zap.Logger) *UniverseService {
	return &UniverseService{
		upbit:   upbit,
		bithumb: bithumb,
		logger:  logger,
		ttl:     ttl,
		topN:    topN,
		timeNow: time.Now,
	}
}

// Markets returns the ranked universe. A fresh cached list is returned as
// is; on live-fetch failure the stale list is served if one exists.
func (s *UniverseService) Markets(ctx context.Context) ([]domain.MarketTicker, error) {
	s.mu.Lock()
	if s.cached != nil && s.timeNow().Sub(s.fetchedAt) < s.ttl {
		out := s.cached
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	fresh, err := s.fetch(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cached != nil {
			s.logger.Warn("universe fetch failed, serving stale list",
				zap.Error(err), zap.Duration("age", s.timeNow().Sub(s.fetchedAt)))
			return s.cached, nil
		}
		return nil, fmt.Errorf("fetch universe: %w", err)
	}

	s.mu.Lock()
	s.cached = fresh
	s.fetchedAt = s.timeNow()
	s.mu.Unlock()
	return fresh, nil
}

func (s *UniverseService) fetch(ctx context.Context) ([]domain.MarketTicker, error) {
	krwMarkets, err := s.upbit.KRWMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("upbit markets: %w", err)
	}
	upbitVolumes, err := s.upbit.Tickers(ctx, krwMarkets)
	if err != nil {
		return nil, fmt.Errorf("upbit tickers: %w", err)
	}

	var universe []domain.MarketTicker
	seen := make(map[string]bool)

	for market, volume := range upbitVolumes {
		symbol := strings.TrimPrefix(market, "KRW-")
		if majorCoins[symbol] {
			continue
		}
		seen[symbol] = true
		universe = append(universe, domain.MarketTicker{
			Symbol:      symbol,
			Market:      market,
			QuoteVolume: volume,
			Venue:       domain.VenueUpbit,
		})
	}

	// Bithumb fills in symbols Upbit does not list; Upbit wins duplicates.
	bithumbVolumes, err := s.bithumb.Tickers(ctx)
	if err != nil {
		s.logger.Warn("bithumb tickers unavailable, scanning upbit only", zap.Error(err))
	} else {
		for symbol, volume := range bithumbVolumes {
			if majorCoins[symbol] || seen[symbol] {
				continue
			}
			universe = append(universe, domain.MarketTicker{
				Symbol:      symbol,
				Market:      symbol,
				QuoteVolume: volume,
				Venue:       domain.VenueBithumb,
			})
		}
	}

	sort.Slice(universe, func(i, j int) bool {
		if universe[i].QuoteVolume != universe[j].QuoteVolume {
			return universe[i].QuoteVolume > universe[j].QuoteVolume
		}
		return universe[i].Symbol < universe[j].Symbol // deterministic order
	})

	if len(universe) > s.topN {
		universe = universe[:s.topN]
	}
	return universe, nil
}

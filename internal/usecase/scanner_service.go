package usecase

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/ratelimit"
)

// ScannerConfig holds the orchestration knobs.
type ScannerConfig struct {
	ScanPeriod  time.Duration // full-universe pass interval
	BatchSize   int           // symbols per batch between snapshot publishes
	CacheTTL    time.Duration // per-symbol result reuse window
	Concurrency int           // max in-flight symbol analyses, process-wide
}

func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		ScanPeriod:  5 * time.Minute,
		BatchSize:   10,
		CacheTTL:    25 * time.Minute,
		Concurrency: 5,
	}
}

type cacheEntry struct {
	result     domain.SymbolAnalysis
	computedAt time.Time
}

// Scanner owns the scan loop: the per-symbol result cache, the published
// snapshot, and the background scheduler. All shared state is mutated only
// behind its mutex; readers never block on a scan in progress.
type Scanner struct {
	universe domain.UniverseProvider
	analyzer *Analyzer
	sem      *ratelimit.Semaphore
	recorder domain.ScanRecorder // optional
	logger   *zap.Logger
	cfg      ScannerConfig

	mu       sync.Mutex
	cache    map[string]cacheEntry
	snapshot domain.ScanSnapshot
	subs     map[chan domain.ScanSnapshot]struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	running   atomic.Bool
	stop      chan struct{}
	stopped   chan struct{}

	timeNow func() time.Time // for testing
}

func NewScanner(
	universe domain.UniverseProvider,
	analyzer *Analyzer,
	recorder domain.ScanRecorder,
	cfg ScannerConfig,
	logger *zap.Logger,
) *Scanner {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Scanner{
		universe: universe,
		analyzer: analyzer,
		sem:      ratelimit.NewSemaphore(cfg.Concurrency),
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
		cache:    make(map[string]cacheEntry),
		subs:     make(map[chan domain.ScanSnapshot]struct{}),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		timeNow:  time.Now,
	}
}

// EnsureStarted launches the background loop on first call: one immediate
// cycle, then one per ScanPeriod. Safe to call from any number of
// concurrent requests; only the first has any effect.
func (s *Scanner) EnsureStarted() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.loop()
	})
}

// Stop terminates the background loop and waits for it to exit. An
// in-flight cycle finishes its current batch and returns.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.stopped
	}
}

// Latest returns the most recent published snapshot without blocking on any
// scan in progress.
func (s *Scanner) Latest() domain.ScanSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// CacheSize reports the number of per-symbol entries, fresh or stale.
func (s *Scanner) CacheSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Running reports whether a cycle is currently executing.
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// Subscribe registers a snapshot listener for every publish. Slow consumers
// miss intermediate snapshots instead of blocking the scan.
func (s *Scanner) Subscribe() (<-chan domain.ScanSnapshot, func()) {
	ch := make(chan domain.ScanSnapshot, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Scanner) loop() {
	defer close(s.stopped)

	s.runCycle()

	ticker := time.NewTicker(s.cfg.ScanPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runCycle()
		case <-s.stop:
			return
		}
	}
}

// runCycle executes one full-universe pass. Overlapping cycles are skipped,
// not queued.
func (s *Scanner) runCycle() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("scan cycle still running, skipping this period")
		return
	}
	defer s.running.Store(false)

	ctx := context.Background()
	started := s.timeNow()

	markets, err := s.universe.Markets(ctx)
	if err != nil {
		// No live list and no stale fallback: abort, next period retries.
		s.logger.Error("scan cycle aborted, no universe available", zap.Error(err))
		return
	}

	s.logger.Info("scan cycle started",
		zap.Int("universe", len(markets)), zap.Int("batch_size", s.cfg.BatchSize))

	var (
		results       []domain.SymbolAnalysis
		cacheHits     int64
		fetchFailures int64
	)

	for start := 0; start < len(markets); start += s.cfg.BatchSize {
		select {
		case <-s.stop:
			s.logger.Info("scan cycle interrupted by shutdown")
			return
		default:
		}

		end := start + s.cfg.BatchSize
		if end > len(markets) {
			end = len(markets)
		}
		batch := markets[start:end]

		batchResults := make([]domain.SymbolAnalysis, len(batch))
		var wg sync.WaitGroup
		for i, ticker := range batch {
			wg.Add(1)
			go func(i int, ticker domain.MarketTicker) {
				defer wg.Done()
				res, hit, failed := s.analyzeOne(ctx, ticker)
				batchResults[i] = res
				if hit {
					atomic.AddInt64(&cacheHits, 1)
				}
				if failed {
					atomic.AddInt64(&fetchFailures, 1)
				}
			}(i, ticker)
		}
		wg.Wait()

		results = append(results, batchResults...)
		s.publish(results, len(markets), true)
	}

	s.publish(results, len(markets), false)

	elapsed := s.timeNow().Sub(started)
	matched := s.Latest().FoundCount
	s.logger.Info("scan cycle finished",
		zap.Duration("elapsed", elapsed),
		zap.Int("analyzed", len(results)),
		zap.Int("matched", matched),
		zap.Int64("cache_hits", cacheHits),
		zap.Int64("fetch_failures", fetchFailures))

	if s.recorder != nil {
		stats := domain.CycleStats{
			StartedAt:     started,
			Duration:      elapsed,
			UniverseSize:  len(markets),
			Analyzed:      len(results),
			Matched:       matched,
			CacheHits:     int(cacheHits),
			FetchFailures: int(fetchFailures),
		}
		if err := s.recorder.RecordCycle(ctx, stats); err != nil {
			s.logger.Warn("failed to record cycle stats", zap.Error(err))
		}
	}
}

// analyzeOne serves a symbol from the cache when fresh, otherwise runs the
// full analysis under the concurrency cap. Failures degrade to an empty
// result so the batch always completes.
func (s *Scanner) analyzeOne(ctx context.Context, ticker domain.MarketTicker) (result domain.SymbolAnalysis, cacheHit, failed bool) {
	key := string(ticker.Venue) + ":" + ticker.Symbol

	s.mu.Lock()
	entry, ok := s.cache[key]
	fresh := ok && s.timeNow().Sub(entry.computedAt) < s.cfg.CacheTTL
	s.mu.Unlock()
	if fresh {
		return entry.result, true, false
	}

	if err := s.sem.Acquire(ctx); err != nil {
		return emptyResult(ticker, s.timeNow()), false, true
	}
	defer s.sem.Release()

	res, err := s.analyzer.Analyze(ctx, ticker)
	if err != nil {
		s.logger.Warn("symbol analysis failed",
			zap.String("symbol", ticker.Symbol), zap.String("venue", string(ticker.Venue)),
			zap.Error(err))
		return emptyResult(ticker, s.timeNow()), false, true
	}
	res.AnalyzedAt = s.timeNow()

	// Failed analyses are not cached; the next cycle retries them.
	s.mu.Lock()
	s.cache[key] = cacheEntry{result: *res, computedAt: res.AnalyzedAt}
	s.mu.Unlock()

	return *res, false, false
}

func emptyResult(ticker domain.MarketTicker, now time.Time) domain.SymbolAnalysis {
	return domain.SymbolAnalysis{
		Symbol:      ticker.Symbol,
		Venue:       ticker.Venue,
		QuoteVolume: ticker.QuoteVolume,
		Boxes:       map[domain.Timeframe]domain.TimeframeBoxInfo{},
		Cloud1H:     domain.CloudUnknown,
		Cloud4H:     domain.CloudUnknown,
		Pullback:    domain.PullbackSignal{Kind: domain.PullbackNone},
		AnalyzedAt:  now,
	}
}

// publish ranks the signal-bearing results gathered so far and atomically
// replaces the snapshot. Called after every batch (partial) and at cycle end
// (final).
func (s *Scanner) publish(all []domain.SymbolAnalysis, universeSize int, inProgress bool) {
	matched := make([]domain.SymbolAnalysis, 0, len(all))
	for _, r := range all {
		if r.HasSignal() {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := &matched[i], &matched[j]
		if sa, sb := a.ConfluenceScore(), b.ConfluenceScore(); sa != sb {
			return sa > sb
		}
		if a.QuoteVolume != b.QuoteVolume {
			return a.QuoteVolume > b.QuoteVolume
		}
		return a.BoxCount > b.BoxCount
	})

	snap := domain.ScanSnapshot{
		Results:       matched,
		TotalAnalyzed: universeSize,
		FoundCount:    len(matched),
		LastUpdated:   s.timeNow(),
		InProgress:    inProgress,
	}

	s.mu.Lock()
	s.snapshot = snap
	for ch := range s.subs {
		select {
		case ch <- snap:
		default: // drop for slow consumers
		}
	}
	s.mu.Unlock()
}

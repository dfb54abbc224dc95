package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/infrastructure/exchange"
	"github.com/maketruthy/boxscan/internal/infrastructure/logger"
	"github.com/maketruthy/boxscan/internal/infrastructure/storage"
	"github.com/maketruthy/boxscan/internal/ratelimit"
	"github.com/maketruthy/boxscan/internal/usecase"
	"github.com/maketruthy/boxscan/internal/web"
)

type Config struct {
	Venues struct {
		Upbit struct {
			RESTEndpoint   string `yaml:"rest_endpoint"`
			RateIntervalMs int    `yaml:"rate_interval_ms"`
		} `yaml:"upbit"`
		Bithumb struct {
			RESTEndpoint   string `yaml:"rest_endpoint"`
			RateIntervalMs int    `yaml:"rate_interval_ms"`
		} `yaml:"bithumb"`
	} `yaml:"venues"`
	Scan struct {
		PeriodMinutes   int `yaml:"period_minutes"`
		BatchSize       int `yaml:"batch_size"`
		CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
		Concurrency     int `yaml:"concurrency"`
		UniverseTopN    int `yaml:"universe_top_n"`
	} `yaml:"scan"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// .env overrides are optional, the yaml config is the baseline.
	_ = godotenv.Load()

	configPath := os.Getenv("SCANNER_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	upbit := exchange.NewUpbitSource(cfg.Venues.Upbit.RESTEndpoint)
	bithumb := exchange.NewBithumbSource(cfg.Venues.Bithumb.RESTEndpoint)

	sources := map[domain.Venue]domain.CandleSource{
		domain.VenueUpbit:   upbit,
		domain.VenueBithumb: bithumb,
	}
	limiters := map[domain.Venue]*ratelimit.SlotLimiter{
		domain.VenueUpbit:   ratelimit.NewSlotLimiter(time.Duration(cfg.Venues.Upbit.RateIntervalMs) * time.Millisecond),
		domain.VenueBithumb: ratelimit.NewSlotLimiter(time.Duration(cfg.Venues.Bithumb.RateIntervalMs) * time.Millisecond),
	}

	universe := usecase.NewUniverseService(upbit, bithumb, 5*time.Minute, cfg.Scan.UniverseTopN, log)
	analyzer := usecase.NewAnalyzer(sources, limiters, usecase.DefaultAnalyzerParams(), log)

	scanCfg := usecase.DefaultScannerConfig()
	if cfg.Scan.PeriodMinutes > 0 {
		scanCfg.ScanPeriod = time.Duration(cfg.Scan.PeriodMinutes) * time.Minute
	}
	if cfg.Scan.BatchSize > 0 {
		scanCfg.BatchSize = cfg.Scan.BatchSize
	}
	if cfg.Scan.CacheTTLMinutes > 0 {
		scanCfg.CacheTTL = time.Duration(cfg.Scan.CacheTTLMinutes) * time.Minute
	}
	if cfg.Scan.Concurrency > 0 {
		scanCfg.Concurrency = cfg.Scan.Concurrency
	}

	scanner := usecase.NewScanner(universe, analyzer, store, scanCfg, log)
	scanner.EnsureStarted()

	server := web.NewServer(cfg.Server.Port, scanner, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	scanner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
}

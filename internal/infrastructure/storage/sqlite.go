package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/maketruthy/boxscan/internal/domain"
)

// SQLiteStore keeps an operational history of scan cycles. Analysis
// results are served from memory only and never written here.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scan_cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at DATETIME NOT NULL,
			duration_ms INTEGER NOT NULL,
			universe_size INTEGER NOT NULL,
			analyzed INTEGER NOT NULL,
			matched INTEGER NOT NULL,
			cache_hits INTEGER NOT NULL,
			fetch_failures INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scan_cycles_started_at ON scan_cycles(started_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteStore) RecordCycle(ctx context.Context, stats domain.CycleStats) error {
	query := `INSERT INTO scan_cycles (started_at, duration_ms, universe_size, analyzed, matched, cache_hits, fetch_failures)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		stats.StartedAt, stats.Duration.Milliseconds(), stats.UniverseSize,
		stats.Analyzed, stats.Matched, stats.CacheHits, stats.FetchFailures)
	return err
}

// RecentCycles returns the newest cycles first, up to limit.
func (s *SQLiteStore) RecentCycles(ctx context.Context, limit int) ([]domain.CycleStats, error) {
	query := `SELECT started_at, duration_ms, universe_size, analyzed, matched, cache_hits, fetch_failures
			  FROM scan_cycles ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []domain.CycleStats
	for rows.Next() {
		var c domain.CycleStats
		var durMs int64
		if err := rows.Scan(&c.StartedAt, &durMs, &c.UniverseSize, &c.Analyzed, &c.Matched, &c.CacheHits, &c.FetchFailures); err != nil {
			return nil, err
		}
		c.Duration = time.Duration(durMs) * time.Millisecond
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// handleScan lazily starts the background scanner and returns whatever
// snapshot exists so far. The first call after boot returns an empty,
// in-progress snapshot rather than blocking on a full cycle.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.scanner.EnsureStarted()
	s.writeJSON(w, s.scanner.Latest())
}

// handleTriggerScan exists for clients that want an explicit kick. Starting
// is idempotent; repeated posts never spawn a second loop.
func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	s.scanner.EnsureStarted()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":  "started",
		"running": s.scanner.Running(),
	}); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.scanner.Latest()
	s.writeJSON(w, map[string]any{
		"status":         "ok",
		"scan_running":   s.scanner.Running(),
		"cached_symbols": s.scanner.CacheSize(),
		"total_analyzed": snap.TotalAnalyzed,
		"found_count":    snap.FoundCount,
		"last_updated":   snap.LastUpdated,
		"in_progress":    snap.InProgress,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "cycle history not configured", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	cycles, err := s.history.RecentCycles(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list scan cycles", zap.Error(err))
		http.Error(w, "Failed to list scan cycles", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, cycles)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

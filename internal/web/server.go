package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/maketruthy/boxscan/internal/domain"
	"github.com/maketruthy/boxscan/internal/usecase"
)

// CycleHistory reads back recorded scan cycles, newest first.
type CycleHistory interface {
	RecentCycles(ctx context.Context, limit int) ([]domain.CycleStats, error)
}

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	scanner *usecase.Scanner
	history CycleHistory // optional
	logger  *zap.Logger
}

func NewServer(
	port int,
	scanner *usecase.Scanner,
	history CycleHistory,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		scanner: scanner,
		history: history,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Scan results
	s.router.HandleFunc("GET /api/scan", s.handleScan)
	s.router.HandleFunc("POST /api/scan", s.handleTriggerScan)

	// Live snapshot push
	s.router.HandleFunc("GET /ws", s.handleWS)

	// Cycle history
	s.router.HandleFunc("GET /api/history", s.handleHistory)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

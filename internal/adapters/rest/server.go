package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"listing-aggregator-service/internal/core/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	httpServer *http.Server
	logger     port.LoggerPort
}

// NewRouter собирает маршруты, отдельно от сервера для тестов через httptest
func NewRouter(handlers *SweepHandlers, baseLogger port.LoggerPort) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware(baseLogger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handlers.HandleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/presets", handlers.HandleListPresets)
		r.Route("/sweeps", func(r chi.Router) {
			r.Post("/ingestion", handlers.HandleRunIngestion)
			r.Post("/liveness", handlers.HandleRunLiveness)
		})
	})

	return r
}

func NewServer(httpPort string, handlers *SweepHandlers, baseLogger port.LoggerPort) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + httpPort,
			Handler:           NewRouter(handlers, baseLogger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: baseLogger,
	}
}

// Start блокируется, пока сервер не остановлен
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop корректно останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}

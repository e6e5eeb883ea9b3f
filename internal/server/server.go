package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tra-portal/tra-portal/internal/config"
	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/logger"
	"github.com/tra-portal/tra-portal/internal/server/handlers"
	appmiddleware "github.com/tra-portal/tra-portal/internal/server/middleware"
)

// ServiceName is reported by /version.
const ServiceName = "tra-mock-server"

type Server struct {
	repo     database.Repository
	store    *handlers.Store
	config   *config.ServerEnvironment
	logger   *slog.Logger
	router   *chi.Mux
	registry *prometheus.Registry
}

// NewServer builds the server around repo. When cfg.SeedData is set and the
// repository holds no taxpayers, the demo data set is loaded first.
func NewServer(
	ctx context.Context,
	repo database.Repository,
	cfg *config.ServerEnvironment,
	logger *slog.Logger,
) (*Server, error) {
	server := &Server{
		repo:     repo,
		store:    handlers.NewStore(repo, time.Now, logger),
		config:   cfg,
		logger:   logger,
		router:   chi.NewRouter(),
		registry: prometheus.NewRegistry(),
	}

	server.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.SeedData {
		if err := handlers.Seed(ctx, server.store); err != nil {
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server, nil
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	metrics := appmiddleware.NewHTTPMetrics(s.registry)

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(metrics.Handler)
	s.router.Use(middleware.Recoverer)
	s.router.Use(appmiddleware.SecurityHeaders(s.config.Environment))
	s.router.Use(appmiddleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) registerRoutes() {
	st := s.store

	s.router.Get("/health/live", handlers.HandleHealth)
	s.router.Get("/health/ready", handlers.HandleReadiness(s.repo))
	s.router.Get("/version", handlers.HandleVersion(ServiceName))
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(appmiddleware.RequestSizeLimit(s.config.MaxRequestSize))
		r.Use(appmiddleware.NewIdempotency(appmiddleware.DefaultIdempotencyTTL).Handler)

		r.Route("/taxpayers", func(r chi.Router) {
			r.Post("/", handlers.HandleRegisterTaxpayer(st))
			r.Get("/", handlers.HandleListTaxpayers(st))
			r.Get("/{tin}", handlers.HandleGetTaxpayer(st))
			r.Put("/{tin}", handlers.HandleUpdateTaxpayer(st))
		})

		r.Route("/vat", func(r chi.Router) {
			r.Post("/transactions", handlers.HandleRecordVATTransaction(st))
			r.Get("/transactions", handlers.HandleListVATTransactions(st))
			r.Get("/reports", handlers.HandleGetVATReport(st))
		})

		r.Route("/compliance", func(r chi.Router) {
			r.Get("/dashboard", handlers.HandleComplianceDashboard(st))
			r.Get("/score/{tin}", handlers.HandleComplianceScore(st))
			r.Get("/{tin}/score", handlers.HandleComplianceScore(st))
			r.Get("/audits", handlers.HandleListAudits(st))
			r.Post("/audits", handlers.HandleScheduleAudit(st))
			r.Get("/penalties", handlers.HandleListPenalties(st))
			r.Get("/analytics", handlers.HandleComplianceAnalytics(st))
		})

		r.Route("/tax-assessments", func(r chi.Router) {
			r.Post("/", handlers.HandleCreateAssessment(st))
			r.Get("/", handlers.HandleListAssessments(st))
			r.Get("/{id}", handlers.HandleGetAssessment(st))
			r.Patch("/{id}", handlers.HandleUpdateAssessment(st))
			r.Delete("/{id}", handlers.HandleDeleteAssessment(st))
			r.Get("/{id}/history", handlers.HandleAssessmentHistory(st))
			r.Get("/{id}/ledger", handlers.HandleAssessmentLedger(st))
		})

		r.Get("/revenue/dashboard", handlers.HandleRevenueDashboard(st))

		r.Route("/blockchain", func(r chi.Router) {
			r.Get("/stats", handlers.HandleBlockchainStats(st))
			r.Get("/verify/{txId}", handlers.HandleVerifyTransaction(st))
		})

		r.Route("/audit-logs", func(r chi.Router) {
			r.Get("/", handlers.HandleSearchAuditLogs(st))
			r.Get("/export", handlers.HandleExportAuditLogs(st))
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Post("/nida/verify", handlers.HandleVerifyNIDA(st))
			r.Post("/tiss/sync", handlers.HandleSyncTISS(st))
			r.Post("/brela/sync", handlers.HandleSyncBRELA(st))
		})
	})
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr))

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// DatabaseShutdown closes the repository.
func (s *Server) DatabaseShutdown() {
	if s.repo != nil {
		s.repo.Close()
		s.logger.Info("database connection closed")
	}
}

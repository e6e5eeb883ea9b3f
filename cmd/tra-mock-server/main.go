package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tra-portal/tra-portal/internal/config"
	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/logger"
	"github.com/tra-portal/tra-portal/internal/server"
	"github.com/tra-portal/tra-portal/internal/version"
)

//	tra-mock-server serves the tax administration REST API for local development
//	and testing of the portal data layer.
//
//	Records are kept in memory unless DATABASE_URL is set, in which case they are
//	stored in PostgreSQL (migrations are applied at startup).
//
//	All endpoints may return:
//	- 413 Request body exceeds size limit
//	- 429 Rate limit exceeded
//	- 500 Internal server error
//
//	Requests are not authenticated. The X-User-Id header, when present, is
//	recorded in the audit log.

func main() {
	var envFile string
	cmd := &cobra.Command{
		Use:   "tra-mock-server",
		Short: "Tax administration API mock server",
		Long:  `tra-mock-server implements the taxpayer, VAT, compliance, assessment, revenue, ledger, audit log and integration endpoints of the tax administration API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(envFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "file to load environment variables from (ignored when missing)")

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.Bool("SEED_DATA", cfg.SeedData),
		slog.Bool("DATABASE", cfg.DatabaseURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo database.Repository = database.NewMemory()
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			appLogger.Error("Failed to connect to PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		appLogger.Info("connected to PostgreSQL")

		if err := database.Migrate(ctx, pool, appLogger); err != nil {
			pool.Close()
			appLogger.Error("Failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		repo = database.NewPostgres(pool)
	} else {
		appLogger.Info("using in-memory storage")
	}

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	srv, err := server.NewServer(ctx, repo, cfg, appLogger)
	if err != nil {
		repo.Close()
		appLogger.Error("Failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer srv.DatabaseShutdown()

	if err := srv.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}

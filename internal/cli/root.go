// Package cli implements tra-client, a command line client for the tax
// administration API.
//
// Every command goes through the same stack as the portal itself: the
// application store and form submitter on top of the domain service, the retry
// policy and the HTTP client wrapper. Configuration comes from the environment
// (optionally seeded from a .env file, see internal/config).
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tra-portal/tra-portal/internal/auth"
	"github.com/tra-portal/tra-portal/internal/config"
	"github.com/tra-portal/tra-portal/internal/httpclient"
	"github.com/tra-portal/tra-portal/internal/logger"
	"github.com/tra-portal/tra-portal/internal/services"
	"github.com/tra-portal/tra-portal/internal/store"
	"github.com/tra-portal/tra-portal/internal/version"
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// app holds the flags and the API stack shared by all commands.
type app struct {
	envFile   string
	output    string
	baseURL   string
	fallbacks bool

	cfg     *config.ClientEnvironment
	logger  *slog.Logger
	service *services.Service
	store   *store.Store
	now     func() time.Time
}

// NewRootCmd builds the tra-client command tree.
func NewRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	rootCmd := &cobra.Command{
		Use:               "tra-client",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "Tax administration API client",
		Long:              `tra-client manages taxpayers and tax assessments and reads the compliance, revenue and ledger views of the tax administration API`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "file to load environment variables from (ignored when missing)")
	flags.StringVarP(&a.output, "output", "o", OutputTable, "output format: table, json or yaml")
	flags.StringVar(&a.baseURL, "base-url", "", "API base URL (overrides API_BASE_URL)")
	flags.BoolVar(&a.fallbacks, "fallbacks", false, "show sample data when a dashboard cannot be loaded")

	rootCmd.AddCommand(
		newTaxpayersCmd(a),
		newAssessmentsCmd(a),
		newComplianceCmd(a),
		newBlockchainCmd(a),
		newAuditCmd(a),
		newWatchCmd(a),
	)
	return rootCmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// init loads the configuration and builds the API stack.
func (a *app) init(cmd *cobra.Command) error {
	switch a.output {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("unknown output format %q (use table, json or yaml)", a.output)
	}

	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := config.NewClientConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.baseURL != "" {
		cfg.APIBaseURL = a.baseURL
	}
	a.cfg = cfg

	a.logger = logger.New(cmd.ErrOrStderr(), logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	client, err := httpclient.New(httpclient.Config{
		BaseURL:        cfg.APIBaseURL,
		ClientVersion:  cfg.ClientVersion,
		Timeout:        cfg.APITimeout,
		Tokens:         auth.FromConfig(cfg.AuthToken, cfg.AuthTokenFile, a.logger),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	a.service = services.New(client, services.NewPolicy(cfg, a.logger), a.logger)
	a.store = store.New(a.service,
		store.WithLogger(a.logger),
		store.WithFallbacks(a.fallbacks),
	)

	a.logger.Debug("client configured",
		slog.String("base_url", cfg.APIBaseURL),
		slog.String("environment", cfg.Environment),
		slog.Int("max_attempts", cfg.MaxAttempts),
		slog.String("retry_policy", cfg.RetryPolicy),
	)
	return nil
}

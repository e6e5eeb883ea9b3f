package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Base URLs used when API_BASE_URL is not set.
const (
	ProductionBaseURL = "https://api.tra.go.tz"
	LocalBaseURL      = "http://localhost:5000"
)

// Retry policies selectable with RETRY_POLICY.
const (
	// RetryPolicyTransient retries network failures, 408, 429 and 5xx only.
	RetryPolicyTransient = "transient"

	// RetryPolicyAll retries every failure, including 4xx rejections.
	RetryPolicyAll = "all"
)

// ClientEnvironment holds the settings for the API client and CLI.
type ClientEnvironment struct {
	Environment string `env:"ENVIRONMENT,default=dev"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// API_BASE_URL overrides the environment-derived default (see BaseURLFor)
	APIBaseURL    string        `env:"API_BASE_URL"`
	APITimeout    time.Duration `env:"API_TIMEOUT,default=30s"`
	ClientVersion string        `env:"CLIENT_VERSION,default=1.0.0"`

	// retry settings
	MaxAttempts  int           `env:"MAX_ATTEMPTS,default=3"`
	RetryBackoff time.Duration `env:"RETRY_BACKOFF,default=1s"`
	RetryPolicy  string        `env:"RETRY_POLICY,default=transient"`

	// client-side throttle, 0 disables
	RateLimitRPS   int32 `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int32 `env:"RATE_LIMIT_BURST,default=10"`

	// bearer token; AUTH_TOKEN wins over AUTH_TOKEN_FILE
	AuthToken     string `env:"AUTH_TOKEN"`
	AuthTokenFile string `env:"AUTH_TOKEN_FILE"`

	// blockchain stats polling
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL,default=30s"`
}

// ServerEnvironment holds the settings for tra-mock-server.
type ServerEnvironment struct {
	Environment           string        `env:"ENVIRONMENT,default=dev"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=5000"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`
	MaxRequestSize        int64         `env:"MAX_REQUEST_SIZE,default=1048576"`
	SeedData              bool          `env:"SEED_DATA,default=true"`

	// database settings - the in-memory repository is used when DATABASE_URL is empty
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

// LoadDotEnv seeds the process environment from a .env file.
// Variables already set in the environment are not overridden and a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// BaseURLFor returns the default API base URL for an environment:
// the production endpoint for prod, the local development backend otherwise.
func BaseURLFor(environment string) string {
	if environment == "prod" {
		return ProductionBaseURL
	}
	return LocalBaseURL
}

// NewClientConfig loads the client settings from the environment.
func NewClientConfig() (*ClientEnvironment, error) {
	var cfg ClientEnvironment

	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = BaseURLFor(cfg.Environment)
	}

	if err := validateClientConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateClientConfig(cfg *ClientEnvironment) error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", cfg.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL scheme must be http or https, got %q", u.Scheme)
	}

	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}
	if cfg.RetryBackoff < 0 {
		return fmt.Errorf("RETRY_BACKOFF cannot be negative")
	}
	if cfg.RetryPolicy != RetryPolicyTransient && cfg.RetryPolicy != RetryPolicyAll {
		return fmt.Errorf("RETRY_POLICY must be %q or %q, got %q", RetryPolicyTransient, RetryPolicyAll, cfg.RetryPolicy)
	}
	if cfg.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be greater than 0")
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set")
	}
	if cfg.RefreshInterval < time.Second {
		return fmt.Errorf("REFRESH_INTERVAL must be at least 1s, got %s", cfg.RefreshInterval)
	}

	return nil
}

// NewServerConfig loads the mock server settings from the environment.
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateServerConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateServerConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if cfg.MaxRequestSize < 1 {
		return fmt.Errorf("MAX_REQUEST_SIZE must be at least 1")
	}

	// pool settings only matter when a database is configured
	if cfg.DatabaseURL == "" {
		return nil
	}
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}

	return nil
}

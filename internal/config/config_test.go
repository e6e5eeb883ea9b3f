package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewClientConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "dev")

	cfg, err := NewClientConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != LocalBaseURL {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, LocalBaseURL)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.RetryBackoff != time.Second {
		t.Errorf("RetryBackoff = %s, want 1s", cfg.RetryBackoff)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %s, want 30s", cfg.RefreshInterval)
	}
	if cfg.RetryPolicy != RetryPolicyTransient {
		t.Errorf("RetryPolicy = %q, want %q", cfg.RetryPolicy, RetryPolicyTransient)
	}
}

func TestNewClientConfig_BaseURLByEnvironment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		override    string
		want        string
	}{
		{"prod uses production endpoint", "prod", "", ProductionBaseURL},
		{"staging uses local default", "staging", "", LocalBaseURL},
		{"override wins", "prod", "https://tra.example.com", "https://tra.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", tt.environment)
			t.Setenv("API_BASE_URL", tt.override)

			cfg, err := NewClientConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.APIBaseURL != tt.want {
				t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, tt.want)
			}
		})
	}
}

func TestNewClientConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad environment", "ENVIRONMENT", "qa"},
		{"relative base url", "API_BASE_URL", "/api"},
		{"ftp base url", "API_BASE_URL", "ftp://example.com"},
		{"zero attempts", "MAX_ATTEMPTS", "0"},
		{"unknown retry policy", "RETRY_POLICY", "sometimes"},
		{"sub-second refresh", "REFRESH_INTERVAL", "500ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := NewClientConfig(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestNewServerConfig(t *testing.T) {
	t.Setenv("PORT", "8081")

	cfg, err := NewServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8081 {
		t.Errorf("Port = %d, want 8081", cfg.Port)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL should default to empty, got %q", cfg.DatabaseURL)
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/tra")
	t.Setenv("DB_MIN_CONNECTIONS", "10")
	if _, err := NewServerConfig(); err == nil {
		t.Error("expected error when DB_MIN_CONNECTIONS > DB_MAX_CONNECTIONS")
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should not be an error: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TRA_DOTENV_TEST=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TRA_DOTENV_TEST") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("TRA_DOTENV_TEST"); got != "from-file" {
		t.Errorf("TRA_DOTENV_TEST = %q, want from-file", got)
	}
}

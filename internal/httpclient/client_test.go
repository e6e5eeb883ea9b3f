package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tra-portal/tra-portal/internal/auth"
	"github.com/tra-portal/tra-portal/internal/logger"
)

func newTestClient(t *testing.T, baseURL string, mod func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:       baseURL,
		ClientVersion: "9.9.9",
		Timeout:       5 * time.Second,
		Logger:        logger.Discard(),
	}
	if mod != nil {
		mod(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "/api"}); err == nil {
		t.Error("expected error for relative base URL")
	}
}

func TestSend_Headers(t *testing.T) {
	var got http.Header
	var gotQuery url.Values

	router := chi.NewRouter()
	router.Get("/api/taxpayers", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	router.Get("/api/audit-logs/export", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("id,action\n1,LOGIN\n"))
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	c := newTestClient(t, ts.URL, func(cfg *Config) {
		cfg.Tokens = auth.StaticToken("secret")
	})

	t.Run("json request", func(t *testing.T) {
		_, err := c.Send(context.Background(), Request{
			Method: http.MethodGet,
			Path:   "/api/taxpayers",
			Query:  url.Values{"status": {"ACTIVE"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		checks := map[string]string{
			"Content-Type":          "application/json",
			HeaderClientVersion:     "9.9.9",
			HeaderBlockchainEnabled: "true",
			"Authorization":         "Bearer secret",
		}
		for k, want := range checks {
			if v := got.Get(k); v != want {
				t.Errorf("header %s = %q, want %q", k, v, want)
			}
		}
		if gotQuery.Get("status") != "ACTIVE" {
			t.Errorf("query status = %q, want ACTIVE", gotQuery.Get("status"))
		}
	})

	t.Run("blob request omits content type", func(t *testing.T) {
		resp, err := c.Send(context.Background(), Request{
			Path:         "/api/audit-logs/export",
			ResponseType: ResponseTypeBlob,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v := got.Get("Content-Type"); v != "" {
			t.Errorf("Content-Type should be omitted for blob requests, got %q", v)
		}
		if got.Get(HeaderClientVersion) != "9.9.9" {
			t.Error("custom headers must still be sent for blob requests")
		}
		if string(resp.Body) != "id,action\n1,LOGIN\n" {
			t.Errorf("unexpected body %q", resp.Body)
		}
	})
}

func TestSend_SuccessResponse(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	router := chi.NewRouter()
	router.Post("/api/tax-assessments", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"tin":"123456789"}` {
			t.Errorf("unexpected request body %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"a-1"},"blockchainTxId":"0xabc"}`))
	})
	router.Get("/api/plain", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x"}`))
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	c := newTestClient(t, ts.URL, func(cfg *Config) {
		cfg.Now = func() time.Time { return fixed }
	})

	resp, err := c.Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/tax-assessments",
		Body:   map[string]any{"tin": "123456789"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if resp.BlockchainTxID != "0xabc" {
		t.Errorf("BlockchainTxID = %q, want 0xabc", resp.BlockchainTxID)
	}
	if !resp.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %s, want %s", resp.Timestamp, fixed)
	}
	if string(resp.Body) != `{"data":{"id":"a-1"},"blockchainTxId":"0xabc"}` {
		t.Errorf("body must be returned unmodified, got %s", resp.Body)
	}

	plain, err := c.Send(context.Background(), Request{Path: "/api/plain"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain.BlockchainTxID != "" {
		t.Errorf("BlockchainTxID should be empty when absent, got %q", plain.BlockchainTxID)
	}
}

func TestSend_ErrorShapes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{"nested error message", 400, `{"error":{"message":"Amount must be positive","code":"BAD_AMOUNT"}}`, "Amount must be positive", "BAD_AMOUNT"},
		{"nested error code only", 409, `{"error":{"code":"DUPLICATE_TIN"}}`, "DUPLICATE_TIN", "DUPLICATE_TIN"},
		{"top level message", 404, `{"message":"Taxpayer not found"}`, "Taxpayer not found", ""},
		{"message object", 422, `{"message":{"message":"Invalid period"}}`, "Invalid period", ""},
		{"code only", 403, `{"code":"FORBIDDEN"}`, "FORBIDDEN", "FORBIDDEN"},
		{"numeric code", 500, `{"code":7005}`, "7005", "7005"},
		{"error string", 400, `{"error":"bad request"}`, "bad request", ""},
		{"empty nested message falls through", 400, `{"error":{"message":""},"message":"fallback"}`, "fallback", ""},
		{"nothing usable", 500, `{"status":"failed"}`, UnknownErrorMessage, ""},
		{"message object without message", 500, `{"message":{"text":"x"}}`, UnknownErrorMessage, ""},
		{"not json", 502, `<html>Bad Gateway</html>`, UnknownErrorMessage, ""},
		{"empty body", 503, ``, UnknownErrorMessage, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := newTestClient(t, ts.URL, nil)
			_, err := c.Send(context.Background(), Request{Method: http.MethodPut, Path: "/api/taxpayers/123456789"})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T (%v)", err, err)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
			if apiErr.Message == "" {
				t.Error("Message must never be empty")
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if apiErr.Context != "/api/taxpayers/123456789" {
				t.Errorf("Context = %q", apiErr.Context)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
		})
	}
}

func TestSend_ErrorDetails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid","details":{"field":"amount"}}}`))
	}))
	defer ts.Close()

	_, err := newTestClient(t, ts.URL, nil).Send(context.Background(), Request{Path: "/x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	details, ok := apiErr.Details.(map[string]any)
	if !ok || details["field"] != "amount" {
		t.Errorf("Details = %#v, want map with field=amount", apiErr.Details)
	}
}

func TestSend_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	baseURL := ts.URL
	ts.Close()

	_, err := newTestClient(t, baseURL, nil).Send(context.Background(), Request{Path: "/api/blockchain/stats"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != CodeNetwork {
		t.Errorf("Code = %q, want %q", apiErr.Code, CodeNetwork)
	}
	if apiErr.Unwrap() == nil {
		t.Error("network errors must wrap the transport error")
	}
	if !IsRetryable(err) {
		t.Error("network errors should be retryable")
	}
}

func TestSend_NetworkErrorOnWriteIsLogged(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	baseURL := ts.URL
	ts.Close()

	var logs bytes.Buffer
	c := newTestClient(t, baseURL, func(cfg *Config) {
		cfg.Logger = logger.New(&logs, slog.LevelDebug, "prod")
	})

	_, err := c.Send(context.Background(), Request{Method: http.MethodPost, Path: "/api/taxpayers", Body: map[string]any{"tin": "123456789"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeNetwork {
		t.Fatalf("expected a network APIError, got %v", err)
	}
	if !strings.Contains(logs.String(), "API write request failed") || !strings.Contains(logs.String(), CodeNetwork) {
		t.Errorf("expected a warning for the failed write, got %q", logs.String())
	}
}

func TestSend_Metrics(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newTestClient(t, ts.URL, func(cfg *Config) { cfg.Metrics = m })

	_, _ = c.Send(context.Background(), Request{Path: "/ok"})
	_, _ = c.Send(context.Background(), Request{Path: "/ok"})
	_, _ = c.Send(context.Background(), Request{Path: "/fail"})

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/ok", "2xx")); got != 2 {
		t.Errorf("2xx count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/fail", "5xx")); got != 1 {
		t.Errorf("5xx count = %v, want 1", got)
	}
}

func TestSend_RateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, func(cfg *Config) {
		cfg.RateLimitRPS = 1
		cfg.RateLimitBurst = 1
	})

	if _, err := c.Send(context.Background(), Request{Path: "/api/blockchain/stats"}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	// the next token is a second away, beyond the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, Request{Path: "/api/blockchain/stats"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeNetwork {
		t.Fatalf("expected a network APIError, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), true},
		{"canceled", context.Canceled, false},
		{"network", &APIError{Code: CodeNetwork}, true},
		{"client validation", NewValidationError(CodeInvalidTIN, "/api/taxpayers", "bad tin"), false},
		{"400", &APIError{StatusCode: 400}, false},
		{"404", &APIError{StatusCode: 404}, false},
		{"408", &APIError{StatusCode: 408}, true},
		{"429", &APIError{StatusCode: 429}, true},
		{"500", &APIError{StatusCode: 500}, true},
		{"503", &APIError{StatusCode: 503}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable = %v, want %v", got, tt.want)
			}
		})
	}
}

// Package httpclient is the single point through which the portal talks to the
// tax administration backend.
//
// It attaches the standard headers and bearer token, throttles outgoing
// requests, and turns every response into either a Response or an *APIError,
// whatever shape the backend chose for its error body.
//
// The client never retries: retries are the caller's policy (see package retry).
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/tra-portal/tra-portal/internal/auth"
)

// Headers sent with every request
const (
	HeaderClientVersion     = "X-Client-Version"
	HeaderBlockchainEnabled = "X-Blockchain-Enabled"
	HeaderIdempotencyKey    = "Idempotency-Key"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// ResponseType tells the client how to treat the response body.
type ResponseType int

const (
	// ResponseTypeJSON is the default: the request is sent as JSON and the
	// body is expected to be JSON.
	ResponseTypeJSON ResponseType = iota

	// ResponseTypeBlob is for file downloads: no Content-Type is set on the
	// request and the body is returned as raw bytes.
	ResponseTypeBlob
)

// Request describes one call to the backend. It is built per call and discarded afterwards.
type Request struct {
	Method string

	// Path is the endpoint path relative to the base URL, e.g. /api/taxpayers/123456789
	Path string

	// Route is the path template used for metrics labels, e.g. /api/taxpayers/{tin}.
	// Defaults to Path.
	Route string

	Query  url.Values
	Header http.Header

	// Body is JSON encoded unless it is already a []byte
	Body any

	ResponseType ResponseType

	// Timeout overrides the client default when > 0
	Timeout time.Duration
}

// Response is a successful (status < 400) reply.
type Response struct {
	StatusCode int
	Header     http.Header

	// Body is the response body exactly as received
	Body []byte

	// BlockchainTxID is the ledger transaction id some endpoints embed for
	// traceability, empty when absent
	BlockchainTxID string

	// Timestamp is when the response was received
	Timestamp time.Time
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	ClientVersion string

	// Timeout is the default per-request timeout
	Timeout time.Duration

	// Tokens supplies the bearer token, nil sends requests unauthenticated
	Tokens auth.TokenSource

	// RateLimitRPS <= 0 disables client-side throttling
	RateLimitRPS   int32
	RateLimitBurst int32

	// HTTPClient defaults to a new http.Client
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics *Metrics

	// Now defaults to time.Now
	Now func() time.Time
}

// Client sends requests to the backend.
type Client struct {
	baseURL       *url.URL
	clientVersion string
	timeout       time.Duration
	tokens        auth.TokenSource
	limiter       *rate.Limiter
	httpClient    *http.Client
	logger        *slog.Logger
	metrics       *Metrics
	now           func() time.Time
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:       u,
		clientVersion: cfg.ClientVersion,
		timeout:       cfg.Timeout,
		tokens:        cfg.Tokens,
		httpClient:    cfg.HTTPClient,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		now:           cfg.Now,
	}

	if c.clientVersion == "" {
		c.clientVersion = "1.0.0"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if cfg.RateLimitRPS > 0 {
		burst := int(cfg.RateLimitBurst)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Send performs req and returns the response, or an *APIError describing the failure.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	endpoint := req.Path
	route := req.Route
	if route == "" {
		route = endpoint
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, WrapNetworkError(err, endpoint)
		}
	}

	httpReq, err := c.newHTTPRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}

	start := c.now()
	// #nosec G107 -- the URL is the configured base URL plus a path built by the services package
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observe(method, route, 0, c.now().Sub(start))
		apiErr := WrapNetworkError(err, endpoint)
		c.logFailure(method, apiErr)
		return nil, apiErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.observe(method, route, resp.StatusCode, c.now().Sub(start))
	if err != nil {
		apiErr := WrapNetworkError(fmt.Errorf("failed to read response body: %w", err), endpoint)
		c.logFailure(method, apiErr)
		return nil, apiErr
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := newResponseError(resp.StatusCode, body, endpoint)
		c.logFailure(method, apiErr)
		return nil, apiErr
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Timestamp:  c.now().UTC(),
	}
	if req.ResponseType == ResponseTypeJSON {
		out.BlockchainTxID = blockchainTxID(body)
	}
	return out, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, method string, req Request) (*http.Request, error) {
	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		var raw []byte
		switch b := req.Body.(type) {
		case []byte:
			raw = b
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, NewValidationError(CodeValidation, req.Path, fmt.Sprintf("failed to encode request body: %v", err))
			}
			raw = encoded
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, NewValidationError(CodeValidation, req.Path, fmt.Sprintf("failed to create request: %v", err))
	}

	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	if req.ResponseType != ResponseTypeBlob {
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set(HeaderClientVersion, c.clientVersion)
	httpReq.Header.Set(HeaderBlockchainEnabled, "true")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, NewValidationError("AUTH_ERROR", req.Path, fmt.Sprintf("failed to obtain auth token: %v", err))
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return httpReq, nil
}

// logFailure logs failed writes. Reads are left to the caller, which usually
// has a fallback.
func (c *Client) logFailure(method string, apiErr *APIError) {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return
	}
	c.logger.Warn("API write request failed",
		slog.String("method", method),
		slog.String("endpoint", apiErr.Context),
		slog.String("message", apiErr.Message),
		slog.String("code", apiErr.Code),
		slog.Int("status_code", apiErr.StatusCode),
	)
}

func blockchainTxID(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, key := range []string{"blockchainTxId", "BlockchainTxId", "blockchain_tx_id"} {
		if r := gjson.GetBytes(body, key); r.Type == gjson.String {
			return r.Str
		}
	}
	return ""
}

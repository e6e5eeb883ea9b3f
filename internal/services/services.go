package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/tra-portal/tra-portal/internal/canon"
	"github.com/tra-portal/tra-portal/internal/config"
	"github.com/tra-portal/tra-portal/internal/httpclient"
	"github.com/tra-portal/tra-portal/internal/retry"
)

// Sender sends a single request. *httpclient.Client implements it.
type Sender interface {
	Send(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// Service is the domain API client.
type Service struct {
	client Sender
	policy retry.Policy
	logger *slog.Logger
}

// New creates a Service. A zero policy gets the retry package defaults.
func New(client Sender, policy retry.Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, policy: policy, logger: logger}
}

// NewPolicy builds the retry policy described by the client configuration.
//
// The transient policy only retries failures that may go away on their own
// (see httpclient.IsRetryable). The all policy retries every failure,
// including 4xx rejections.
func NewPolicy(cfg *config.ClientEnvironment, logger *slog.Logger) retry.Policy {
	classifier := retry.Classifier(httpclient.IsRetryable)
	if cfg.RetryPolicy == config.RetryPolicyAll {
		classifier = retry.RetryAll
	}
	if logger == nil {
		logger = slog.Default()
	}
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		Base:        cfg.RetryBackoff,
		Retryable:   classifier,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Debug("retrying API request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", httpclient.Message(err)),
				slog.String("endpoint", endpointOf(err)),
			)
		},
	}
}

// Result is a successful write: the decoded record plus the response metadata.
type Result[T any] struct {
	Data T

	// BlockchainTxID is the ledger transaction id reported for the write, if any
	BlockchainTxID string

	// Timestamp is when the response was received
	Timestamp time.Time
}

// List is one page of records.
type List[T any] struct {
	Items []T `json:"items" yaml:"items"`
	Total int `json:"total" yaml:"total"`
	Page  int `json:"page,omitempty" yaml:"page,omitempty"`
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// send runs req through the retry policy.
func (s *Service) send(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	if req.Method == http.MethodPost {
		if req.Header == nil {
			req.Header = http.Header{}
		}
		if req.Header.Get(httpclient.HeaderIdempotencyKey) == "" {
			req.Header.Set(httpclient.HeaderIdempotencyKey, uuid.NewString())
		}
	}
	return retry.Do(ctx, s.policy, func(ctx context.Context) (*httpclient.Response, error) {
		return s.client.Send(ctx, req)
	})
}

// get fetches path and decodes the response data into out.
func (s *Service) get(ctx context.Context, path, route string, query url.Values, out any) error {
	resp, err := s.send(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   path,
		Route:  route,
		Query:  query,
	})
	if err != nil {
		return err
	}
	return decodeData(resp.Body, path, out)
}

// write sends a body-carrying request and decodes the response data into a Result.
func write[T any](ctx context.Context, s *Service, method, path, route string, body any) (*Result[T], error) {
	resp, err := s.send(ctx, httpclient.Request{
		Method: method,
		Path:   path,
		Route:  route,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	res := &Result[T]{
		BlockchainTxID: resp.BlockchainTxID,
		Timestamp:      resp.Timestamp,
	}
	if err := decodeData(resp.Body, path, &res.Data); err != nil {
		return nil, err
	}
	if res.BlockchainTxID == "" {
		res.BlockchainTxID = dataTxID(resp.Body)
	}
	return res, nil
}

// getList fetches one page of records from path.
func getList[T any](ctx context.Context, s *Service, path, route string, query url.Values) (*List[T], error) {
	resp, err := s.send(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   path,
		Route:  route,
		Query:  query,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[T](resp.Body, path)
}

// decodeData decodes body into out. Responses wrapped as {"data": ...} are unwrapped first.
func decodeData(body []byte, endpoint string, out any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return decodeError(endpoint, errors.New("response is not valid JSON"))
	}

	raw := body
	if root := gjson.ParseBytes(body); root.IsObject() {
		if data := member(root, "data"); data.Exists() {
			raw = []byte(data.Raw)
		}
	}

	if err := canon.Decode(raw, out); err != nil {
		return decodeError(endpoint, err)
	}
	return nil
}

// decodeList accepts a bare array, {"data": [...]} or {"data": {"items": [...]}},
// with paging information either next to the items or under "pagination".
func decodeList[T any](body []byte, endpoint string) (*List[T], error) {
	list := &List[T]{Items: []T{}}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return list, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, decodeError(endpoint, errors.New("response is not valid JSON"))
	}

	root := gjson.ParseBytes(body)
	container := root
	items := root
	if root.IsObject() {
		data := member(root, "data")
		switch {
		case data.IsArray():
			items = data
		case data.IsObject() && member(data, "items").IsArray():
			container = data
			items = member(data, "items")
		case member(root, "items").IsArray():
			items = member(root, "items")
		default:
			return nil, decodeError(endpoint, errors.New("response does not contain a list"))
		}
	}
	if !items.IsArray() {
		return nil, decodeError(endpoint, errors.New("response does not contain a list"))
	}

	if err := canon.Decode([]byte(items.Raw), &list.Items); err != nil {
		return nil, decodeError(endpoint, err)
	}

	list.Total = len(list.Items)
	for _, c := range []gjson.Result{container, root} {
		pagination := member(c, "pagination")
		if t := firstOf(c, pagination, "total"); t.Exists() {
			list.Total = int(t.Int())
		}
		if p := firstOf(c, pagination, "page"); p.Exists() {
			list.Page = int(p.Int())
		}
		if l := firstOf(c, pagination, "limit"); l.Exists() {
			list.Limit = int(l.Int())
		}
		if pagination.Exists() || member(c, "total").Exists() {
			break
		}
	}
	return list, nil
}

// firstOf returns the named paging field from pagination, falling back to c.
func firstOf(c, pagination gjson.Result, name string) gjson.Result {
	if v := member(pagination, name); v.Exists() {
		return v
	}
	return member(c, name)
}

// member returns the field of object r whose key canonicalizes to name.
// Among several casings the one that canon.Precedes the others is used.
func member(r gjson.Result, name string) gjson.Result {
	if !r.IsObject() {
		return gjson.Result{}
	}
	var (
		key   string
		found gjson.Result
	)
	r.ForEach(func(k, v gjson.Result) bool {
		if canon.Key(k.Str) == name && (!found.Exists() || canon.Precedes(k.Str, key)) {
			key, found = k.Str, v
		}
		return true
	})
	return found
}

// dataTxID looks for a transaction id inside the data object of a write response.
func dataTxID(body []byte) string {
	r := member(member(gjson.ParseBytes(body), "data"), "blockchainTxId")
	if r.Type == gjson.String {
		return r.Str
	}
	return ""
}

func decodeError(endpoint string, err error) error {
	return httpclient.WrapDecodeError(err, endpoint)
}

func endpointOf(err error) string {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Context
	}
	return ""
}

// escape makes an identifier safe to use as one path segment.
func escape(id string) string {
	return url.PathEscape(id)
}

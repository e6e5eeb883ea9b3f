// Package store holds the portal's application state.
//
// A Store owns the domain collections and dashboards. State only changes
// through Dispatch, which applies an Action with a pure reducer; readers take
// immutable snapshots with State or Subscribe.
//
// The action creators (FetchTaxpayers, CreateAssessment, ...) wrap the API
// calls: they set the loading flag, call the API, dispatch the result and
// record failures. Read-only dashboard data falls back to built-in sample
// payloads when the backend cannot be reached, so a view always has something
// to show.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tra-portal/tra-portal/internal/services"
)

// API is the subset of the domain service used by the store.
type API interface {
	ListTaxpayers(ctx context.Context, f services.Filters) (*services.List[services.Taxpayer], error)
	RegisterTaxpayer(ctx context.Context, reg services.TaxpayerRegistration) (*services.Result[services.Taxpayer], error)
	ListVATTransactions(ctx context.Context, f services.Filters) (*services.List[services.VATTransaction], error)
	RecordVATTransaction(ctx context.Context, tx services.VATTransactionInput) (*services.Result[services.VATTransaction], error)
	ListAudits(ctx context.Context, f services.Filters) (*services.List[services.Audit], error)
	ListTaxAssessments(ctx context.Context, f services.Filters) (*services.List[services.Assessment], error)
	CreateTaxAssessment(ctx context.Context, p services.Payload) (*services.Result[services.Assessment], error)
	UpdateTaxAssessment(ctx context.Context, id string, p services.Payload) (*services.Result[services.Assessment], error)
	DeleteTaxAssessment(ctx context.Context, id string) error
	GetComplianceDashboard(ctx context.Context, f services.Filters) (*services.ComplianceDashboard, error)
	GetRevenueDashboard(ctx context.Context, f services.Filters) (*services.RevenueDashboard, error)
	GetBlockchainStats(ctx context.Context) (*services.BlockchainStats, error)
}

var _ API = (*services.Service)(nil)

// Store is the application state container. It is safe for concurrent use.
type Store struct {
	api       API
	logger    *slog.Logger
	now       func() time.Time
	fallbacks bool

	mu    sync.Mutex
	state State

	listenersMu sync.Mutex
	listeners   map[int]func(State)
	nextID      int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report failed requests.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the clock used for real-time update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithFallbacks turns the sample-data fallbacks on or off (default on).
func WithFallbacks(enabled bool) Option {
	return func(s *Store) { s.fallbacks = enabled }
}

// New creates an empty store backed by api.
func New(api API, opts ...Option) *Store {
	s := &Store{
		api:       api,
		logger:    slog.Default(),
		now:       time.Now,
		fallbacks: true,
		listeners: map[int]func(State){},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a to the state and notifies subscribers with the result.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = reduce(s.state, a)
	snapshot := s.state
	s.mu.Unlock()

	s.listenersMu.Lock()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// Subscribe registers fn to be called with the new snapshot after every
// dispatch. fn runs on the dispatching goroutine and must not block.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

package middleware

import (
	"crypto/sha256"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func newIdempotentRouter(m *Idempotency, calls *atomic.Int32, status int) http.Handler {
	router := chi.NewRouter()
	router.Use(m.Handler)
	handler := func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("X-Call", strconv.Itoa(int(n)))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":true}`))
	}
	router.Post("/api/things", handler)
	router.Put("/api/things", handler)
	return router
}

func send(router http.Handler, method, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/things", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestIdempotency_ReplaysCompletedRequest(t *testing.T) {
	var calls atomic.Int32
	router := newIdempotentRouter(NewIdempotency(time.Hour), &calls, http.StatusCreated)

	first := send(router, http.MethodPost, "key-1", `{"a":1}`)
	second := send(router, http.MethodPost, "key-1", `{"a":1}`)

	if calls.Load() != 1 {
		t.Fatalf("handler called %d times, want 1", calls.Load())
	}
	if second.Code != http.StatusCreated {
		t.Errorf("replayed status = %d, want %d", second.Code, http.StatusCreated)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replayed body = %q, want %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("replayed response is missing Idempotent-Replayed header")
	}
	if second.Header().Get("X-Call") != "1" {
		t.Errorf("replayed headers come from call %q, want 1", second.Header().Get("X-Call"))
	}
	if first.Header().Get("Idempotent-Replayed") != "" {
		t.Error("first response must not be marked as replayed")
	}
}

func TestIdempotency_DifferentBodyRejected(t *testing.T) {
	var calls atomic.Int32
	router := newIdempotentRouter(NewIdempotency(time.Hour), &calls, http.StatusCreated)

	send(router, http.MethodPost, "key-1", `{"a":1}`)
	rr := send(router, http.MethodPost, "key-1", `{"a":2}`)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(rr.Body.String(), "IDEMPOTENCY_KEY_REUSED") {
		t.Errorf("body = %s, want IDEMPOTENCY_KEY_REUSED", rr.Body.String())
	}
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestIdempotency_Passthrough(t *testing.T) {
	tests := []struct {
		name   string
		method string
		key    string
	}{
		{"post without key", http.MethodPost, ""},
		{"put with key", http.MethodPut, "key-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			router := newIdempotentRouter(NewIdempotency(time.Hour), &calls, http.StatusOK)

			send(router, tt.method, tt.key, `{}`)
			send(router, tt.method, tt.key, `{}`)

			if calls.Load() != 2 {
				t.Errorf("handler called %d times, want 2", calls.Load())
			}
		})
	}
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	var calls atomic.Int32
	router := newIdempotentRouter(NewIdempotency(time.Hour), &calls, http.StatusServiceUnavailable)

	send(router, http.MethodPost, "key-1", `{}`)
	send(router, http.MethodPost, "key-1", `{}`)

	if calls.Load() != 2 {
		t.Errorf("handler called %d times, want 2", calls.Load())
	}
}

func TestIdempotency_ExpiredEntriesAreEvicted(t *testing.T) {
	var calls atomic.Int32
	m := NewIdempotency(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	router := newIdempotentRouter(m, &calls, http.StatusCreated)

	send(router, http.MethodPost, "key-1", `{}`)
	now = now.Add(2 * time.Minute)
	send(router, http.MethodPost, "key-1", `{}`)

	if calls.Load() != 2 {
		t.Errorf("handler called %d times, want 2", calls.Load())
	}
}

func TestIdempotency_InProgressConflict(t *testing.T) {
	m := NewIdempotency(time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})

	router := chi.NewRouter()
	router.Use(m.Handler)
	router.Post("/api/things", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		send(router, http.MethodPost, "key-1", `{}`)
	}()

	<-started
	rr := send(router, http.MethodPost, "key-1", `{}`)
	close(release)
	<-done

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	var calls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	})
	router := chimiddleware.Recoverer(NewIdempotency(0).Handler(h))

	first := send(router, http.MethodPost, "key-1", `{}`)
	second := send(router, http.MethodPost, "key-1", `{}`)

	if first.Code != http.StatusInternalServerError {
		t.Errorf("first status = %d, want %d", first.Code, http.StatusInternalServerError)
	}
	if second.Code != http.StatusCreated {
		t.Errorf("retry status = %d, want %d", second.Code, http.StatusCreated)
	}
	if calls.Load() != 2 {
		t.Errorf("handler called %d times, want 2", calls.Load())
	}
}

func TestIdempotency_StaleInProgressEntriesAreEvicted(t *testing.T) {
	m := NewIdempotency(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	m.entries["/api/things\x00key-1"] = &idempotencyEntry{
		bodyHash:  sha256.Sum256([]byte(`{}`)),
		startedAt: now,
	}

	var calls atomic.Int32
	router := newIdempotentRouter(m, &calls, http.StatusCreated)

	if rr := send(router, http.MethodPost, "key-1", `{}`); rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d while the entry is fresh", rr.Code, http.StatusConflict)
	}

	now = now.Add(2 * time.Minute)
	if rr := send(router, http.MethodPost, "key-1", `{}`); rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d after the entry went stale", rr.Code, http.StatusCreated)
	}
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

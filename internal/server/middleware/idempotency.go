package middleware

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tra-portal/tra-portal/internal/logger"
	"github.com/tra-portal/tra-portal/internal/server/api"
)

// IdempotencyKeyHeader is the request header carrying the client's key.
const IdempotencyKeyHeader = "Idempotency-Key"

// DefaultIdempotencyTTL is how long a completed response is replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

type idempotencyEntry struct {
	bodyHash    [sha256.Size]byte
	done        bool
	status      int
	header      http.Header
	body        []byte
	startedAt   time.Time
	completedAt time.Time
}

// Idempotency makes POST requests that carry an Idempotency-Key safe to retry.
//
// The first request with a given key is processed and, if it did not fail
// with a 5xx, its response is stored. Later requests with the same key and
// body get the stored response without reaching the handler (marked with
// Idempotent-Replayed: true). The same key with a different body is a 422,
// and a request arriving while the first is still running is a 409. If the
// handler panics the key is released before the panic propagates.
type Idempotency struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewIdempotency(ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &Idempotency{entries: make(map[string]*idempotencyEntry), ttl: ttl, now: time.Now}
}

func (m *Idempotency) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				api.RespondWithError(w, r, api.NewRequestTooLargeError(
					fmt.Sprintf("Request body exceeds maximum allowed size (%d bytes)", maxErr.Limit)))
				return
			}
			api.RespondWithError(w, r, api.NewMalformedRequestError("Failed to read request body", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		cacheKey := r.URL.Path + "\x00" + key

		m.mu.Lock()
		m.evictExpired()
		entry, seen := m.entries[cacheKey]
		if !seen {
			entry = &idempotencyEntry{bodyHash: hash, startedAt: m.now()}
			m.entries[cacheKey] = entry
		}
		m.mu.Unlock()

		if seen {
			m.replay(w, r, entry, hash)
			return
		}

		completed := false
		defer func() {
			if completed {
				return
			}
			m.mu.Lock()
			if m.entries[cacheKey] == entry {
				delete(m.entries, cacheKey)
			}
			m.mu.Unlock()
		}()

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.mu.Lock()
		defer m.mu.Unlock()
		if rec.status >= http.StatusInternalServerError {
			// let the client retry a failed request with the same key
			return
		}
		completed = true
		entry.done = true
		entry.status = rec.status
		entry.header = w.Header().Clone()
		entry.body = rec.body.Bytes()
		entry.completedAt = m.now()
	})
}

func (m *Idempotency) replay(w http.ResponseWriter, r *http.Request, entry *idempotencyEntry, hash [sha256.Size]byte) {
	m.mu.Lock()
	done, status, header, body, sameBody := entry.done, entry.status, entry.header, entry.body, entry.bodyHash == hash
	m.mu.Unlock()

	logger.ContextWithLogAttrs(r.Context(), slog.Bool("idempotent_replay", true))

	switch {
	case !sameBody:
		api.RespondWithError(w, r, api.NewIdempotencyMismatchError("Idempotency-Key was already used with a different request body"))
	case !done:
		api.RespondWithError(w, r, api.NewConflictError("A request with this Idempotency-Key is still being processed"))
	default:
		for k, v := range header {
			w.Header()[k] = v
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}

// evictExpired drops completed entries older than the TTL, and entries whose
// request started more than a TTL ago and never finished. Callers hold m.mu.
func (m *Idempotency) evictExpired() {
	cutoff := m.now().Add(-m.ttl)
	for k, e := range m.entries {
		if e.done && e.completedAt.Before(cutoff) || !e.done && e.startedAt.Before(cutoff) {
			delete(m.entries, k)
		}
	}
}

// recorder copies the response body while passing it through.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tra-portal/tra-portal/internal/canon"
	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/logger"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserIDHeader identifies the acting user in the audit log.
const UserIDHeader = "X-User-Id"

// Store gives the handlers access to persisted records and the ledger.
type Store struct {
	repo   database.Repository
	ledger *Ledger
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates a Store. now defaults to time.Now.
func NewStore(repo database.Repository, now func() time.Time, logger *slog.Logger) *Store {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	st := &Store{repo: repo, now: func() time.Time { return now().UTC() }, logger: logger}
	st.ledger = NewLedger(repo, st.now)
	return st
}

// Ledger returns the store's ledger.
func (st *Store) Ledger() *Ledger { return st.ledger }

// load reads one record of kind into a T. A missing record is a 404.
func load[T any](ctx context.Context, st *Store, kind database.Kind, id, label string) (T, error) {
	var v T
	doc, err := st.repo.Get(ctx, kind, id)
	if errors.Is(err, database.ErrNotFound) {
		return v, api.NewNotFoundError(fmt.Sprintf("%s %s not found", label, id))
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return v, fmt.Errorf("stored %s %s is corrupt: %w", kind, id, err)
	}
	return v, nil
}

// loadAll reads every record of kind, newest first.
func loadAll[T any](ctx context.Context, st *Store, kind database.Kind) ([]T, error) {
	docs, err := st.repo.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	return decodeDocs[T](docs)
}

// loadChildren reads the records of kind attached to parentID, oldest first.
func loadChildren[T any](ctx context.Context, st *Store, kind database.Kind, parentID string) ([]T, error) {
	docs, err := st.repo.ListByParent(ctx, kind, parentID)
	if err != nil {
		return nil, err
	}
	out, err := decodeDocs[T](docs)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func decodeDocs[T any](docs []database.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, fmt.Errorf("stored %s %s is corrupt: %w", d.Kind, d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// save stores v as the record kind/id.
func (st *Store) save(ctx context.Context, kind database.Kind, id, parentID string, v any, createdAt time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}
	return st.repo.Put(ctx, database.Document{Kind: kind, ID: id, ParentID: parentID, Data: data, CreatedAt: createdAt})
}

// audit appends an entry to the audit log. Failures are logged, not returned:
// the change itself has already been stored.
func (st *Store) audit(r *http.Request, action, entityType, entityID string, details map[string]any) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		userID = "system"
	}
	entry := services.AuditLogEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  r.RemoteAddr,
		Timestamp:  st.now(),
	}
	if err := st.save(r.Context(), database.KindAuditLog, entry.ID, "", entry, entry.Timestamp); err != nil {
		logger.ContextRequestLogger(r.Context()).Error("failed to write audit log",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	}
}

// decodeFields decodes a JSON object request body with its keys in canonical
// casing, so {"Tin": ...} and {"tin": ...} read the same.
func decodeFields(r *http.Request) (map[string]any, error) {
	var raw map[string]any
	if err := api.DecodeJSONBody(r, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, api.NewMalformedRequestError("Request body must be a JSON object", nil)
	}
	fields, _ := canon.Normalize(raw).(map[string]any)
	return fields, nil
}

// decodeCanonical decodes a JSON request body into v, reading the fields of
// v under any casing.
func decodeCanonical(r *http.Request, v any) error {
	var raw map[string]any
	if err := api.DecodeJSONBody(r, &raw); err != nil {
		return err
	}
	if raw == nil {
		return api.NewMalformedRequestError("Request body must be a JSON object", nil)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return api.NewMalformedRequestError("Invalid request body", err)
	}
	if err := canon.Decode(data, v); err != nil {
		return api.NewMalformedRequestError("Invalid request body", err)
	}
	return nil
}

// page reads page and limit from the query and slices items accordingly.
func page[T any](r *http.Request, items []T) ([]T, api.Pagination) {
	p := api.Pagination{Total: len(items), Page: 1, Limit: defaultPageSize}
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		p.Limit = min(n, maxPageSize)
	}

	start := (p.Page - 1) * p.Limit
	if start >= len(items) {
		return []T{}, p
	}
	end := min(start+p.Limit, len(items))
	return items[start:end], p
}

// filter keeps the items for which keep returns true.
func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// matches reports whether value equals the query parameter name, ignoring
// case. An absent parameter matches everything.
func matches(r *http.Request, name, value string) bool {
	want := r.URL.Query().Get(name)
	return want == "" || strings.EqualFold(want, value)
}

// inDateRange reports whether the date part of value falls within the
// startDate and endDate query parameters (both inclusive, both optional).
func inDateRange(r *http.Request, value string) bool {
	d := dateOnly(value)
	if start := r.URL.Query().Get("startDate"); start != "" && d < start {
		return false
	}
	if end := r.URL.Query().Get("endDate"); end != "" && d > end {
		return false
	}
	return true
}

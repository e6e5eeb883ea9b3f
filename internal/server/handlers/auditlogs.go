package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

// HandleSearchAuditLogs lists audit log entries, newest first.
//
//	GET /api/audit-logs?userId&action&entityType&startDate&endDate&page&limit
func HandleSearchAuditLogs(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := filteredAuditLogs(r, st)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		pageItems, p := page(r, items)
		api.RespondWithList(w, pageItems, p)
	}
}

// HandleExportAuditLogs downloads the audit log.
//
//	GET /api/audit-logs/export?format&startDate&endDate
//
// format is csv (default) or json.
func HandleExportAuditLogs(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}
		if format != "csv" && format != "json" {
			api.RespondWithError(w, r, api.NewValidationError(fmt.Sprintf("Unsupported export format %q", format)).
				WithDetails(map[string]any{"allowed": []string{"csv", "json"}}))
			return
		}

		items, err := filteredAuditLogs(r, st)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		filename := fmt.Sprintf("audit-logs-%s.%s", st.now().Format("20060102"), format)
		if format == "json" {
			data, err := json.MarshalIndent(items, "", "  ")
			if err != nil {
				api.RespondWithError(w, r, err)
				return
			}
			api.RespondWithFile(w, "application/json", filename, data)
			return
		}

		data, err := auditLogCSV(items)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		api.RespondWithFile(w, "text/csv; charset=utf-8", filename, data)
	}
}

func filteredAuditLogs(r *http.Request, st *Store) ([]services.AuditLogEntry, error) {
	all, err := loadAll[services.AuditLogEntry](r.Context(), st, database.KindAuditLog)
	if err != nil {
		return nil, err
	}
	return filter(all, func(e services.AuditLogEntry) bool {
		return matches(r, "userId", e.UserID) &&
			matches(r, "action", e.Action) &&
			matches(r, "entityType", e.EntityType) &&
			inDateRange(r, e.Timestamp.Format(time.DateOnly))
	}), nil
}

func auditLogCSV(items []services.AuditLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write([]string{"id", "timestamp", "userId", "action", "entityType", "entityId", "ipAddress", "details"}); err != nil {
		return nil, err
	}
	for _, e := range items {
		details := ""
		if len(e.Details) > 0 {
			b, err := json.Marshal(e.Details)
			if err != nil {
				return nil, err
			}
			details = string(b)
		}
		row := []string{e.ID, e.Timestamp.Format(time.RFC3339), e.UserID, e.Action, e.EntityType, e.EntityID, e.IPAddress, details}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}

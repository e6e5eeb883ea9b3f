package services

import (
	"context"
	"mime"
	"net/http"

	"github.com/tra-portal/tra-portal/internal/httpclient"
)

const auditLogsPath = "/api/audit-logs"

// SearchAuditLogs returns a page of audit log entries.
// Filters: userId, action, entityType, startDate, endDate, page, limit.
func (s *Service) SearchAuditLogs(ctx context.Context, f Filters) (*List[AuditLogEntry], error) {
	q := buildQuery(f, "userId", "action", "entityType", "startDate", "endDate", "page", "limit")
	return getList[AuditLogEntry](ctx, s, auditLogsPath, "", q)
}

// ExportAuditLogs downloads the audit log as a file. Filters: format, startDate, endDate.
func (s *Service) ExportAuditLogs(ctx context.Context, f Filters) (*Export, error) {
	resp, err := s.send(ctx, httpclient.Request{
		Method:       http.MethodGet,
		Path:         auditLogsPath + "/export",
		Query:        buildQuery(f, "format", "startDate", "endDate"),
		ResponseType: httpclient.ResponseTypeBlob,
	})
	if err != nil {
		return nil, err
	}

	exp := &Export{
		Data:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    "audit-logs",
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		exp.Filename = params["filename"]
	}
	return exp, nil
}

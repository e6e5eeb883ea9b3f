package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tra-portal/tra-portal/internal/httpclient"
)

const compliancePath = "/api/compliance"

// GetComplianceDashboard returns the aggregate compliance picture.
// Filters: region, sector, period.
func (s *Service) GetComplianceDashboard(ctx context.Context, f Filters) (*ComplianceDashboard, error) {
	var d ComplianceDashboard
	q := buildQuery(f, "region", "sector", "period")
	if err := s.get(ctx, compliancePath+"/dashboard", "", q, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetComplianceScore returns one taxpayer's compliance score.
//
// Older backends only serve the score at /api/compliance/{tin}/score. When the
// current path fails, the legacy path is tried; if that fails too its error is
// returned.
func (s *Service) GetComplianceScore(ctx context.Context, tin string) (*ComplianceScore, error) {
	var score ComplianceScore
	err := s.get(ctx, compliancePath+"/score/"+escape(tin), compliancePath+"/score/{tin}", nil, &score)
	if err == nil {
		return &score, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	s.logger.Debug("compliance score lookup failed, trying legacy endpoint",
		slog.String("tin", tin),
		slog.String("error", httpclient.Message(err)),
	)

	score = ComplianceScore{}
	if err := s.get(ctx, compliancePath+"/"+escape(tin)+"/score", compliancePath+"/{tin}/score", nil, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// ListAudits returns a page of audits.
// Filters: status, auditor, startDate, endDate.
func (s *Service) ListAudits(ctx context.Context, f Filters) (*List[Audit], error) {
	q := buildQuery(f, "status", "auditor", "startDate", "endDate")
	return getList[Audit](ctx, s, compliancePath+"/audits", "", q)
}

// ScheduleAudit schedules a taxpayer audit.
func (s *Service) ScheduleAudit(ctx context.Context, req AuditRequest) (*Result[Audit], error) {
	return write[Audit](ctx, s, http.MethodPost, compliancePath+"/audits", "", req)
}

// ListPenalties returns a page of penalties. Filters: tin, status.
func (s *Service) ListPenalties(ctx context.Context, f Filters) (*List[Penalty], error) {
	return getList[Penalty](ctx, s, compliancePath+"/penalties", "", buildQuery(f, "tin", "status"))
}

// GetComplianceAnalytics returns compliance rates. Filters: period, region.
func (s *Service) GetComplianceAnalytics(ctx context.Context, f Filters) (*Analytics, error) {
	var a Analytics
	if err := s.get(ctx, compliancePath+"/analytics", "", buildQuery(f, "period", "region"), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

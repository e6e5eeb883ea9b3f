package services

import (
	"context"
	"net/http"

	"github.com/tra-portal/tra-portal/internal/httpclient"
)

const (
	assessmentsPath  = "/api/tax-assessments"
	assessmentsRoute = assessmentsPath + "/{id}"
)

// AssessmentFields are the assessment fields a client may set on create or update.
var AssessmentFields = []string{
	"tin", "taxType", "year", "quarter", "period", "amount", "currency",
	"status", "description", "dueDate", "penalties", "interest",
}

// CreateTaxAssessment creates an assessment from the recognized fields of p.
func (s *Service) CreateTaxAssessment(ctx context.Context, p Payload) (*Result[Assessment], error) {
	return write[Assessment](ctx, s, http.MethodPost, assessmentsPath, "", pick(p, AssessmentFields...))
}

// ListTaxAssessments returns a page of assessments.
// Filters: tin, taxType, status, year, quarter, page, limit.
func (s *Service) ListTaxAssessments(ctx context.Context, f Filters) (*List[Assessment], error) {
	q := buildQuery(f, "tin", "taxType", "status", "year", "quarter", "page", "limit")
	return getList[Assessment](ctx, s, assessmentsPath, "", q)
}

// GetTaxAssessment returns one assessment.
func (s *Service) GetTaxAssessment(ctx context.Context, id string) (*Assessment, error) {
	var a Assessment
	if err := s.get(ctx, assessmentsPath+"/"+escape(id), assessmentsRoute, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateTaxAssessment changes the given fields of an assessment. Only the
// recognized fields of p are sent; an update with none is rejected locally.
func (s *Service) UpdateTaxAssessment(ctx context.Context, id string, p Payload) (*Result[Assessment], error) {
	body := pick(p, AssessmentFields...)
	if len(body) == 0 {
		return nil, httpclient.NewValidationError(httpclient.CodeValidation, assessmentsPath+"/"+id, "no fields to update")
	}
	return write[Assessment](ctx, s, http.MethodPatch, assessmentsPath+"/"+escape(id), assessmentsRoute, body)
}

// DeleteTaxAssessment deletes an assessment.
func (s *Service) DeleteTaxAssessment(ctx context.Context, id string) error {
	_, err := s.send(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   assessmentsPath + "/" + escape(id),
		Route:  assessmentsRoute,
	})
	return err
}

// GetAssessmentHistory returns the change history of an assessment, oldest first.
func (s *Service) GetAssessmentHistory(ctx context.Context, id string) ([]AssessmentHistoryEntry, error) {
	list, err := getList[AssessmentHistoryEntry](ctx, s, assessmentsPath+"/"+escape(id)+"/history", assessmentsRoute+"/history", nil)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GetAssessmentLedger returns the ledger transactions recorded for an assessment.
func (s *Service) GetAssessmentLedger(ctx context.Context, id string) ([]LedgerEntry, error) {
	list, err := getList[LedgerEntry](ctx, s, assessmentsPath+"/"+escape(id)+"/ledger", assessmentsRoute+"/ledger", nil)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

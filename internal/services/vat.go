package services

import (
	"context"
	"net/http"
)

const vatPath = "/api/vat"

// RecordVATTransaction records a sale or purchase.
func (s *Service) RecordVATTransaction(ctx context.Context, tx VATTransactionInput) (*Result[VATTransaction], error) {
	return write[VATTransaction](ctx, s, http.MethodPost, vatPath+"/transactions", "", tx)
}

// ListVATTransactions returns a page of VAT transactions.
// Filters: tin, startDate, endDate, status, page, limit.
func (s *Service) ListVATTransactions(ctx context.Context, f Filters) (*List[VATTransaction], error) {
	q := buildQuery(f, "tin", "startDate", "endDate", "status", "page", "limit")
	return getList[VATTransaction](ctx, s, vatPath+"/transactions", "", q)
}

// GetVATReport returns a VAT summary. Filters: tin, period, format.
func (s *Service) GetVATReport(ctx context.Context, f Filters) (*VATReport, error) {
	var r VATReport
	if err := s.get(ctx, vatPath+"/reports", "", buildQuery(f, "tin", "period", "format"), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

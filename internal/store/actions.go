package store

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tra-portal/tra-portal/internal/httpclient"
	"github.com/tra-portal/tra-portal/internal/services"
)

// begin sets the loading flag; the returned func clears it.
func (s *Store) begin() func() {
	s.Dispatch(SetLoading{Loading: true})
	return func() { s.Dispatch(SetLoading{Loading: false}) }
}

// fail records err as the current error.
func (s *Store) fail(op string, err error) {
	s.logger.Warn("request failed",
		slog.String("operation", op),
		slog.String("error", httpclient.Message(err)),
		slog.String("code", httpclient.CodeOf(err)),
	)
	s.Dispatch(SetError{Err: err})
}

// FetchTaxpayers loads the taxpayer list. On failure the sample taxpayers are
// used instead and the error is only recorded in the state.
func (s *Store) FetchTaxpayers(ctx context.Context, f services.Filters) ([]services.Taxpayer, error) {
	defer s.begin()()

	list, err := s.api.ListTaxpayers(ctx, f)
	if err != nil {
		s.fail("fetch taxpayers", err)
		if !s.fallbacks {
			return nil, err
		}
		fb := sampleTaxpayers()
		s.Dispatch(SetTaxpayers{Taxpayers: fb})
		return fb, nil
	}
	s.Dispatch(SetTaxpayers{Taxpayers: list.Items})
	return list.Items, nil
}

// RegisterTaxpayer registers a taxpayer and adds it to the list.
func (s *Store) RegisterTaxpayer(ctx context.Context, reg services.TaxpayerRegistration) (*services.Taxpayer, error) {
	defer s.begin()()

	res, err := s.api.RegisterTaxpayer(ctx, reg)
	if err != nil {
		s.fail("register taxpayer", err)
		return nil, err
	}
	t := res.Data
	if t.BlockchainTxID == "" {
		t.BlockchainTxID = res.BlockchainTxID
	}
	s.Dispatch(AddTaxpayer{Taxpayer: t})
	return &t, nil
}

// FetchTransactions loads the VAT transactions.
func (s *Store) FetchTransactions(ctx context.Context, f services.Filters) ([]services.VATTransaction, error) {
	defer s.begin()()

	list, err := s.api.ListVATTransactions(ctx, f)
	if err != nil {
		s.fail("fetch transactions", err)
		return nil, err
	}
	s.Dispatch(SetTransactions{Transactions: list.Items})
	return list.Items, nil
}

// RecordTransaction records a VAT transaction and adds it to the list.
func (s *Store) RecordTransaction(ctx context.Context, in services.VATTransactionInput) (*services.VATTransaction, error) {
	defer s.begin()()

	res, err := s.api.RecordVATTransaction(ctx, in)
	if err != nil {
		s.fail("record transaction", err)
		return nil, err
	}
	tx := res.Data
	if tx.BlockchainTxID == "" {
		tx.BlockchainTxID = res.BlockchainTxID
	}
	s.Dispatch(AddTransaction{Transaction: tx})
	return &tx, nil
}

// FetchAudits loads the audits.
func (s *Store) FetchAudits(ctx context.Context, f services.Filters) ([]services.Audit, error) {
	defer s.begin()()

	list, err := s.api.ListAudits(ctx, f)
	if err != nil {
		s.fail("fetch audits", err)
		return nil, err
	}
	s.Dispatch(SetAudits{Audits: list.Items})
	return list.Items, nil
}

// FetchAssessments loads the tax assessments.
func (s *Store) FetchAssessments(ctx context.Context, f services.Filters) ([]services.Assessment, error) {
	defer s.begin()()

	list, err := s.api.ListTaxAssessments(ctx, f)
	if err != nil {
		s.fail("fetch assessments", err)
		return nil, err
	}
	s.Dispatch(SetAssessments{Assessments: list.Items})
	return list.Items, nil
}

// CreateAssessment creates an assessment and adds it to the list.
func (s *Store) CreateAssessment(ctx context.Context, p services.Payload) (*services.Assessment, error) {
	defer s.begin()()

	res, err := s.api.CreateTaxAssessment(ctx, p)
	if err != nil {
		s.fail("create assessment", err)
		return nil, err
	}
	a := withTxID(res)
	s.Dispatch(UpsertAssessment{Assessment: a})
	return &a, nil
}

// UpdateAssessment applies p to an assessment and replaces it in the list.
func (s *Store) UpdateAssessment(ctx context.Context, id string, p services.Payload) (*services.Assessment, error) {
	defer s.begin()()

	res, err := s.api.UpdateTaxAssessment(ctx, id, p)
	if err != nil {
		s.fail("update assessment", err)
		return nil, err
	}
	a := withTxID(res)
	if a.ID == "" {
		a.ID = id
	}
	s.Dispatch(UpsertAssessment{Assessment: a})
	return &a, nil
}

// DeleteAssessment deletes an assessment and removes it from the list.
func (s *Store) DeleteAssessment(ctx context.Context, id string) error {
	defer s.begin()()

	if err := s.api.DeleteTaxAssessment(ctx, id); err != nil {
		s.fail("delete assessment", err)
		return err
	}
	s.Dispatch(RemoveAssessment{ID: id})
	return nil
}

// FetchComplianceDashboard loads the compliance dashboard, falling back to
// sample data on failure.
func (s *Store) FetchComplianceDashboard(ctx context.Context, f services.Filters) (*services.ComplianceDashboard, error) {
	defer s.begin()()

	d, err := s.api.GetComplianceDashboard(ctx, f)
	if err != nil {
		s.fail("fetch compliance dashboard", err)
		if !s.fallbacks {
			return nil, err
		}
		d = sampleComplianceDashboard()
	}
	s.Dispatch(SetComplianceDashboard{Dashboard: d})
	return d, nil
}

// FetchRevenueDashboard loads the revenue dashboard, falling back to sample
// data on failure.
func (s *Store) FetchRevenueDashboard(ctx context.Context, f services.Filters) (*services.RevenueDashboard, error) {
	defer s.begin()()

	d, err := s.api.GetRevenueDashboard(ctx, f)
	if err != nil {
		s.fail("fetch revenue dashboard", err)
		if !s.fallbacks {
			return nil, err
		}
		d = sampleRevenueDashboard()
	}
	s.Dispatch(SetRevenueDashboard{Dashboard: d})
	return d, nil
}

// FetchBlockchainStats loads the ledger statistics, falling back to sample
// data on failure.
func (s *Store) FetchBlockchainStats(ctx context.Context) (*services.BlockchainStats, error) {
	defer s.begin()()

	st, err := s.api.GetBlockchainStats(ctx)
	if err != nil {
		s.fail("fetch blockchain stats", err)
		if !s.fallbacks {
			return nil, err
		}
		st = sampleBlockchainStats()
	}
	s.Dispatch(SetBlockchainStats{Stats: st})
	return st, nil
}

// RefreshRealTime re-fetches the ledger statistics and stamps the refresh time.
// It runs in the background and leaves the loading flag alone. A failed
// refresh keeps the previous statistics.
func (s *Store) RefreshRealTime(ctx context.Context) error {
	st, err := s.api.GetBlockchainStats(ctx)
	if err != nil {
		s.fail("refresh blockchain stats", err)
		return err
	}
	s.Dispatch(SetRealTimeUpdate{Stats: st, At: s.now().UTC()})
	return nil
}

// Bootstrap loads the dashboards and the taxpayer list concurrently.
func (s *Store) Bootstrap(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.FetchComplianceDashboard(ctx, nil)
		return err
	})
	g.Go(func() error {
		_, err := s.FetchRevenueDashboard(ctx, nil)
		return err
	})
	g.Go(func() error {
		_, err := s.FetchBlockchainStats(ctx)
		return err
	})
	g.Go(func() error {
		_, err := s.FetchTaxpayers(ctx, nil)
		return err
	})
	return g.Wait()
}

func withTxID(res *services.Result[services.Assessment]) services.Assessment {
	a := res.Data
	if a.BlockchainTxID == "" {
		a.BlockchainTxID = res.BlockchainTxID
	}
	return a
}

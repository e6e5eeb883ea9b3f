package services

import (
	"context"

	"github.com/tra-portal/tra-portal/internal/canon"
)

// GetRevenueDashboard returns the aggregate revenue picture. Filters: period, region.
func (s *Service) GetRevenueDashboard(ctx context.Context, f Filters) (*RevenueDashboard, error) {
	var d RevenueDashboard
	if err := s.get(ctx, "/api/revenue/dashboard", "", buildQuery(f, "period", "region"), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetBlockchainStats returns the state of the ledger network.
func (s *Service) GetBlockchainStats(ctx context.Context) (*BlockchainStats, error) {
	var st BlockchainStats
	if err := s.get(ctx, "/api/blockchain/stats", "", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// VerifyRecord asks the ledger about a transaction id. Use
// VerificationResult.Matches to check a local copy of the record against it.
func (s *Service) VerifyRecord(ctx context.Context, txID string) (*VerificationResult, error) {
	var v VerificationResult
	if err := s.get(ctx, "/api/blockchain/verify/"+escape(txID), "/api/blockchain/verify/{txId}", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RecordDigest returns the digest the ledger stores as dataHash for record.
func RecordDigest(record any) (string, error) {
	return canon.Digest(record)
}

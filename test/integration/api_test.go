//go:build integration

package integration

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tra-portal/tra-portal/internal/httpclient"
	"github.com/tra-portal/tra-portal/internal/services"
)

func TestTaxpayerRegistration(t *testing.T) {
	env := startInProcessServer(t)
	defer env.shutdown()
	ctx := context.Background()

	res, err := env.service.RegisterTaxpayer(ctx, services.TaxpayerRegistration{
		TIN:          "123-456-789",
		Name:         "Pemba Clove Growers",
		TaxpayerType: "PARTNERSHIP",
		Region:       "Pemba",
	})
	require.NoError(t, err)
	assert.Equal(t, "123456789", res.Data.TIN)

	got, err := env.service.GetTaxpayer(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, "Pemba Clove Growers", got.Name)
	assert.Equal(t, res.BlockchainTxID, got.BlockchainTxID)

	_, err = env.service.RegisterTaxpayer(ctx, services.TaxpayerRegistration{TIN: "123456789", Name: "Dup", TaxpayerType: "PARTNERSHIP"})
	var apiErr *httpclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestAssessmentsPersistAcrossRequests(t *testing.T) {
	env := startInProcessServer(t)
	defer env.shutdown()
	ctx := context.Background()

	seeded, err := env.service.ListTaxAssessments(ctx, services.Filters{"tin": "100123456"})
	require.NoError(t, err)
	require.Equal(t, 2, seeded.Total)

	res, err := env.service.CreateTaxAssessment(ctx, services.Payload{
		"tin": "100123456", "taxType": "PAYE", "year": 2025, "quarter": 4,
		"amount": 420000, "description": "Q4 PAYE", "dueDate": "2026-01-31",
	})
	require.NoError(t, err)

	_, err = env.service.UpdateTaxAssessment(ctx, res.Data.ID, services.Payload{"status": "PAID"})
	require.NoError(t, err)

	history, err := env.service.GetAssessmentHistory(ctx, res.Data.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	ledger, err := env.service.GetAssessmentLedger(ctx, res.Data.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)

	v, err := env.service.VerifyRecord(ctx, ledger[1].TxID)
	require.NoError(t, err)
	assert.True(t, v.Verified)

	require.NoError(t, env.service.DeleteTaxAssessment(ctx, res.Data.ID))
	_, err = env.service.GetTaxAssessment(ctx, res.Data.ID)
	assert.Error(t, err)
}

func TestDashboards(t *testing.T) {
	env := startInProcessServer(t)
	defer env.shutdown()
	ctx := context.Background()

	dash, err := env.service.GetComplianceDashboard(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, int(dash.TotalTaxpayers))

	rev, err := env.service.GetRevenueDashboard(ctx, nil)
	require.NoError(t, err)
	assert.Positive(t, float64(rev.TotalRevenue))

	stats, err := env.service.GetBlockchainStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ONLINE", stats.NetworkStatus)
}

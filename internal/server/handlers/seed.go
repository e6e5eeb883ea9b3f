package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/services"
)

// Seed loads a small demo data set: taxpayers across several regions with
// assessments, VAT transactions, audits and penalties. It does nothing when
// taxpayers already exist.
func Seed(ctx context.Context, st *Store) error {
	n, err := st.repo.Count(ctx, database.KindTaxpayer)
	if err != nil {
		return err
	}
	if n > 0 {
		st.logger.Info("skipping seed, data present", slog.Int("taxpayers", n))
		return nil
	}

	now := st.now()
	year := now.Year()

	taxpayers := []services.Taxpayer{
		{TIN: "100123456", Name: "Kilimanjaro Coffee Exporters Ltd", TaxpayerType: "CORPORATE", Region: "Kilimanjaro", Sector: "Agriculture", Email: "finance@kilicoffee.co.tz", BusinessRegistrationNumber: "BRELA-2011-00451"},
		{TIN: "100234567", Name: "Dar Coastal Logistics", TaxpayerType: "CORPORATE", Region: "Dar es Salaam", Sector: "Transport", Email: "accounts@darcoastal.co.tz", BusinessRegistrationNumber: "BRELA-2015-01877"},
		{TIN: "100345678", Name: "Asha Mwinyi", TaxpayerType: "INDIVIDUAL", Region: "Dar es Salaam", Sector: "Retail", NationalID: "19850412111110000123"},
		{TIN: "100456789", Name: "Arusha Safari Lodges", TaxpayerType: "CORPORATE", Region: "Arusha", Sector: "Tourism", Email: "tax@arushalodges.co.tz", BusinessRegistrationNumber: "BRELA-2009-00112"},
		{TIN: "100567890", Name: "Mwanza Fisheries Cooperative", TaxpayerType: "PARTNERSHIP", Region: "Mwanza", Sector: "Fisheries"},
		{TIN: "100678901", Name: "Dodoma Builders Supply", TaxpayerType: "CORPORATE", Region: "Dodoma", Sector: "Construction", Status: services.TaxpayerSuspended},
	}
	for i, t := range taxpayers {
		if t.Status == "" {
			t.Status = services.TaxpayerActive
		}
		t.ComplianceScore = 100
		t.RegisteredAt = now.AddDate(-2, 0, -30*i)
		if err := seedRecord(ctx, st, database.KindTaxpayer, t.TIN, "", "REGISTER", "taxpayer", &t, &t.BlockchainTxID, t.RegisteredAt); err != nil {
			return err
		}
	}

	type seedAssessment struct {
		tin     string
		taxType string
		quarter int
		amount  float64
		status  string
		penalty float64
	}
	for _, s := range []seedAssessment{
		{"100123456", "CORPORATE_TAX", 1, 45_000_000, services.AssessmentPaid, 0},
		{"100123456", "VAT", 2, 12_500_000, services.AssessmentAssessed, 0},
		{"100234567", "VAT", 1, 8_750_000, services.AssessmentPaid, 0},
		{"100234567", "PAYE", 2, 3_200_000, services.AssessmentOverdue, 160_000},
		{"100345678", "INCOME_TAX", 1, 1_150_000, services.AssessmentPending, 0},
		{"100456789", "VAT", 1, 21_000_000, services.AssessmentDisputed, 0},
		{"100456789", "SDL", 2, 950_000, services.AssessmentPaid, 0},
		{"100678901", "CORPORATE_TAX", 1, 18_400_000, services.AssessmentOverdue, 920_000},
	} {
		created := time.Date(year, time.Month(3*s.quarter-2), 15, 9, 0, 0, 0, time.UTC)
		a := Assessment{
			ID:          uuid.NewString(),
			TIN:         s.tin,
			TaxType:     s.taxType,
			Year:        year,
			Quarter:     s.quarter,
			Period:      fmt.Sprintf("%d-Q%d", year, s.quarter),
			Amount:      s.amount,
			Currency:    defaultCurrency,
			Status:      s.status,
			Description: fmt.Sprintf("%s for Q%d %d", s.taxType, s.quarter, year),
			DueDate:     time.Date(year, time.Month(3*s.quarter+1), 30, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
			Penalties:   s.penalty,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if err := seedRecord(ctx, st, database.KindAssessment, a.ID, "", "CREATE", "tax_assessment", &a, &a.BlockchainTxID, created); err != nil {
			return err
		}
		h := services.AssessmentHistoryEntry{
			ID: uuid.NewString(), AssessmentID: a.ID, Action: "CREATED", ChangedBy: "seed",
			BlockchainTxID: a.BlockchainTxID, Timestamp: created,
		}
		if err := st.save(ctx, database.KindAssessmentHistory, h.ID, a.ID, h, created); err != nil {
			return err
		}

		if s.penalty > 0 {
			p := services.Penalty{
				ID:         uuid.NewString(),
				TIN:        s.tin,
				Amount:     services.Amount(s.penalty),
				Reason:     "Late payment of " + s.taxType,
				Status:     penaltyUnpaid,
				IssuedDate: dateOnly(a.DueDate),
			}
			if err := st.save(ctx, database.KindPenalty, p.ID, p.TIN, p, created); err != nil {
				return err
			}
		}
	}

	for i, v := range []services.VATTransaction{
		{TIN: "100123456", InvoiceNumber: "KCE-2041", TransactionType: services.VATSale, NetAmount: 30_000_000},
		{TIN: "100123456", InvoiceNumber: "SUP-7781", TransactionType: services.VATPurchase, NetAmount: 9_500_000},
		{TIN: "100234567", InvoiceNumber: "DCL-0192", TransactionType: services.VATSale, NetAmount: 14_250_000},
		{TIN: "100456789", InvoiceNumber: "ASL-5520", TransactionType: services.VATSale, NetAmount: 48_000_000},
	} {
		v.ID = uuid.NewString()
		v.TransactionDate = time.Date(year, time.February, 10+i, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
		v.VATRate = StandardVATRate
		v.VATAmount = v.NetAmount * StandardVATRate / 100
		v.Status = "RECORDED"
		v.CreatedAt = now.AddDate(0, 0, -60+i)
		if err := seedRecord(ctx, st, database.KindVATTransaction, v.ID, v.TIN, "RECORD", "vat_transaction", &v, &v.BlockchainTxID, v.CreatedAt); err != nil {
			return err
		}
	}

	for _, a := range []services.Audit{
		{TIN: "100234567", AuditType: "DESK", Auditor: "J. Mushi", Status: auditScheduled, ScheduledDate: now.AddDate(0, 0, 14).Format(time.DateOnly), Reason: "Overdue PAYE"},
		{TIN: "100456789", AuditType: "FIELD", Auditor: "R. Kimaro", Status: auditScheduled, ScheduledDate: now.AddDate(0, 1, 0).Format(time.DateOnly), Reason: "Disputed VAT assessment"},
		{TIN: "100678901", AuditType: "FIELD", Auditor: "J. Mushi", Status: auditCompleted, ScheduledDate: now.AddDate(0, -2, 0).Format(time.DateOnly), Findings: "Unreported sales"},
	} {
		a.ID = uuid.NewString()
		a.CreatedAt = now.AddDate(0, 0, -7)
		if err := st.save(ctx, database.KindAudit, a.ID, a.TIN, a, a.CreatedAt); err != nil {
			return err
		}
	}

	st.logger.Info("seeded demo data", slog.Int("taxpayers", len(taxpayers)))
	return nil
}

// seedRecord records v on the ledger, stores the transaction id in txID and saves v.
func seedRecord(ctx context.Context, st *Store, kind database.Kind, id, parentID, action, entityType string, v any, txID *string, createdAt time.Time) error {
	tx, err := st.ledger.Record(ctx, action, entityType, id, v)
	if err != nil {
		return fmt.Errorf("failed to seed %s %s: %w", kind, id, err)
	}
	*txID = tx.TxID
	if err := st.save(ctx, kind, id, parentID, v, createdAt); err != nil {
		return fmt.Errorf("failed to seed %s %s: %w", kind, id, err)
	}
	return nil
}

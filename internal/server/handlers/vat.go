package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

// StandardVATRate is the rate applied when a transaction does not give one.
const StandardVATRate = 18.0

// HandleRecordVATTransaction records a VAT transaction.
//
//	POST /api/vat/transactions
//
// When vatAmount is missing it is computed from netAmount and vatRate.
func HandleRecordVATTransaction(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in services.VATTransactionInput
		if err := decodeCanonical(r, &in); err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		tin, err := services.NormalizeTIN(in.TIN)
		if err != nil {
			api.RespondWithError(w, r, api.NewInvalidTINError("TIN must contain exactly 9 digits"))
			return
		}

		problems := map[string]string{}
		if strings.TrimSpace(in.InvoiceNumber) == "" {
			problems["invoiceNumber"] = "Invoice number is required"
		}
		txType := strings.ToUpper(strings.TrimSpace(in.TransactionType))
		if txType != services.VATSale && txType != services.VATPurchase {
			problems["transactionType"] = "Transaction type must be SALE or PURCHASE"
		}
		if in.NetAmount <= 0 {
			problems["netAmount"] = "Net amount must be greater than 0"
		}
		date := strings.TrimSpace(in.TransactionDate)
		if date == "" {
			date = st.now().Format(time.DateOnly)
		} else if _, err := time.Parse(time.DateOnly, dateOnly(date)); err != nil {
			problems["transactionDate"] = "Transaction date must be YYYY-MM-DD"
		}
		if len(problems) > 0 {
			api.RespondWithError(w, r, api.NewValidationError("Invalid VAT transaction").WithDetails(problems))
			return
		}

		rate := in.VATRate
		if rate == 0 {
			rate = StandardVATRate
		}
		vat := in.VATAmount
		if vat == 0 {
			vat = math.Round(in.NetAmount*rate) / 100
		}

		tx := services.VATTransaction{
			ID:              uuid.NewString(),
			TIN:             tin,
			InvoiceNumber:   strings.TrimSpace(in.InvoiceNumber),
			TransactionDate: date,
			TransactionType: txType,
			NetAmount:       services.Amount(in.NetAmount),
			VATRate:         services.Amount(rate),
			VATAmount:       services.Amount(vat),
			CounterpartyTIN: in.CounterpartyTIN,
			Description:     in.Description,
			Status:          "RECORDED",
			CreatedAt:       st.now(),
		}

		chainTx, err := st.ledger.Record(r.Context(), "RECORD", "vat_transaction", tx.ID, tx)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		tx.BlockchainTxID = chainTx.TxID

		if err := st.save(r.Context(), database.KindVATTransaction, tx.ID, tin, tx, tx.CreatedAt); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		st.audit(r, "RECORD_VAT_TRANSACTION", "vat_transaction", tx.ID, map[string]any{"tin": tin, "invoiceNumber": tx.InvoiceNumber})

		api.RespondWithData(w, http.StatusCreated, tx, chainTx.TxID)
	}
}

// HandleListVATTransactions lists VAT transactions.
//
//	GET /api/vat/transactions?tin&startDate&endDate&status&page&limit
func HandleListVATTransactions(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := loadAll[services.VATTransaction](r.Context(), st, database.KindVATTransaction)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		items := filter(all, func(tx services.VATTransaction) bool {
			return matches(r, "tin", tx.TIN) && matches(r, "status", tx.Status) && inDateRange(r, tx.TransactionDate)
		})
		pageItems, p := page(r, items)
		api.RespondWithList(w, pageItems, p)
	}
}

// HandleGetVATReport summarises a taxpayer's VAT position for a period.
//
//	GET /api/vat/reports?tin&period&format
//
// period is a quarter (2025-Q1), a month (2025-03) or a year (2025); without
// one every transaction is included.
func HandleGetVATReport(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tin") == "" {
			api.RespondWithError(w, r, api.NewValidationError("tin is required"))
			return
		}
		if f := q.Get("format"); f != "" && f != "json" {
			api.RespondWithError(w, r, api.NewValidationError(fmt.Sprintf("Unsupported report format %q", f)))
			return
		}
		inPeriod, err := periodMatcher(q.Get("period"))
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		all, err := loadAll[services.VATTransaction](r.Context(), st, database.KindVATTransaction)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		report := services.VATReport{TIN: q.Get("tin"), Period: q.Get("period")}
		for _, tx := range all {
			if tx.TIN != report.TIN || !inPeriod(tx.TransactionDate) {
				continue
			}
			report.TransactionCount++
			switch tx.TransactionType {
			case services.VATSale:
				report.TotalSales += tx.NetAmount
				report.OutputVAT += tx.VATAmount
			case services.VATPurchase:
				report.TotalPurchases += tx.NetAmount
				report.InputVAT += tx.VATAmount
			}
		}
		report.NetVATPayable = report.OutputVAT - report.InputVAT

		api.RespondWithData(w, http.StatusOK, report, "")
	}
}

// periodMatcher returns a predicate over YYYY-MM-DD dates for a period filter.
func periodMatcher(period string) (func(date string) bool, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return func(string) bool { return true }, nil
	}

	var year, quarter int
	if _, err := fmt.Sscanf(period, "%4d-Q%1d", &year, &quarter); err == nil && quarter >= 1 && quarter <= 4 {
		return func(date string) bool {
			t, err := time.Parse(time.DateOnly, dateOnly(date))
			return err == nil && t.Year() == year && (int(t.Month())-1)/3+1 == quarter
		}, nil
	}
	if _, err := time.Parse("2006-01", period); err == nil {
		return func(date string) bool { return strings.HasPrefix(date, period+"-") }, nil
	}
	if _, err := time.Parse("2006", period); err == nil {
		return func(date string) bool { return strings.HasPrefix(date, period+"-") }, nil
	}
	return nil, api.NewValidationError(fmt.Sprintf("Invalid period %q", period)).
		WithDetails(map[string]string{"period": "expected YYYY-Qn, YYYY-MM or YYYY"})
}

// dateOnly returns the date part of an RFC 3339 timestamp or date.
func dateOnly(s string) string {
	if len(s) > len(time.DateOnly) {
		return s[:len(time.DateOnly)]
	}
	return s
}

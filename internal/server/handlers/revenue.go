package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

// HandleRevenueDashboard reports collections against assessed amounts.
//
//	GET /api/revenue/dashboard?period&region
//
// Paid assessments count as revenue; every assessment counts towards the
// target. Months are taken from the due date. period matches an assessment
// period (2025-Q1) or a year (2025).
func HandleRevenueDashboard(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		taxpayers, err := loadAll[services.Taxpayer](ctx, st, database.KindTaxpayer)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		assessments, err := loadAll[Assessment](ctx, st, database.KindAssessment)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		regionOf := map[string]string{}
		for _, t := range taxpayers {
			regionOf[t.TIN] = t.Region
		}

		period := r.URL.Query().Get("period")
		var (
			total, target float64
			byTaxType     = map[string]float64{}
			byRegion      = map[string]float64{}
			monthly       = map[string]*services.RevenuePoint{}
		)
		for _, a := range assessments {
			if period != "" && a.Period != period && !strings.HasPrefix(a.Period, period+"-") {
				continue
			}
			if !matches(r, "region", regionOf[a.TIN]) {
				continue
			}

			month := dateOnly(a.DueDate)
			if len(month) >= len("2006-01") {
				month = month[:len("2006-01")]
			}
			mp := monthly[month]
			if mp == nil {
				mp = &services.RevenuePoint{Month: month}
				monthly[month] = mp
			}

			target += a.Amount
			mp.Target += services.Amount(a.Amount)
			if a.Status != services.AssessmentPaid {
				continue
			}
			total += a.Amount
			mp.Amount += services.Amount(a.Amount)
			byTaxType[a.TaxType] += a.Amount
			region := regionOf[a.TIN]
			if region == "" {
				region = "Unknown"
			}
			byRegion[region] += a.Amount
		}

		dash := services.RevenueDashboard{
			TotalRevenue:  services.Amount(total),
			TargetRevenue: services.Amount(target),
			ByTaxType:     breakdown(byTaxType),
			ByRegion:      breakdown(byRegion),
			Monthly:       make([]services.RevenuePoint, 0, len(monthly)),
		}
		if target > 0 {
			dash.CollectionRate = round1(100 * total / target)
		}
		for _, m := range sortedKeys(monthly) {
			dash.Monthly = append(dash.Monthly, *monthly[m])
		}
		api.RespondWithData(w, http.StatusOK, dash, "")
	}
}

func breakdown(m map[string]float64) []services.RevenueBreakdown {
	out := make([]services.RevenueBreakdown, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, services.RevenueBreakdown{Category: k, Amount: services.Amount(m[k])})
	}
	return out
}

// HandleBlockchainStats reports the state of the ledger.
//
//	GET /api/blockchain/stats
func HandleBlockchainStats(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.ledger.Stats(r.Context())
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		api.RespondWithData(w, http.StatusOK, stats, "")
	}
}

// HandleVerifyTransaction checks a ledger transaction.
//
//	GET /api/blockchain/verify/{txId}
func HandleVerifyTransaction(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := st.ledger.Verify(r.Context(), chi.URLParam(r, "txId"))
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		api.RespondWithData(w, http.StatusOK, res, "")
	}
}

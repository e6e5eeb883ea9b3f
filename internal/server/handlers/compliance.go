package handlers

import (
	"cmp"
	"context"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

// CompliantScore is the lowest score counted as compliant.
const CompliantScore = 70.0

// Score deductions.
const (
	unpaidPenaltyDeduction     = 10.0
	overdueAssessmentDeduction = 15.0
	disputedDeduction          = 5.0
	failedAuditDeduction       = 20.0
)

const (
	auditScheduled = "SCHEDULED"
	auditCompleted = "COMPLETED"
	penaltyUnpaid  = "UNPAID"
)

// complianceData is everything the compliance views are computed from.
type complianceData struct {
	taxpayers   []services.Taxpayer
	assessments []Assessment
	audits      []services.Audit
	penalties   []services.Penalty
}

func loadComplianceData(ctx context.Context, st *Store) (complianceData, error) {
	var (
		d   complianceData
		err error
	)
	if d.taxpayers, err = loadAll[services.Taxpayer](ctx, st, database.KindTaxpayer); err != nil {
		return d, err
	}
	if d.assessments, err = loadAll[Assessment](ctx, st, database.KindAssessment); err != nil {
		return d, err
	}
	if d.audits, err = loadAll[services.Audit](ctx, st, database.KindAudit); err != nil {
		return d, err
	}
	if d.penalties, err = loadAll[services.Penalty](ctx, st, database.KindPenalty); err != nil {
		return d, err
	}
	return d, nil
}

// score computes a taxpayer's compliance score out of 100 and the deductions behind it.
func (d complianceData) score(tin string) (float64, map[string]float64) {
	factors := map[string]float64{}
	for _, p := range d.penalties {
		if p.TIN == tin && p.Status == penaltyUnpaid {
			factors["unpaidPenalties"] += unpaidPenaltyDeduction
		}
	}
	for _, a := range d.assessments {
		if a.TIN != tin {
			continue
		}
		switch a.Status {
		case services.AssessmentOverdue:
			factors["overdueAssessments"] += overdueAssessmentDeduction
		case services.AssessmentDisputed:
			factors["disputedAssessments"] += disputedDeduction
		}
	}
	for _, a := range d.audits {
		if a.TIN == tin && a.Status == auditCompleted && a.Findings != "" {
			factors["auditFindings"] += failedAuditDeduction
		}
	}

	total := 100.0
	for _, v := range factors {
		total -= v
	}
	return math.Max(total, 0), factors
}

func rating(score float64) string {
	switch {
	case score >= 85:
		return "EXCELLENT"
	case score >= CompliantScore:
		return "GOOD"
	case score >= 50:
		return "FAIR"
	default:
		return "POOR"
	}
}

// HandleComplianceDashboard returns the compliance overview.
//
//	GET /api/compliance/dashboard?region&sector&period
func HandleComplianceDashboard(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := loadComplianceData(r.Context(), st)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		taxpayers := filter(d.taxpayers, func(t services.Taxpayer) bool {
			return matches(r, "region", t.Region) && matches(r, "sector", t.Sector)
		})
		inScope := map[string]bool{}
		for _, t := range taxpayers {
			inScope[t.TIN] = true
		}

		dash := services.ComplianceDashboard{
			TotalTaxpayers: services.Int(len(taxpayers)),
			ByRegion:       []services.RegionCompliance{},
			Trends:         []services.TrendPoint{},
		}

		regions := map[string]*services.RegionCompliance{}
		var sum float64
		for _, t := range taxpayers {
			s, _ := d.score(t.TIN)
			sum += s
			if s >= CompliantScore {
				dash.CompliantTaxpayers++
			} else {
				dash.NonCompliantTaxpayers++
			}
			rc := regions[t.Region]
			if rc == nil {
				rc = &services.RegionCompliance{Region: t.Region}
				regions[t.Region] = rc
			}
			rc.Score += s
			rc.Taxpayers++
		}
		if len(taxpayers) > 0 {
			dash.OverallScore = round1(sum / float64(len(taxpayers)))
		}
		for _, rc := range regions {
			rc.Score = round1(rc.Score / float64(rc.Taxpayers))
			dash.ByRegion = append(dash.ByRegion, *rc)
		}
		slices.SortFunc(dash.ByRegion, func(a, b services.RegionCompliance) int { return strings.Compare(a.Region, b.Region) })

		for _, a := range d.audits {
			if inScope[a.TIN] && a.Status == auditScheduled {
				dash.PendingAudits++
			}
		}
		for _, p := range d.penalties {
			if inScope[p.TIN] {
				dash.TotalPenalties += p.Amount
			}
		}

		dash.Trends = complianceTrends(d, inScope, r.URL.Query().Get("period"))
		api.RespondWithData(w, http.StatusOK, dash, "")
	}
}

// complianceTrends reports, per assessment period, the share of assessments
// that are paid or not yet due, as a percentage.
func complianceTrends(d complianceData, inScope map[string]bool, period string) []services.TrendPoint {
	type tally struct{ good, total int }
	byPeriod := map[string]*tally{}
	for _, a := range d.assessments {
		if !inScope[a.TIN] || (period != "" && a.Period != period) {
			continue
		}
		t := byPeriod[a.Period]
		if t == nil {
			t = &tally{}
			byPeriod[a.Period] = t
		}
		t.total++
		if a.Status != services.AssessmentOverdue {
			t.good++
		}
	}

	out := make([]services.TrendPoint, 0, len(byPeriod))
	for p, t := range byPeriod {
		out = append(out, services.TrendPoint{Period: p, Score: round1(100 * float64(t.good) / float64(t.total))})
	}
	slices.SortFunc(out, func(a, b services.TrendPoint) int { return strings.Compare(a.Period, b.Period) })
	return out
}

// HandleComplianceScore returns a taxpayer's compliance score. It is served
// on both the current and the legacy path.
//
//	GET /api/compliance/score/{tin}
//	GET /api/compliance/{tin}/score
func HandleComplianceScore(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tin := chi.URLParam(r, "tin")
		if _, err := load[services.Taxpayer](r.Context(), st, database.KindTaxpayer, tin, "Taxpayer"); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		d, err := loadComplianceData(r.Context(), st)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		s, factors := d.score(tin)
		api.RespondWithData(w, http.StatusOK, services.ComplianceScore{
			TIN:       tin,
			Score:     s,
			Rating:    rating(s),
			Factors:   factors,
			UpdatedAt: st.now(),
		}, "")
	}
}

// HandleListAudits lists audits.
//
//	GET /api/compliance/audits?status&auditor&startDate&endDate
func HandleListAudits(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := loadAll[services.Audit](r.Context(), st, database.KindAudit)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		items := filter(all, func(a services.Audit) bool {
			return matches(r, "status", a.Status) && matches(r, "auditor", a.Auditor) && inDateRange(r, a.ScheduledDate)
		})
		pageItems, p := page(r, items)
		api.RespondWithList(w, pageItems, p)
	}
}

// HandleScheduleAudit schedules an audit of a registered taxpayer.
//
//	POST /api/compliance/audits
func HandleScheduleAudit(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req services.AuditRequest
		if err := decodeCanonical(r, &req); err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		problems := map[string]string{}
		if strings.TrimSpace(req.AuditType) == "" {
			problems["auditType"] = "Audit type is required"
		}
		if strings.TrimSpace(req.Auditor) == "" {
			problems["auditor"] = "Auditor is required"
		}
		if _, err := time.Parse(time.DateOnly, dateOnly(req.ScheduledDate)); err != nil {
			problems["scheduledDate"] = "Scheduled date must be YYYY-MM-DD"
		}
		if len(problems) > 0 {
			api.RespondWithError(w, r, api.NewValidationError("Invalid audit request").WithDetails(problems))
			return
		}
		if _, err := load[services.Taxpayer](r.Context(), st, database.KindTaxpayer, req.TIN, "Taxpayer"); err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		a := services.Audit{
			ID:            uuid.NewString(),
			TIN:           req.TIN,
			AuditType:     strings.TrimSpace(req.AuditType),
			Auditor:       strings.TrimSpace(req.Auditor),
			Status:        auditScheduled,
			ScheduledDate: dateOnly(req.ScheduledDate),
			Reason:        req.Reason,
			CreatedAt:     st.now(),
		}
		tx, err := st.ledger.Record(r.Context(), "SCHEDULE", "audit", a.ID, a)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		if err := st.save(r.Context(), database.KindAudit, a.ID, a.TIN, a, a.CreatedAt); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		st.audit(r, "SCHEDULE_AUDIT", "audit", a.ID, map[string]any{"tin": a.TIN, "auditor": a.Auditor})

		api.RespondWithData(w, http.StatusCreated, a, tx.TxID)
	}
}

// HandleListPenalties lists penalties.
//
//	GET /api/compliance/penalties?tin&status
func HandleListPenalties(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := loadAll[services.Penalty](r.Context(), st, database.KindPenalty)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		items := filter(all, func(p services.Penalty) bool {
			return matches(r, "tin", p.TIN) && matches(r, "status", p.Status)
		})
		pageItems, p := page(r, items)
		api.RespondWithList(w, pageItems, p)
	}
}

// HandleComplianceAnalytics returns filing, payment and risk figures.
//
//	GET /api/compliance/analytics?period&region
func HandleComplianceAnalytics(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := loadComplianceData(r.Context(), st)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		period := r.URL.Query().Get("period")
		region := r.URL.Query().Get("region")

		inScope := map[string]bool{}
		out := services.Analytics{
			Period:           period,
			Region:           region,
			RiskDistribution: map[string]services.Int{"LOW": 0, "MEDIUM": 0, "HIGH": 0},
		}
		var compliant int
		for _, t := range d.taxpayers {
			if region != "" && !strings.EqualFold(region, t.Region) {
				continue
			}
			inScope[t.TIN] = true
			s, _ := d.score(t.TIN)
			if s >= CompliantScore {
				compliant++
			}
			switch {
			case s >= 85:
				out.RiskDistribution["LOW"]++
			case s >= 50:
				out.RiskDistribution["MEDIUM"]++
			default:
				out.RiskDistribution["HIGH"]++
			}
		}

		var filed, paid, total int
		for _, a := range d.assessments {
			if !inScope[a.TIN] || (period != "" && a.Period != period) {
				continue
			}
			total++
			if a.Status != services.AssessmentPending {
				filed++
			}
			if a.Status == services.AssessmentPaid {
				paid++
			}
		}

		out.ComplianceRate = percent(compliant, len(inScope))
		out.FilingRate = percent(filed, total)
		out.PaymentRate = percent(paid, total)
		api.RespondWithData(w, http.StatusOK, out, "")
	}
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return round1(100 * float64(n) / float64(of))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}

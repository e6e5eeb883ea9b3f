package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tra-portal/tra-portal/internal/database"
	"github.com/tra-portal/tra-portal/internal/logger"
	"github.com/tra-portal/tra-portal/internal/server/api"
	"github.com/tra-portal/tra-portal/internal/services"
)

const defaultCurrency = "TZS"

var assessmentStatuses = []string{
	services.AssessmentPending, services.AssessmentAssessed, services.AssessmentPaid,
	services.AssessmentOverdue, services.AssessmentDisputed,
}

// Assessment is the stored and served form of a tax assessment. Keys are
// PascalCase and Amount is sent as a string.
type Assessment struct {
	ID             string    `json:"Id"`
	TIN            string    `json:"Tin"`
	TaxType        string    `json:"TaxType"`
	Year           int       `json:"Year"`
	Quarter        int       `json:"Quarter"`
	Period         string    `json:"Period"`
	Amount         float64   `json:"Amount,string"`
	Currency       string    `json:"Currency"`
	Status         string    `json:"Status"`
	Description    string    `json:"Description"`
	DueDate        string    `json:"DueDate"`
	Penalties      float64   `json:"Penalties"`
	Interest       float64   `json:"Interest"`
	BlockchainTxID string    `json:"BlockchainTxId,omitempty"`
	CreatedAt      time.Time `json:"CreatedAt"`
	UpdatedAt      time.Time `json:"UpdatedAt"`
}

// HandleCreateAssessment creates an assessment.
//
//	POST /api/tax-assessments
//
// period is derived from year and quarter when absent. Currency defaults to
// TZS and status to PENDING.
func HandleCreateAssessment(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeFields(r)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		now := st.now()
		a := Assessment{
			ID:        uuid.NewString(),
			Currency:  defaultCurrency,
			Status:    services.AssessmentPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := applyAssessmentFields(&a, fields); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		if err := validateAssessment(a); err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		tx, err := st.ledger.Record(r.Context(), "CREATE", "tax_assessment", a.ID, a)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		a.BlockchainTxID = tx.TxID

		if err := st.save(r.Context(), database.KindAssessment, a.ID, "", a, a.CreatedAt); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		st.recordHistory(r, a.ID, "CREATED", nil, tx.TxID)
		st.audit(r, "CREATE_ASSESSMENT", "tax_assessment", a.ID, map[string]any{"tin": a.TIN, "period": a.Period})

		api.RespondWithData(w, http.StatusCreated, a, tx.TxID)
	}
}

// HandleListAssessments lists assessments.
//
//	GET /api/tax-assessments?tin&taxType&status&year&quarter&page&limit
func HandleListAssessments(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := loadAll[Assessment](r.Context(), st, database.KindAssessment)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		items := filter(all, func(a Assessment) bool {
			return matches(r, "tin", a.TIN) &&
				matches(r, "taxType", a.TaxType) &&
				matches(r, "status", a.Status) &&
				matches(r, "year", strconv.Itoa(a.Year)) &&
				matches(r, "quarter", strconv.Itoa(a.Quarter))
		})
		pageItems, p := page(r, items)
		api.RespondWithList(w, pageItems, p)
	}
}

// HandleGetAssessment returns one assessment.
//
//	GET /api/tax-assessments/{id}
func HandleGetAssessment(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := load[Assessment](r.Context(), st, database.KindAssessment, chi.URLParam(r, "id"), "Tax assessment")
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		api.RespondWithData(w, http.StatusOK, a, "")
	}
}

// HandleUpdateAssessment applies a partial update.
//
//	PATCH /api/tax-assessments/{id}
//
// Only the fields present in the body change. Changing year or quarter
// without a period recomputes the period; a body with no recognised fields
// is rejected.
func HandleUpdateAssessment(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		a, err := load[Assessment](r.Context(), st, database.KindAssessment, id, "Tax assessment")
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		fields, err := decodeFields(r)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		known := 0
		for _, f := range services.AssessmentFields {
			if _, ok := fields[f]; ok {
				known++
			}
		}
		if known == 0 {
			api.RespondWithError(w, r, api.NewValidationError("No fields to update"))
			return
		}

		before := a
		if err := applyAssessmentFields(&a, fields); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		if err := validateAssessment(a); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		a.UpdatedAt = st.now()
		a.BlockchainTxID = ""

		tx, err := st.ledger.Record(r.Context(), "UPDATE", "tax_assessment", a.ID, a)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		a.BlockchainTxID = tx.TxID

		if err := st.save(r.Context(), database.KindAssessment, a.ID, "", a, a.CreatedAt); err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		changes := assessmentChanges(before, a)
		st.recordHistory(r, a.ID, "UPDATED", changes, tx.TxID)
		st.audit(r, "UPDATE_ASSESSMENT", "tax_assessment", a.ID, changes)

		api.RespondWithData(w, http.StatusOK, a, tx.TxID)
	}
}

// HandleDeleteAssessment deletes an assessment. Its history and ledger
// entries are kept.
//
//	DELETE /api/tax-assessments/{id}
func HandleDeleteAssessment(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		a, err := load[Assessment](r.Context(), st, database.KindAssessment, id, "Tax assessment")
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		if err := st.repo.Delete(r.Context(), database.KindAssessment, id); err != nil {
			api.RespondWithError(w, r, err)
			return
		}

		tx, err := st.ledger.Record(r.Context(), "DELETE", "tax_assessment", id, map[string]any{"id": id, "deleted": true})
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		st.recordHistory(r, id, "DELETED", nil, tx.TxID)
		st.audit(r, "DELETE_ASSESSMENT", "tax_assessment", id, map[string]any{"tin": a.TIN, "period": a.Period})

		api.RespondWithData(w, http.StatusOK, map[string]any{"id": id, "deleted": true}, tx.TxID)
	}
}

// HandleAssessmentHistory returns the change history of an assessment, oldest first.
//
//	GET /api/tax-assessments/{id}/history
func HandleAssessmentHistory(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		entries, err := loadChildren[services.AssessmentHistoryEntry](r.Context(), st, database.KindAssessmentHistory, id)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		if len(entries) == 0 {
			api.RespondWithError(w, r, api.NewNotFoundError(fmt.Sprintf("Tax assessment %s not found", id)))
			return
		}
		api.RespondWithList(w, entries, api.Pagination{Total: len(entries), Page: 1, Limit: len(entries)})
	}
}

// HandleAssessmentLedger returns the ledger transactions of an assessment, oldest first.
//
//	GET /api/tax-assessments/{id}/ledger
func HandleAssessmentLedger(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		entries, err := st.ledger.Entries(r.Context(), id)
		if err != nil {
			api.RespondWithError(w, r, err)
			return
		}
		if len(entries) == 0 {
			api.RespondWithError(w, r, api.NewNotFoundError(fmt.Sprintf("Tax assessment %s not found", id)))
			return
		}
		api.RespondWithList(w, entries, api.Pagination{Total: len(entries), Page: 1, Limit: len(entries)})
	}
}

func (st *Store) recordHistory(r *http.Request, assessmentID, action string, changes map[string]any, txID string) {
	changedBy := r.Header.Get(UserIDHeader)
	if changedBy == "" {
		changedBy = "system"
	}
	entry := services.AssessmentHistoryEntry{
		ID:             uuid.NewString(),
		AssessmentID:   assessmentID,
		Action:         action,
		Changes:        changes,
		ChangedBy:      changedBy,
		BlockchainTxID: txID,
		Timestamp:      st.now(),
	}
	if err := st.save(r.Context(), database.KindAssessmentHistory, entry.ID, assessmentID, entry, entry.Timestamp); err != nil {
		logger.ContextRequestLogger(r.Context()).Error("failed to write assessment history",
			slog.String("assessment_id", assessmentID),
			slog.String("error", err.Error()),
		)
	}
}

// applyAssessmentFields copies the recognised canonical fields onto a.
func applyAssessmentFields(a *Assessment, fields map[string]any) error {
	problems := map[string]string{}

	text := map[string]*string{
		"tin":         &a.TIN,
		"taxType":     &a.TaxType,
		"currency":    &a.Currency,
		"status":      &a.Status,
		"description": &a.Description,
	}
	for name, target := range text {
		v, ok := fields[name]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			problems[name] = "must be a string"
			continue
		}
		*target = strings.TrimSpace(s)
	}
	a.Status = strings.ToUpper(a.Status)

	if v, ok := fields["dueDate"]; ok {
		s, _ := v.(string)
		t, err := time.Parse(time.DateOnly, dateOnly(strings.TrimSpace(s)))
		if err != nil {
			problems["dueDate"] = "must be a date (YYYY-MM-DD)"
		} else {
			a.DueDate = t.UTC().Format(time.RFC3339)
		}
	}

	numbers := map[string]*float64{
		"amount":    &a.Amount,
		"penalties": &a.Penalties,
		"interest":  &a.Interest,
	}
	for name, target := range numbers {
		v, ok := fields[name]
		if !ok {
			continue
		}
		f, ok := toNumber(v)
		if !ok {
			problems[name] = "must be a number"
			continue
		}
		*target = f
	}

	periodChanged := false
	for name, target := range map[string]*int{"year": &a.Year, "quarter": &a.Quarter} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		f, ok := toNumber(v)
		if !ok || f != float64(int(f)) {
			problems[name] = "must be a whole number"
			continue
		}
		*target = int(f)
		periodChanged = true
	}

	if v, ok := fields["period"]; ok {
		s, _ := v.(string)
		var y, q int
		if _, err := fmt.Sscanf(s, "%d-Q%d", &y, &q); err != nil {
			problems["period"] = "must look like 2025-Q1"
		} else if !periodChanged {
			a.Year, a.Quarter = y, q
		}
		a.Period = strings.TrimSpace(s)
	}
	if periodChanged || a.Period == "" {
		a.Period = fmt.Sprintf("%d-Q%d", a.Year, a.Quarter)
	}

	if len(problems) > 0 {
		return api.NewValidationError("Invalid tax assessment").WithDetails(problems)
	}
	return nil
}

func validateAssessment(a Assessment) error {
	problems := map[string]string{}
	if _, err := services.NormalizeTIN(a.TIN); err != nil || len(a.TIN) != services.TINLength {
		problems["tin"] = "TIN must contain exactly 9 digits"
	}
	if a.TaxType == "" {
		problems["taxType"] = "Tax type is required"
	}
	if a.Year <= 0 {
		problems["year"] = "Year is required"
	}
	if a.Quarter < 1 || a.Quarter > 4 {
		problems["quarter"] = "Quarter must be between 1 and 4"
	}
	if a.Amount <= 0 {
		problems["amount"] = "Amount must be greater than 0"
	}
	if a.Penalties < 0 || a.Interest < 0 {
		problems["penalties"] = "Penalties and interest cannot be negative"
	}
	if !slices.Contains(assessmentStatuses, a.Status) {
		problems["status"] = "Status must be one of " + strings.Join(assessmentStatuses, ", ")
	}
	if a.Description == "" {
		problems["description"] = "Description is required"
	}
	if a.DueDate == "" {
		problems["dueDate"] = "Due date is required"
	}
	if a.Period != fmt.Sprintf("%d-Q%d", a.Year, a.Quarter) {
		problems["period"] = "Period does not match year and quarter"
	}
	if len(problems) > 0 {
		return api.NewValidationError("Invalid tax assessment").WithDetails(problems)
	}
	return nil
}

// assessmentChanges lists the fields that differ between two versions as
// {"field": {"from": old, "to": new}}, keyed by canonical field name.
func assessmentChanges(before, after Assessment) map[string]any {
	pairs := []struct {
		name     string
		from, to any
	}{
		{"taxType", before.TaxType, after.TaxType},
		{"year", before.Year, after.Year},
		{"quarter", before.Quarter, after.Quarter},
		{"period", before.Period, after.Period},
		{"amount", before.Amount, after.Amount},
		{"currency", before.Currency, after.Currency},
		{"status", before.Status, after.Status},
		{"description", before.Description, after.Description},
		{"dueDate", before.DueDate, after.DueDate},
		{"penalties", before.Penalties, after.Penalties},
		{"interest", before.Interest, after.Interest},
		{"tin", before.TIN, after.TIN},
	}
	changes := map[string]any{}
	for _, p := range pairs {
		if !reflect.DeepEqual(p.from, p.to) {
			changes[p.name] = map[string]any{"from": p.from, "to": p.to}
		}
	}
	return changes
}

// toNumber accepts a JSON number, a numeric string or an empty string (0).
func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case nil:
		return 0, true
	}
	return 0, false
}

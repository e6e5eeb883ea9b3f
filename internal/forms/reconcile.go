package forms

import (
	"strings"

	"github.com/tra-portal/tra-portal/internal/services"
)

// Errors maps a field name to the problem with its value.
type Errors map[string]string

// HasErrors reports whether any field failed validation.
func (e Errors) HasErrors() bool { return len(e) > 0 }

// Validate checks the required fields of a draft.
func Validate(d AssessmentDraft) Errors {
	errs := Errors{}
	if strings.TrimSpace(d.TIN) == "" {
		errs["tin"] = "TIN is required"
	}
	if strings.TrimSpace(d.TaxType) == "" {
		errs["taxType"] = "Tax type is required"
	}
	if d.Year <= 0 {
		errs["year"] = "Year is required"
	}
	if d.Quarter < 1 || d.Quarter > 4 {
		errs["quarter"] = "Quarter must be between 1 and 4"
	}
	if ToNumber(d.Amount) <= 0 {
		errs["amount"] = "Amount must be greater than 0"
	}
	if strings.TrimSpace(d.Status) == "" {
		errs["status"] = "Status is required"
	}
	if strings.TrimSpace(d.Description) == "" {
		errs["description"] = "Description is required"
	}
	if strings.TrimSpace(d.DueDate) == "" {
		errs["dueDate"] = "Due date is required"
	}
	return errs
}

// CreatePayload builds the body for creating an assessment from d.
func CreatePayload(d AssessmentDraft) services.Payload {
	return services.Payload{
		"tin":         strings.TrimSpace(d.TIN),
		"taxType":     strings.TrimSpace(d.TaxType),
		"year":        d.Year,
		"quarter":     d.Quarter,
		"period":      d.Period(),
		"amount":      ToNumber(d.Amount),
		"currency":    strings.TrimSpace(d.Currency),
		"status":      strings.TrimSpace(d.Status),
		"description": strings.TrimSpace(d.Description),
		"dueDate":     strings.TrimSpace(d.DueDate),
		"penalties":   ToNumber(d.Penalties),
		"interest":    ToNumber(d.Interest),
	}
}

// BuildUpdatePayload returns the fields of d that differ from original.
//
// Text fields are compared trimmed, the due date by its date part, and
// amounts as numbers, so "1000", "1000.0" and 1000 are the same value.
// Year and quarter are compared through the period. When either changes the
// payload carries period, year and quarter together, even if only one of
// them differs: the backend stores year and quarter alongside period and
// each must be rewritten so the three agree.
//
// isEmpty is true when nothing changed; such a payload must not be sent.
func BuildUpdatePayload(original Record, d AssessmentDraft) (payload services.Payload, isEmpty bool) {
	payload = services.Payload{}

	text := []struct {
		field string
		value string
	}{
		{"tin", d.TIN},
		{"taxType", d.TaxType},
		{"currency", d.Currency},
		{"status", d.Status},
		{"description", d.Description},
	}
	for _, f := range text {
		v := strings.TrimSpace(f.value)
		if v != original.String(f.field) {
			payload[f.field] = v
		}
	}

	if due := strings.TrimSpace(d.DueDate); dateOnly(due) != dateOnly(original.String("dueDate")) {
		payload["dueDate"] = due
	}

	numeric := []struct {
		field string
		value string
	}{
		{"amount", d.Amount},
		{"penalties", d.Penalties},
		{"interest", d.Interest},
	}
	for _, f := range numeric {
		v := ToNumber(f.value)
		if v != original.Number(f.field) {
			payload[f.field] = v
		}
	}

	if period := d.Period(); period != original.Period() {
		payload["period"] = period
		payload["year"] = d.Year
		payload["quarter"] = d.Quarter
	}

	return payload, len(payload) == 0
}

// Package forms holds the create and edit logic for tax assessments: the
// editable draft, its validation, and the reconciliation of a draft against
// the server's copy into the smallest possible update.
package forms

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tra-portal/tra-portal/internal/canon"
	"github.com/tra-portal/tra-portal/internal/services"
)

// DefaultCurrency is the currency of a new draft.
const DefaultCurrency = "TZS"

// AssessmentDraft is the editable copy of an assessment. Numeric inputs are
// kept as the text the user typed and only converted when a payload is built.
type AssessmentDraft struct {
	TIN         string
	TaxType     string
	Year        int
	Quarter     int
	Amount      string
	Currency    string
	Status      string
	Description string
	DueDate     string
	Penalties   string
	Interest    string
}

// NewDraft returns the draft for a new assessment in the quarter containing now.
func NewDraft(now time.Time) AssessmentDraft {
	return AssessmentDraft{
		Year:      now.Year(),
		Quarter:   (int(now.Month())-1)/3 + 1,
		Currency:  DefaultCurrency,
		Status:    services.AssessmentPending,
		Penalties: "0",
		Interest:  "0",
	}
}

// Period returns the draft's period, e.g. 2025-Q1.
func (d AssessmentDraft) Period() string {
	return FormatPeriod(d.Year, d.Quarter)
}

// FormatPeriod formats a year and quarter as YYYY-Qn.
func FormatPeriod(year, quarter int) string {
	return fmt.Sprintf("%d-Q%d", year, quarter)
}

// Record is an assessment as the server sent it, before any normalization.
// Field names may be in any casing.
type Record map[string]any

// Get returns the value of a field under any of its casings (tin, Tin, TIN).
// When several casings carry a value, the one that canon.Precedes the others
// wins: the canonical spelling, then PascalCase, then the rest.
func (r Record) Get(field string) (any, bool) {
	if v, ok := r[field]; ok && v != nil {
		return v, true
	}
	var (
		key   string
		found any
	)
	for k, v := range r {
		if v == nil || canon.Key(k) != field {
			continue
		}
		if found == nil || canon.Precedes(k, key) {
			key, found = k, v
		}
	}
	return found, found != nil
}

// String returns a field as trimmed text, "" when absent.
func (r Record) String(field string) string {
	v, ok := r.Get(field)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Number returns a field coerced to a number; absent or unparseable values are 0.
func (r Record) Number(field string) float64 {
	v, ok := r.Get(field)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return finite(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case services.Amount:
		return finite(float64(t))
	case services.Int:
		return float64(t)
	default:
		return ToNumber(fmt.Sprint(t))
	}
}

// Period returns the record's period, deriving it from year and quarter when
// the record has no period field.
func (r Record) Period() string {
	if p := r.String("period"); p != "" {
		return p
	}
	year, quarter := int(r.Number("year")), int(r.Number("quarter"))
	if year == 0 || quarter == 0 {
		return ""
	}
	return FormatPeriod(year, quarter)
}

// ToNumber converts user input to a number. Empty, unparseable and
// non-finite input all become 0.
func ToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// RecordFromAssessment converts a decoded assessment into a Record.
func RecordFromAssessment(a services.Assessment) Record {
	return Record{
		"id":          a.ID,
		"tin":         a.TIN,
		"taxType":     a.TaxType,
		"year":        float64(a.Year),
		"quarter":     float64(a.Quarter),
		"period":      a.Period,
		"amount":      float64(a.Amount),
		"currency":    a.Currency,
		"status":      a.Status,
		"description": a.Description,
		"dueDate":     a.DueDate,
		"penalties":   float64(a.Penalties),
		"interest":    float64(a.Interest),
	}
}

// DraftFromRecord pre-fills a draft for editing an existing assessment.
func DraftFromRecord(r Record) AssessmentDraft {
	d := AssessmentDraft{
		TIN:         r.String("tin"),
		TaxType:     r.String("taxType"),
		Year:        int(r.Number("year")),
		Quarter:     int(r.Number("quarter")),
		Amount:      r.String("amount"),
		Currency:    r.String("currency"),
		Status:      r.String("status"),
		Description: r.String("description"),
		DueDate:     dateOnly(r.String("dueDate")),
		Penalties:   r.String("penalties"),
		Interest:    r.String("interest"),
	}

	// fill year and quarter from the period when the record only has that
	if d.Year == 0 || d.Quarter == 0 {
		var y, q int
		if _, err := fmt.Sscanf(r.String("period"), "%d-Q%d", &y, &q); err == nil {
			d.Year, d.Quarter = y, q
		}
	}
	if d.Currency == "" {
		d.Currency = DefaultCurrency
	}
	if d.Penalties == "" {
		d.Penalties = "0"
	}
	if d.Interest == "" {
		d.Interest = "0"
	}
	return d
}

// dateOnly reduces an RFC 3339 timestamp to its date; other input is returned trimmed.
func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.DateOnly)
	}
	if len(s) > len(time.DateOnly) {
		if _, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)]); err == nil {
			return s[:len(time.DateOnly)]
		}
	}
	return s
}

package forms

import (
	"context"

	"github.com/tra-portal/tra-portal/internal/services"
)

// OutcomeKind says how a submission ended.
type OutcomeKind int

const (
	// Submitted: the server accepted the write
	Submitted OutcomeKind = iota

	// NoChanges: the draft matches the original, nothing was sent
	NoChanges

	// ValidationFailed: the draft has field errors, nothing was sent
	ValidationFailed

	// ServerError: the write was sent and failed
	ServerError
)

func (k OutcomeKind) String() string {
	switch k {
	case Submitted:
		return "submitted"
	case NoChanges:
		return "no changes"
	case ValidationFailed:
		return "validation failed"
	case ServerError:
		return "server error"
	default:
		return "unknown"
	}
}

// Outcome is the result of a submission. Which fields are set depends on Kind.
type Outcome struct {
	Kind OutcomeKind

	// Assessment is the saved assessment (Submitted)
	Assessment *services.Assessment

	// Errors are the field errors (ValidationFailed)
	Errors Errors

	// Err is the failure (ServerError)
	Err error
}

// AssessmentWriter saves assessments. *store.Store implements it.
type AssessmentWriter interface {
	CreateAssessment(ctx context.Context, p services.Payload) (*services.Assessment, error)
	UpdateAssessment(ctx context.Context, id string, p services.Payload) (*services.Assessment, error)
}

// Submitter validates drafts and sends them.
type Submitter struct {
	Writer AssessmentWriter
}

// SubmitCreate validates d and creates the assessment.
func (s Submitter) SubmitCreate(ctx context.Context, d AssessmentDraft) Outcome {
	if errs := Validate(d); errs.HasErrors() {
		return Outcome{Kind: ValidationFailed, Errors: errs}
	}
	a, err := s.Writer.CreateAssessment(ctx, CreatePayload(d))
	if err != nil {
		return Outcome{Kind: ServerError, Err: err}
	}
	return Outcome{Kind: Submitted, Assessment: a}
}

// SubmitUpdate validates d and sends the fields that differ from original.
// Nothing is sent when there are no differences.
func (s Submitter) SubmitUpdate(ctx context.Context, id string, original Record, d AssessmentDraft) Outcome {
	if errs := Validate(d); errs.HasErrors() {
		return Outcome{Kind: ValidationFailed, Errors: errs}
	}
	payload, isEmpty := BuildUpdatePayload(original, d)
	if isEmpty {
		return Outcome{Kind: NoChanges}
	}
	a, err := s.Writer.UpdateAssessment(ctx, id, payload)
	if err != nil {
		return Outcome{Kind: ServerError, Err: err}
	}
	return Outcome{Kind: Submitted, Assessment: a}
}

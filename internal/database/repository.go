package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Kind names a collection of records.
type Kind string

const (
	KindTaxpayer          Kind = "taxpayer"
	KindVATTransaction    Kind = "vat_transaction"
	KindAudit             Kind = "audit"
	KindPenalty           Kind = "penalty"
	KindAssessment        Kind = "assessment"
	KindAssessmentHistory Kind = "assessment_history"
	KindAuditLog          Kind = "audit_log"
	KindChainRecord       Kind = "chain_record"
)

// ErrNotFound is returned when no record has the requested kind and id.
var ErrNotFound = errors.New("record not found")

// Document is one stored record.
type Document struct {
	Kind Kind
	ID   string

	// ParentID links a record to another one, e.g. a chain record to the
	// record it covers. Empty for top-level records.
	ParentID string

	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists documents.
//
// List returns documents newest first. Put inserts the document or replaces
// the one with the same kind and id, keeping its CreatedAt.
type Repository interface {
	Put(ctx context.Context, doc Document) error
	Get(ctx context.Context, kind Kind, id string) (Document, error)
	List(ctx context.Context, kind Kind) ([]Document, error)
	ListByParent(ctx context.Context, kind Kind, parentID string) ([]Document, error)
	Delete(ctx context.Context, kind Kind, id string) error
	Count(ctx context.Context, kind Kind) (int, error)
	Ping(ctx context.Context) error
	Close()
}

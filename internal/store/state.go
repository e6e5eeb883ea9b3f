package store

import (
	"slices"
	"time"

	"github.com/tra-portal/tra-portal/internal/services"
)

// State is an immutable snapshot of the store.
//
// Slices in a snapshot are never modified after the snapshot is published:
// every change builds new slices. Callers must not modify them either.
type State struct {
	Taxpayers    []services.Taxpayer
	Transactions []services.VATTransaction
	Audits       []services.Audit
	Assessments  []services.Assessment

	ComplianceDashboard *services.ComplianceDashboard
	RevenueDashboard    *services.RevenueDashboard
	BlockchainStats     *services.BlockchainStats

	RealTimeData RealTimeData

	// Loading is true while any action creator has a request in flight.
	// There is one flag for all requests: Loading == false does not mean
	// that every request has settled.
	Loading bool

	// Error is the most recent failure, nil after ClearError
	Error error
}

// RealTimeData tracks the periodic ledger refresh.
type RealTimeData struct {
	LastUpdated time.Time
}

// Action is a state change. Only the types in this package implement it.
type Action interface {
	action()
}

type (
	SetLoading struct{ Loading bool }
	SetError   struct{ Err error }
	ClearError struct{}

	SetTaxpayers struct{ Taxpayers []services.Taxpayer }
	AddTaxpayer  struct{ Taxpayer services.Taxpayer }

	SetTransactions struct{ Transactions []services.VATTransaction }
	AddTransaction  struct{ Transaction services.VATTransaction }

	SetAudits struct{ Audits []services.Audit }

	SetAssessments   struct{ Assessments []services.Assessment }
	UpsertAssessment struct{ Assessment services.Assessment }
	RemoveAssessment struct{ ID string }

	SetComplianceDashboard struct{ Dashboard *services.ComplianceDashboard }
	SetRevenueDashboard    struct{ Dashboard *services.RevenueDashboard }
	SetBlockchainStats     struct{ Stats *services.BlockchainStats }

	// SetRealTimeUpdate records a completed background refresh
	SetRealTimeUpdate struct {
		Stats *services.BlockchainStats
		At    time.Time
	}
)

func (SetLoading) action()             {}
func (SetError) action()               {}
func (ClearError) action()             {}
func (SetTaxpayers) action()           {}
func (AddTaxpayer) action()            {}
func (SetTransactions) action()        {}
func (AddTransaction) action()         {}
func (SetAudits) action()              {}
func (SetAssessments) action()         {}
func (UpsertAssessment) action()       {}
func (RemoveAssessment) action()       {}
func (SetComplianceDashboard) action() {}
func (SetRevenueDashboard) action()    {}
func (SetBlockchainStats) action()     {}
func (SetRealTimeUpdate) action()      {}

// reduce returns the state that results from applying a to s. It does not
// modify s or anything s refers to.
func reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetLoading:
		s.Loading = a.Loading
	case SetError:
		s.Error = a.Err
	case ClearError:
		s.Error = nil

	case SetTaxpayers:
		s.Taxpayers = slices.Clone(a.Taxpayers)
	case AddTaxpayer:
		// newest first
		s.Taxpayers = append([]services.Taxpayer{a.Taxpayer}, s.Taxpayers...)

	case SetTransactions:
		s.Transactions = slices.Clone(a.Transactions)
	case AddTransaction:
		s.Transactions = append([]services.VATTransaction{a.Transaction}, s.Transactions...)

	case SetAudits:
		s.Audits = slices.Clone(a.Audits)

	case SetAssessments:
		s.Assessments = slices.Clone(a.Assessments)
	case UpsertAssessment:
		i := slices.IndexFunc(s.Assessments, func(x services.Assessment) bool { return x.ID == a.Assessment.ID })
		if i < 0 {
			s.Assessments = append([]services.Assessment{a.Assessment}, s.Assessments...)
			break
		}
		next := slices.Clone(s.Assessments)
		next[i] = a.Assessment
		s.Assessments = next
	case RemoveAssessment:
		s.Assessments = slices.DeleteFunc(slices.Clone(s.Assessments), func(x services.Assessment) bool { return x.ID == a.ID })

	case SetComplianceDashboard:
		s.ComplianceDashboard = a.Dashboard
	case SetRevenueDashboard:
		s.RevenueDashboard = a.Dashboard
	case SetBlockchainStats:
		s.BlockchainStats = a.Stats
	case SetRealTimeUpdate:
		if a.Stats != nil {
			s.BlockchainStats = a.Stats
		}
		s.RealTimeData.LastUpdated = a.At
	}
	return s
}

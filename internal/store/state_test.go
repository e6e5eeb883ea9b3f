package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tra-portal/tra-portal/internal/services"
)

func TestReduce_DoesNotModifyInput(t *testing.T) {
	original := State{
		Assessments: []services.Assessment{{ID: "a-1", Status: "PENDING"}, {ID: "a-2"}, {ID: "a-3"}},
	}

	tests := []struct {
		name   string
		action Action
		want   []string
	}{
		{"upsert existing", UpsertAssessment{Assessment: services.Assessment{ID: "a-1", Status: "PAID"}}, []string{"a-1", "a-2", "a-3"}},
		{"upsert new", UpsertAssessment{Assessment: services.Assessment{ID: "a-4"}}, []string{"a-4", "a-1", "a-2", "a-3"}},
		{"remove", RemoveAssessment{ID: "a-2"}, []string{"a-1", "a-3"}},
		{"remove missing", RemoveAssessment{ID: "nope"}, []string{"a-1", "a-2", "a-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := reduce(original, tt.action)

			var ids []string
			for _, a := range next.Assessments {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.want, ids)

			assert.Len(t, original.Assessments, 3)
			assert.Equal(t, "PENDING", original.Assessments[0].Status)
			assert.Equal(t, "a-2", original.Assessments[1].ID)
		})
	}
}

func TestReduce_SetCopiesInput(t *testing.T) {
	in := []services.Taxpayer{{TIN: "1"}}
	s := reduce(State{}, SetTaxpayers{Taxpayers: in})
	in[0].TIN = "changed"

	assert.Equal(t, "1", s.Taxpayers[0].TIN)
}

func TestReduce_RealTimeUpdate(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := &services.BlockchainStats{TotalBlocks: 1}

	s := reduce(State{BlockchainStats: prev}, SetRealTimeUpdate{At: at})
	assert.Same(t, prev, s.BlockchainStats, "an update without stats keeps the previous ones")
	assert.Equal(t, at, s.RealTimeData.LastUpdated)

	next := &services.BlockchainStats{TotalBlocks: 2}
	s = reduce(s, SetRealTimeUpdate{Stats: next, At: at.Add(time.Minute)})
	assert.Same(t, next, s.BlockchainStats)
}

func TestReduce_LoadingAndError(t *testing.T) {
	s := reduce(State{}, SetLoading{Loading: true})
	assert.True(t, s.Loading)

	s = reduce(s, SetError{Err: errBackend})
	assert.ErrorIs(t, s.Error, errBackend)

	s = reduce(s, ClearError{})
	assert.NoError(t, s.Error)
	assert.True(t, s.Loading, "clearing the error leaves loading alone")
}

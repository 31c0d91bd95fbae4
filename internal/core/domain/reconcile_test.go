package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLateDays(t *testing.T) {
	tests := []struct {
		name     string
		planned  string
		returned string
		want     int
	}{
		{"five days late", "2024-01-10", "2024-01-15", 5},
		{"early", "2024-01-10", "2024-01-08", 0},
		{"same day", "2024-01-10", "2024-01-10", 0},
		{"across month", "2024-01-30", "2024-02-02", 3},
		{"across leap day", "2024-02-28", "2024-03-01", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LateDays(day(tt.planned), day(tt.returned)))
		})
	}
}

func TestLateDays_IgnoresTimeOfDay(t *testing.T) {
	planned := day("2024-01-10")
	returned := time.Date(2024, 1, 11, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 1, LateDays(planned, returned))
}

func TestFine(t *testing.T) {
	assert.True(t, Fine(5, DefaultFinePerDay).Equal(decimal.NewFromInt(25000)))
	assert.True(t, Fine(0, DefaultFinePerDay).IsZero())
	assert.True(t, Fine(-3, DefaultFinePerDay).IsZero())
	assert.True(t, Fine(2, decimal.RequireFromString("1250.50")).Equal(decimal.RequireFromString("2501")))
}

func TestBuckets_Validate(t *testing.T) {
	require.NoError(t, Buckets{Good: 2, Damaged: 1}.Validate(3))
	require.NoError(t, Buckets{Lost: 3}.Validate(3))

	err := Buckets{Good: 1, Damaged: 1}.Validate(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Contains(t, err.Error(), "2 do not match loan quantity 3")

	err = Buckets{Good: 4, Damaged: -1}.Validate(3)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Contains(t, err.Error(), "negative")
}

func TestBuckets_StockDeltaAndCondition(t *testing.T) {
	b := Buckets{Good: 2, Damaged: 1, Lost: 4}
	assert.Equal(t, StockDelta{Available: 2, UnderRepair: 1}, b.StockDelta())
	assert.Equal(t, ConditionLost, b.Condition())
	assert.Equal(t, ConditionDamaged, Buckets{Good: 1, Damaged: 1}.Condition())
	assert.Equal(t, ConditionGood, Buckets{Good: 3}.Condition())
}

func TestStockDelta_Sub(t *testing.T) {
	oldDelta := Buckets{Good: 2, Damaged: 1}.StockDelta()
	newDelta := Buckets{Good: 1, Damaged: 1, Lost: 1}.StockDelta()
	assert.Equal(t, StockDelta{Available: -1}, newDelta.Sub(oldDelta))
	assert.True(t, oldDelta.Sub(oldDelta).IsZero())
}

func TestStock_Apply(t *testing.T) {
	s := Stock{Total: 5, Available: 1, UnderRepair: 0}

	next, err := s.Apply(StockDelta{Available: 2, UnderRepair: 1})
	require.NoError(t, err)
	assert.Equal(t, Stock{Total: 5, Available: 3, UnderRepair: 1}, next)

	_, err = s.Apply(StockDelta{Available: -2})
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = s.Apply(StockDelta{Available: 4, UnderRepair: 1})
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestLoanStatus_Transitions(t *testing.T) {
	assert.True(t, LoanPending.CanTransition(LoanApproved))
	assert.True(t, LoanPending.CanTransition(LoanRejected))
	assert.True(t, LoanApproved.CanTransition(LoanLent))
	assert.True(t, LoanLent.CanTransition(LoanReturned))

	assert.False(t, LoanPending.CanTransition(LoanLent))
	assert.False(t, LoanApproved.CanTransition(LoanRejected))
	assert.False(t, LoanLent.CanTransition(LoanApproved))

	for _, terminal := range []LoanStatus{LoanReturned, LoanRejected} {
		assert.True(t, terminal.IsTerminal())
		for _, to := range []LoanStatus{LoanPending, LoanApproved, LoanLent, LoanReturned, LoanRejected} {
			assert.False(t, terminal.CanTransition(to), "%s -> %s", terminal, to)
		}
	}
}

func TestParseCondition(t *testing.T) {
	assert.Equal(t, ConditionDamaged, ParseCondition(" Damaged "))
	assert.Equal(t, ConditionLost, ParseCondition("hilang"))
	assert.Equal(t, ConditionGood, ParseCondition(""))
	assert.Equal(t, ConditionGood, ParseCondition("baik"))
}

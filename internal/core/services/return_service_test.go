package services

import (
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/core/domain"
)

func TestReconcileReturn_LateWithDamage(t *testing.T) {
	f := newLendingFixture(t, 5)
	loan := f.lentLoan(t, 3)

	before := reloadTool(t, f.repos, f.tool.ID)
	assert.Equal(t, 2, before.StockAvailable)

	record, err := f.reconcile(loan.ID, 2, 1, 0, "2024-01-15")
	require.NoError(t, err)

	assert.Equal(t, 5, record.LateDays)
	assert.True(t, record.Fine.Equal(dec("25000")), "fine = %s", record.Fine)
	assert.Equal(t, string(domain.ConditionDamaged), record.Condition)
	assert.Equal(t, f.staff.ID, record.ReceivedBy)

	after := reloadTool(t, f.repos, f.tool.ID)
	assert.Equal(t, before.StockAvailable+2, after.StockAvailable)
	assert.Equal(t, before.StockUnderRepair+1, after.StockUnderRepair)
	assert.Equal(t, 5, after.StockTotal)

	stored, err := f.loans.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.LoanReturned), stored.Status)
	require.NotNil(t, stored.Return)
	assert.Equal(t, record.ID, stored.Return.ID)

	history, err := f.loans.History(context.Background(), loan.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, models.ActionReturn, history[0].Action)

	assert.Contains(t, f.notifier.types(), EventLoanReturned)
}

func TestReconcileReturn_OnTime(t *testing.T) {
	f := newLendingFixture(t, 5)
	loan := f.lentLoan(t, 3)

	record, err := f.reconcile(loan.ID, 3, 0, 0, "2024-01-08")
	require.NoError(t, err)

	assert.Equal(t, 0, record.LateDays)
	assert.True(t, record.Fine.IsZero())
	assert.Equal(t, string(domain.ConditionGood), record.Condition)
	assert.Equal(t, 5, reloadTool(t, f.repos, f.tool.ID).StockAvailable)
}

func TestReconcileReturn_DefaultsToToday(t *testing.T) {
	f := newLendingFixture(t, 2)
	loan := f.lentLoan(t, 1)
	f.returns.now = fixedClock("2024-01-12")

	record, err := f.returns.ReconcileReturn(context.Background(), &ReconcileInput{
		LoanID:    loan.ID,
		UnitsGood: 1,
	}, f.staff.ID, "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-12", record.ReturnDate.Format(models.DateLayout))
	assert.Equal(t, 2, record.LateDays)
	assert.True(t, record.Fine.Equal(dec("10000")))
}

func TestReconcileReturn_LostUnitsLeaveCounters(t *testing.T) {
	f := newLendingFixture(t, 4)
	loan := f.lentLoan(t, 4)

	record, err := f.reconcile(loan.ID, 1, 1, 2, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, string(domain.ConditionLost), record.Condition)

	tool := reloadTool(t, f.repos, f.tool.ID)
	assert.Equal(t, 1, tool.StockAvailable)
	assert.Equal(t, 1, tool.StockUnderRepair)
	assert.Equal(t, 4, tool.StockTotal)
}

func TestReconcileReturn_ConservationViolated(t *testing.T) {
	tests := []struct {
		name                string
		good, damaged, lost int
	}{
		{"sum below quantity", 1, 1, 0},
		{"sum above quantity", 3, 1, 0},
		{"negative bucket", 4, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLendingFixture(t, 5)
			loan := f.lentLoan(t, 3)
			before := reloadTool(t, f.repos, f.tool.ID)

			_, err := f.reconcile(loan.ID, tt.good, tt.damaged, tt.lost, "2024-01-15")
			assert.ErrorIs(t, err, domain.ErrValidationFailed)

			after := reloadTool(t, f.repos, f.tool.ID)
			assert.Equal(t, before.StockAvailable, after.StockAvailable)
			assert.Equal(t, before.StockUnderRepair, after.StockUnderRepair)

			stored, err := f.loans.GetByID(context.Background(), loan.ID)
			require.NoError(t, err)
			assert.Equal(t, string(domain.LoanLent), stored.Status)
			assert.Nil(t, stored.Return)
		})
	}
}

func TestReconcileReturn_Twice(t *testing.T) {
	f := newLendingFixture(t, 5)
	loan := f.lentLoan(t, 3)

	_, err := f.reconcile(loan.ID, 2, 1, 0, "2024-01-15")
	require.NoError(t, err)
	afterFirst := reloadTool(t, f.repos, f.tool.ID)

	_, err = f.reconcile(loan.ID, 3, 0, 0, "2024-01-15")
	assert.ErrorIs(t, err, domain.ErrConflict)

	afterSecond := reloadTool(t, f.repos, f.tool.ID)
	assert.Equal(t, afterFirst.StockAvailable, afterSecond.StockAvailable)
	assert.Equal(t, afterFirst.StockUnderRepair, afterSecond.StockUnderRepair)
}

func TestReconcileReturn_NotLent(t *testing.T) {
	f := newLendingFixture(t, 5)

	pending := f.pendingLoan(t, 1)
	approved := f.approvedLoan(t, 1)
	rejected := f.pendingLoan(t, 1)
	_, err := f.loans.Reject(context.Background(), rejected.ID, f.staff.ID, "not today", "")
	require.NoError(t, err)

	for _, loan := range []*models.Loan{pending, approved, rejected} {
		_, err := f.reconcile(loan.ID, 1, 0, 0, "2024-01-05")
		assert.ErrorIs(t, err, domain.ErrPreconditionFailed, "loan %s", loan.Status)
	}
}

func TestReconcileReturn_NotFound(t *testing.T) {
	f := newLendingFixture(t, 1)

	_, err := f.reconcile(999, 1, 0, 0, "2024-01-15")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestReconcileReturn_IgnoresRequestedDate(t *testing.T) {
	f := newLendingFixture(t, 1)
	loan := f.lentLoan(t, 1)
	f.returns.now = fixedClock("2024-03-01")

	var input ReconcileInput
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(
		`{"units_good": 1, "return_date": "2023-12-01"}`, &input))
	input.LoanID = loan.ID

	record, err := f.returns.ReconcileReturn(context.Background(), &input, f.staff.ID, "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", record.ReturnDate.Format(models.DateLayout))
	assert.Equal(t, 51, record.LateDays)
	assert.True(t, record.Fine.Equal(dec("255000")), "fine = %s", record.Fine)
}

func TestCorrectReturn_AppliesDelta(t *testing.T) {
	f := newLendingFixture(t, 5)
	loan := f.lentLoan(t, 3)
	record, err := f.reconcile(loan.ID, 3, 0, 0, "2024-01-12")
	require.NoError(t, err)
	require.Equal(t, 5, reloadTool(t, f.repos, f.tool.ID).StockAvailable)

	notes := "one handle cracked"
	corrected, err := f.returns.CorrectReturn(context.Background(), record.ID, &CorrectReturnInput{
		UnitsGood:    1,
		UnitsDamaged: 1,
		UnitsLost:    1,
		Notes:        &notes,
	}, f.staff.ID, "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 1, corrected.UnitsGood)
	assert.Equal(t, string(domain.ConditionLost), corrected.Condition)
	assert.Equal(t, notes, corrected.Notes)
	assert.True(t, corrected.Fine.Equal(record.Fine), "fine kept")
	require.NotNil(t, corrected.CorrectedBy)
	assert.Equal(t, f.staff.ID, *corrected.CorrectedBy)

	tool := reloadTool(t, f.repos, f.tool.ID)
	assert.Equal(t, 3, tool.StockAvailable)
	assert.Equal(t, 1, tool.StockUnderRepair)

	history, err := f.loans.History(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionReturnCorrect, history[0].Action)
}

func TestCorrectReturn_FineOverride(t *testing.T) {
	f := newLendingFixture(t, 2)
	loan := f.lentLoan(t, 2)
	record, err := f.reconcile(loan.ID, 2, 0, 0, "2024-01-20")
	require.NoError(t, err)
	require.True(t, record.Fine.Equal(dec("50000")))

	waived := dec("12500.499")
	corrected, err := f.returns.CorrectReturn(context.Background(), record.ID, &CorrectReturnInput{
		UnitsGood: 2,
		Fine:      &waived,
	}, f.staff.ID, "")
	require.NoError(t, err)
	assert.True(t, corrected.Fine.Equal(dec("12500.50")), "fine = %s", corrected.Fine)

	negative := dec("-1")
	_, err = f.returns.CorrectReturn(context.Background(), record.ID, &CorrectReturnInput{
		UnitsGood: 2,
		Fine:      &negative,
	}, f.staff.ID, "")
	assert.ErrorIs(t, err, ErrNegativeFine)
}

func TestCorrectReturn_RevalidatesConservation(t *testing.T) {
	f := newLendingFixture(t, 5)
	loan := f.lentLoan(t, 3)
	record, err := f.reconcile(loan.ID, 3, 0, 0, "2024-01-10")
	require.NoError(t, err)

	_, err = f.returns.CorrectReturn(context.Background(), record.ID, &CorrectReturnInput{
		UnitsGood:    1,
		UnitsDamaged: 1,
	}, f.staff.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	stored, err := f.returns.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.UnitsGood)
	assert.Nil(t, stored.CorrectedBy)
	assert.Equal(t, 5, reloadTool(t, f.repos, f.tool.ID).StockAvailable)
}

func TestCorrectReturn_NotFound(t *testing.T) {
	f := newLendingFixture(t, 1)

	_, err := f.returns.CorrectReturn(context.Background(), 42, &CorrectReturnInput{UnitsGood: 1}, f.staff.ID, "")
	assert.ErrorIs(t, err, ErrReturnNotFound)
}

func TestReturnService_List(t *testing.T) {
	f := newLendingFixture(t, 5)
	first := f.lentLoan(t, 1)
	second := f.lentLoan(t, 2)
	_, err := f.reconcile(first.ID, 1, 0, 0, "2024-01-05")
	require.NoError(t, err)
	_, err = f.reconcile(second.ID, 2, 0, 0, "2024-01-05")
	require.NoError(t, err)

	out, err := f.returns.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, out.Returns, 2)
	assert.EqualValues(t, 2, out.Meta.Total)

	byLoan, err := f.returns.GetByLoanID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, byLoan.UnitsGood)
}

func TestReconcileReturn_RollsBackWhenStockRejects(t *testing.T) {
	f := newLendingFixture(t, 5)
	loan := f.lentLoan(t, 3)

	// 2 available + 3 good would exceed a total of 2
	require.NoError(t, f.repos.DB().Model(&models.Tool{}).
		Where("id = ?", f.tool.ID).
		Update("stock_total", 2).Error)

	_, err := f.reconcile(loan.ID, 3, 0, 0, "2024-01-15")
	assert.ErrorIs(t, err, domain.ErrConflict)

	var records int64
	require.NoError(t, f.repos.DB().Model(&models.LoanReturn{}).Where("loan_id = ?", loan.ID).Count(&records).Error)
	assert.Zero(t, records)

	stored, err := f.loans.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.LoanLent), stored.Status)
	assert.Nil(t, stored.Return)

	tool := reloadTool(t, f.repos, f.tool.ID)
	assert.Equal(t, 2, tool.StockAvailable)
	assert.Zero(t, tool.StockUnderRepair)

	history, err := f.loans.History(context.Background(), loan.ID)
	require.NoError(t, err)
	for _, h := range history {
		assert.NotEqual(t, models.ActionReturn, h.Action)
	}
	assert.NotContains(t, f.notifier.types(), EventLoanReturned)
}

func TestReturnRepository_CreateTwiceConflicts(t *testing.T) {
	f := newLendingFixture(t, 2)
	loan := f.lentLoan(t, 1)
	ctx := context.Background()

	newRecord := func() *models.LoanReturn {
		return &models.LoanReturn{
			LoanID:     loan.ID,
			ReturnDate: domain.Date(f.returns.now()),
			UnitsGood:  1,
			Fine:       dec("0"),
			Condition:  string(domain.ConditionGood),
			ReceivedBy: f.staff.ID,
		}
	}

	require.NoError(t, f.repos.Returns.Create(ctx, newRecord()))

	err := f.repos.Returns.Create(ctx, newRecord())
	assert.ErrorIs(t, err, domain.ErrConflict)

	var records int64
	require.NoError(t, f.repos.DB().Model(&models.LoanReturn{}).Where("loan_id = ?", loan.ID).Count(&records).Error)
	assert.Equal(t, int64(1), records)
}

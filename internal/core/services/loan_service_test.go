package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/core/domain"
)

func TestLoanService_Lifecycle(t *testing.T) {
	f := newLendingFixture(t, 5)
	ctx := context.Background()

	loan := f.pendingLoan(t, 2)
	assert.Equal(t, string(domain.LoanPending), loan.Status)
	assert.Regexp(t, `^LN-20240101-[0-9A-F]{6}$`, loan.Code)
	assert.Equal(t, f.borrower.ID, loan.BorrowerID)

	loan, err := f.loans.Approve(ctx, loan.ID, f.staff.ID, "fine", "")
	require.NoError(t, err)
	assert.Equal(t, string(domain.LoanApproved), loan.Status)
	require.NotNil(t, loan.ValidatorID)
	assert.Equal(t, f.staff.ID, *loan.ValidatorID)
	assert.Equal(t, 5, reloadTool(t, f.repos, f.tool.ID).StockAvailable, "approval reserves nothing")

	loan, err = f.loans.Lend(ctx, loan.ID, f.staff.ID, "")
	require.NoError(t, err)
	assert.Equal(t, string(domain.LoanLent), loan.Status)
	assert.Equal(t, 3, reloadTool(t, f.repos, f.tool.ID).StockAvailable)

	history, err := f.loans.History(ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	assert.Equal(t, []string{EventLoanCreated, EventLoanApproved, EventLoanLent}, f.notifier.types())
	assert.Equal(t, "Hammer", f.notifier.events[2].ToolName)
}

func TestLoanService_CreateValidation(t *testing.T) {
	f := newLendingFixture(t, 2)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateLoanInput
		want  error
	}{
		{"zero quantity", CreateLoanInput{ToolID: f.tool.ID, PlannedReturnDate: "2024-01-05", Purpose: "x"}, domain.ErrValidationFailed},
		{"no purpose", CreateLoanInput{ToolID: f.tool.ID, Quantity: 1, PlannedReturnDate: "2024-01-05"}, domain.ErrValidationFailed},
		{"return before loan", CreateLoanInput{ToolID: f.tool.ID, Quantity: 1, LoanDate: "2024-01-05", PlannedReturnDate: "2024-01-04", Purpose: "x"}, domain.ErrValidationFailed},
		{"more than total", CreateLoanInput{ToolID: f.tool.ID, Quantity: 3, PlannedReturnDate: "2024-01-05", Purpose: "x"}, domain.ErrValidationFailed},
		{"unknown tool", CreateLoanInput{ToolID: 999, Quantity: 1, PlannedReturnDate: "2024-01-05", Purpose: "x"}, ErrToolNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			_, err := f.loans.Create(ctx, &input, f.borrower.ID, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoanService_LendInsufficientStock(t *testing.T) {
	f := newLendingFixture(t, 3)
	ctx := context.Background()

	first := f.approvedLoan(t, 2)
	second := f.approvedLoan(t, 2)

	_, err := f.loans.Lend(ctx, first.ID, f.staff.ID, "")
	require.NoError(t, err)

	_, err = f.loans.Lend(ctx, second.ID, f.staff.ID, "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	stored, err := f.loans.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.LoanApproved), stored.Status)
	assert.Equal(t, 1, reloadTool(t, f.repos, f.tool.ID).StockAvailable)
}

func TestLoanService_GuardedTransitions(t *testing.T) {
	f := newLendingFixture(t, 5)
	ctx := context.Background()

	pending := f.pendingLoan(t, 1)
	_, err := f.loans.Lend(ctx, pending.ID, f.staff.ID, "")
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed, "pending cannot be lent")

	lent := f.lentLoan(t, 1)
	_, err = f.loans.Approve(ctx, lent.ID, f.staff.ID, "", "")
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed, "lent cannot be approved")
	_, err = f.loans.Reject(ctx, lent.ID, f.staff.ID, "late", "")
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed, "lent cannot be rejected")

	rejected := f.pendingLoan(t, 1)
	_, err = f.loans.Reject(ctx, rejected.ID, f.staff.ID, "duplicate request", "")
	require.NoError(t, err)
	_, err = f.loans.Approve(ctx, rejected.ID, f.staff.ID, "", "")
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed, "rejected is terminal")
}

func TestLoanService_RejectRequiresNote(t *testing.T) {
	f := newLendingFixture(t, 1)
	loan := f.pendingLoan(t, 1)

	_, err := f.loans.Reject(context.Background(), loan.ID, f.staff.ID, "  ", "")
	assert.ErrorIs(t, err, ErrRejectNoteEmpty)

	_, err = f.loans.Approve(context.Background(), loan.ID, 0, "", "")
	assert.ErrorIs(t, err, ErrValidatorMissing)
}

func TestLoanService_ListAndReceipt(t *testing.T) {
	f := newLendingFixture(t, 5)
	ctx := context.Background()

	f.pendingLoan(t, 1)
	lent := f.lentLoan(t, 2)
	_, err := f.reconcile(lent.ID, 2, 0, 0, "2024-01-11")
	require.NoError(t, err)

	all, err := f.loans.List(ctx, &ListLoansInput{})
	require.NoError(t, err)
	assert.Len(t, all.Loans, 2)

	returned, err := f.loans.List(ctx, &ListLoansInput{Status: string(domain.LoanReturned)})
	require.NoError(t, err)
	require.Len(t, returned.Loans, 1)

	mine, err := f.loans.ListMine(ctx, f.staff.ID, &ListLoansInput{})
	require.NoError(t, err)
	assert.Empty(t, mine.Loans)

	_, err = f.loans.List(ctx, &ListLoansInput{Status: "borrowed"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	receipt, err := f.loans.Receipt(ctx, lent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hammer", receipt.ToolName)
	assert.Equal(t, "budi", receipt.BorrowerName)
	assert.Equal(t, "sari", receipt.ValidatedBy)
	require.NotNil(t, receipt.Return)
	assert.Equal(t, 1, receipt.Return.LateDays)
	assert.True(t, receipt.Return.Fine.Equal(dec("5000")))
}

func TestLoanService_NotFound(t *testing.T) {
	f := newLendingFixture(t, 1)

	_, err := f.loans.GetByID(context.Background(), 7)
	assert.ErrorIs(t, err, ErrLoanNotFound)

	_, err = f.loans.Lend(context.Background(), 7, f.staff.ID, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

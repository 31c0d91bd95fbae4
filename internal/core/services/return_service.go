package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/core/domain"
	"toolhub/internal/pkg/pagination"
)

// Return service errors
var (
	ErrReturnNotFound = fmt.Errorf("return record %w", domain.ErrNotFound)
	ErrNegativeFine   = fmt.Errorf("%w: fine must not be negative", domain.ErrValidationFailed)
)

// ReturnService reconciles lent loans: it records the condition breakdown,
// computes lateness and fine, closes the loan and puts units back on the
// tool's counters, all in one transaction.
type ReturnService struct {
	repos      *repositories.Registry
	finePerDay decimal.Decimal
	cache      Cache
	notifier   Notifier
	log        *zap.Logger
	now        func() time.Time
}

// NewReturnService creates a new return service. cache and notifier may be nil.
func NewReturnService(repos *repositories.Registry, finePerDay decimal.Decimal, cache Cache, notifier Notifier) *ReturnService {
	return &ReturnService{
		repos:      repos,
		finePerDay: finePerDay,
		cache:      cache,
		notifier:   notifier,
		log:        zap.L().Named("return"),
		now:        time.Now,
	}
}

// ReconcileInput represents a return reconciliation request
type ReconcileInput struct {
	LoanID       uint   `json:"-"`
	UnitsGood    int    `json:"units_good"`
	UnitsDamaged int    `json:"units_damaged"`
	UnitsLost    int    `json:"units_lost"`
	Notes        string `json:"notes,omitempty"`
}

func (in *ReconcileInput) buckets() domain.Buckets {
	return domain.Buckets{Good: in.UnitsGood, Damaged: in.UnitsDamaged, Lost: in.UnitsLost}
}

// ReconcileReturn closes a lent loan. Errors:
//   - loan missing: NotFound
//   - loan already has a return record: Conflict
//   - loan not lent: PreconditionFailed
//   - negative buckets or buckets not summing to the loan quantity: ValidationFailed
//
// The return date is always today; late days and the fine are computed
// from it. Nothing is written unless every step succeeds.
func (s *ReturnService) ReconcileReturn(ctx context.Context, input *ReconcileInput, staffID uint, ipAddress string) (*models.LoanReturn, error) {
	returnDate := domain.Date(s.now())
	buckets := input.buckets()

	var record *models.LoanReturn
	err := s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		loan, err := tx.Loans.LockByID(ctx, input.LoanID)
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}

		exists, err := tx.Returns.ExistsForLoan(ctx, loan.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: loan %s was already returned", domain.ErrConflict, loan.Code)
		}
		if loan.LoanStatus() != domain.LoanLent {
			return fmt.Errorf("%w: loan %s is %s, only lent loans can be returned",
				domain.ErrPreconditionFailed, loan.Code, loan.Status)
		}
		if err := buckets.Validate(loan.Quantity); err != nil {
			return err
		}

		lateDays := domain.LateDays(loan.PlannedReturnDate, returnDate)
		record = &models.LoanReturn{
			LoanID:       loan.ID,
			ReturnDate:   returnDate,
			UnitsGood:    buckets.Good,
			UnitsDamaged: buckets.Damaged,
			UnitsLost:    buckets.Lost,
			LateDays:     lateDays,
			Fine:         domain.Fine(lateDays, s.finePerDay),
			Condition:    string(buckets.Condition()),
			Notes:        strings.TrimSpace(input.Notes),
			ReceivedBy:   staffID,
		}
		if err := tx.Returns.Create(ctx, record); err != nil {
			return err
		}

		if err := tx.Loans.TransitionStatus(ctx, loan.ID, domain.LoanLent, domain.LoanReturned, nil); err != nil {
			return err
		}

		if _, err := tx.Tools.AdjustStock(ctx, loan.ToolID, buckets.StockDelta()); err != nil {
			return err
		}

		return tx.Histories.Create(ctx, &models.LoanHistory{
			LoanID:      loan.ID,
			Action:      models.ActionReturn,
			FromStatus:  string(domain.LoanLent),
			ToStatus:    string(domain.LoanReturned),
			Description: describeReturn(buckets, record.LateDays, record.Fine),
			PerformedBy: staffID,
			IPAddress:   ipAddress,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan returned",
		zap.Uint("loan_id", record.LoanID),
		zap.Int("good", record.UnitsGood),
		zap.Int("damaged", record.UnitsDamaged),
		zap.Int("lost", record.UnitsLost),
		zap.Int("late_days", record.LateDays),
		zap.String("fine", record.Fine.StringFixed(2)),
	)
	invalidateReports(ctx, s.cache)
	s.emit(ctx, record.LoanID, EventLoanReturned, describeReturn(buckets, record.LateDays, record.Fine))

	return record, nil
}

// CorrectReturnInput represents a staff correction of a return record.
// Fine and Notes are left unchanged when nil.
type CorrectReturnInput struct {
	UnitsGood    int              `json:"units_good"`
	UnitsDamaged int              `json:"units_damaged"`
	UnitsLost    int              `json:"units_lost"`
	Fine         *decimal.Decimal `json:"fine,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}

// CorrectReturn edits a recorded return. The new buckets must still sum to
// the loan quantity, and the tool counters move by the difference between
// the new and old breakdowns in the same transaction.
func (s *ReturnService) CorrectReturn(ctx context.Context, returnID uint, input *CorrectReturnInput, staffID uint, ipAddress string) (*models.LoanReturn, error) {
	if input.Fine != nil && input.Fine.IsNegative() {
		return nil, ErrNegativeFine
	}
	next := domain.Buckets{Good: input.UnitsGood, Damaged: input.UnitsDamaged, Lost: input.UnitsLost}

	var record *models.LoanReturn
	err := s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		var err error
		record, err = tx.Returns.LockByID(ctx, returnID)
		if err != nil {
			return notFound(err, ErrReturnNotFound)
		}

		loan, err := tx.Loans.LockByID(ctx, record.LoanID)
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}
		if err := next.Validate(loan.Quantity); err != nil {
			return err
		}

		prev := record.Buckets()
		delta := next.StockDelta().Sub(prev.StockDelta())
		if _, err := tx.Tools.AdjustStock(ctx, loan.ToolID, delta); err != nil {
			return err
		}

		oldFine := record.Fine
		now := s.now()
		record.UnitsGood = next.Good
		record.UnitsDamaged = next.Damaged
		record.UnitsLost = next.Lost
		record.Condition = string(next.Condition())
		if input.Fine != nil {
			record.Fine = input.Fine.Round(2)
		}
		if input.Notes != nil {
			record.Notes = strings.TrimSpace(*input.Notes)
		}
		record.CorrectedBy = &staffID
		record.CorrectedAt = &now
		if err := tx.Returns.Update(ctx, record); err != nil {
			return err
		}

		return tx.Histories.Create(ctx, &models.LoanHistory{
			LoanID:     loan.ID,
			Action:     models.ActionReturnCorrect,
			FromStatus: loan.Status,
			ToStatus:   loan.Status,
			Description: fmt.Sprintf("corrected %d/%d/%d -> %d/%d/%d, fine %s -> %s",
				prev.Good, prev.Damaged, prev.Lost, next.Good, next.Damaged, next.Lost,
				oldFine.StringFixed(2), record.Fine.StringFixed(2)),
			PerformedBy: staffID,
			IPAddress:   ipAddress,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("return corrected", zap.Uint("return_id", record.ID), zap.Uint("staff_id", staffID))
	invalidateReports(ctx, s.cache)
	return record, nil
}

// GetByID gets a return record
func (s *ReturnService) GetByID(ctx context.Context, id uint) (*models.LoanReturn, error) {
	record, err := s.repos.Returns.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrReturnNotFound)
	}
	return record, nil
}

// GetByLoanID gets the return record of a loan
func (s *ReturnService) GetByLoanID(ctx context.Context, loanID uint) (*models.LoanReturn, error) {
	record, err := s.repos.Returns.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, notFound(err, ErrReturnNotFound)
	}
	return record, nil
}

// ListReturnsOutput represents list output
type ListReturnsOutput struct {
	Returns []*models.LoanReturn `json:"returns"`
	Meta    *pagination.Meta     `json:"meta"`
}

// List lists return records
func (s *ReturnService) List(ctx context.Context, page, limit int) (*ListReturnsOutput, error) {
	params := pagination.New(page, limit)
	records, total, err := s.repos.Returns.List(ctx, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}
	return &ListReturnsOutput{Returns: records, Meta: pagination.GetMeta(params, total)}, nil
}

func (s *ReturnService) emit(ctx context.Context, loanID uint, eventType, message string) {
	if s.notifier == nil {
		return
	}
	loan, err := s.repos.Loans.GetByID(ctx, loanID)
	if err != nil {
		s.log.Warn("notification skipped", zap.Uint("loan_id", loanID), zap.Error(err))
		return
	}
	s.notifier.Notify(ctx, loanEvent(loan, eventType, message, s.now()))
}

func describeReturn(b domain.Buckets, lateDays int, fine decimal.Decimal) string {
	msg := fmt.Sprintf("returned good=%d damaged=%d lost=%d", b.Good, b.Damaged, b.Lost)
	if lateDays > 0 {
		msg += fmt.Sprintf(", %d day(s) late, fine %s", lateDays, fine.StringFixed(2))
	}
	return msg
}

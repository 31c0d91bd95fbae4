package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/core/domain"
)

// ReturnRepository handles return record data access
type ReturnRepository struct {
	db *gorm.DB
}

// NewReturnRepository creates a new return repository
func NewReturnRepository(db *gorm.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

// Create inserts the return record of a loan. The unique index on loan_id
// turns a second insert into domain.ErrConflict.
func (r *ReturnRepository) Create(ctx context.Context, record *models.LoanReturn) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: loan %d already has a return record", domain.ErrConflict, record.LoanID)
	}
	return err
}

// GetByID gets a return record by ID with its loan
func (r *ReturnRepository) GetByID(ctx context.Context, id uint) (*models.LoanReturn, error) {
	var record models.LoanReturn
	err := r.db.WithContext(ctx).Preload("Loan").Preload("Loan.Tool").First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByLoanID gets the return record of a loan
func (r *ReturnRepository) GetByLoanID(ctx context.Context, loanID uint) (*models.LoanReturn, error) {
	var record models.LoanReturn
	err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ExistsForLoan reports whether the loan was already reconciled
func (r *ReturnRepository) ExistsForLoan(ctx context.Context, loanID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LoanReturn{}).Where("loan_id = ?", loanID).Count(&count).Error
	return count > 0, err
}

// LockByID reads a return record with SELECT ... FOR UPDATE
func (r *ReturnRepository) LockByID(ctx context.Context, id uint) (*models.LoanReturn, error) {
	var record models.LoanReturn
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Update saves a corrected return record
func (r *ReturnRepository) Update(ctx context.Context, record *models.LoanReturn) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// List lists return records, newest first
func (r *ReturnRepository) List(ctx context.Context, offset, limit int) ([]*models.LoanReturn, int64, error) {
	var records []*models.LoanReturn
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.LoanReturn{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("Loan").
		Preload("Loan.Tool").
		Preload("Loan.Borrower").
		Order("return_date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// SumFines adds up fines of returns dated in [from, to)
func (r *ReturnRepository) SumFines(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var fines []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.LoanReturn{}).
		Where("return_date >= ? AND return_date < ?", domain.Date(from), domain.Date(to)).
		Pluck("fine", &fines).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, fines...), nil
}

package repositories

import (
	"context"

	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
)

// LoanHistoryRepository handles the loan audit trail
type LoanHistoryRepository struct {
	db *gorm.DB
}

// NewLoanHistoryRepository creates a new loan history repository
func NewLoanHistoryRepository(db *gorm.DB) *LoanHistoryRepository {
	return &LoanHistoryRepository{db: db}
}

// Create appends a history row
func (r *LoanHistoryRepository) Create(ctx context.Context, h *models.LoanHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

// GetByLoanID gets the history of a loan, newest first
func (r *LoanHistoryRepository) GetByLoanID(ctx context.Context, loanID uint) ([]*models.LoanHistory, error) {
	var rows []*models.LoanHistory
	err := r.db.WithContext(ctx).
		Preload("Performer").
		Where("loan_id = ?", loanID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

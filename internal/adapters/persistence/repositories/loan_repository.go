package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/core/domain"
)

// LoanFilter narrows loan listings
type LoanFilter struct {
	Status     string
	BorrowerID *uint
	ToolID     *uint
	OverdueAt  *time.Time // lent loans planned back before this date
	Search     string
}

// LoanRepository handles loan data access
type LoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Create creates a new loan
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// GetByID gets a loan by ID with relations
func (r *LoanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.withRelations(ctx).First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetByCode gets a loan by code with relations
func (r *LoanRepository) GetByCode(ctx context.Context, code string) (*models.Loan, error) {
	var loan models.Loan
	err := r.withRelations(ctx).Where("code = ?", code).First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// LockByID reads a bare loan row with SELECT ... FOR UPDATE
func (r *LoanRepository) LockByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *LoanRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Tool").
		Preload("Borrower").
		Preload("Validator").
		Preload("Return")
}

// List lists loans, newest first
func (r *LoanRepository) List(ctx context.Context, filter LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	var loans []*models.Loan
	var total int64

	q := r.filtered(ctx, filter)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("Tool").Preload("Borrower").Preload("Return").Order("loans.created_at DESC, loans.id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&loans).Error; err != nil {
		return nil, 0, err
	}

	return loans, total, nil
}

func (r *LoanRepository) filtered(ctx context.Context, filter LoanFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Loan{})

	if filter.Status != "" {
		q = q.Where("loans.status = ?", filter.Status)
	}
	if filter.BorrowerID != nil {
		q = q.Where("loans.borrower_id = ?", *filter.BorrowerID)
	}
	if filter.ToolID != nil {
		q = q.Where("loans.tool_id = ?", *filter.ToolID)
	}
	if filter.OverdueAt != nil {
		q = q.Where("loans.status = ? AND loans.planned_return_date < ?",
			string(domain.LoanLent), domain.Date(*filter.OverdueAt))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Joins("LEFT JOIN tools ON tools.id = loans.tool_id").
			Joins("LEFT JOIN users ON users.id = loans.borrower_id").
			Where("LOWER(loans.code) LIKE ? OR LOWER(loans.purpose) LIKE ? OR LOWER(tools.name) LIKE ? OR LOWER(users.full_name) LIKE ? OR LOWER(users.username) LIKE ?",
				like, like, like, like, like)
	}
	return q
}

// TransitionStatus moves a loan from one status to another with a
// compare-and-set on the current status. fields are written in the same
// UPDATE. If the row is no longer in from, it fails with domain.ErrConflict.
func (r *LoanRepository) TransitionStatus(ctx context.Context, id uint, from, to domain.LoanStatus, fields map[string]any) error {
	updates := map[string]any{"status": string(to)}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: loan %d is no longer %s", domain.ErrConflict, id, from)
	}
	return nil
}

// CountByStatus returns loan counts keyed by status
func (r *LoanRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// ToolUsage is a borrowing tally per tool
type ToolUsage struct {
	ToolID    uint   `json:"tool_id"`
	ToolCode  string `json:"tool_code"`
	ToolName  string `json:"tool_name"`
	LoanCount int64  `json:"loans"`
	Units     int64  `json:"units"`
}

// TopTools ranks tools by number of non-rejected loans
func (r *LoanRepository) TopTools(ctx context.Context, limit int) ([]ToolUsage, error) {
	var rows []ToolUsage
	err := r.db.WithContext(ctx).
		Table("loans").
		Select("tools.id AS tool_id, tools.code AS tool_code, tools.name AS tool_name, COUNT(loans.id) AS loan_count, COALESCE(SUM(loans.quantity), 0) AS units").
		Joins("JOIN tools ON tools.id = loans.tool_id").
		Where("loans.status <> ?", string(domain.LoanRejected)).
		Group("tools.id, tools.code, tools.name").
		Order("loan_count DESC, tools.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// LentUnitsTotal sums quantity over all lent loans
func (r *LoanRepository) LentUnitsTotal(ctx context.Context) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("status = ?", string(domain.LoanLent)).
		Scan(&sum).Error
	return sum, err
}

// CodeExists reports whether a loan code is taken
func (r *LoanRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

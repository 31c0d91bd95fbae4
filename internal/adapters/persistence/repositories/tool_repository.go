package repositories

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/core/domain"
)

// ToolFilter narrows tool listings
type ToolFilter struct {
	Search     string
	CategoryID *uint
	Available  bool
}

// ToolRepository handles tool data access and owns the stock counters
type ToolRepository struct {
	db *gorm.DB
}

// NewToolRepository creates a new tool repository
func NewToolRepository(db *gorm.DB) *ToolRepository {
	return &ToolRepository{db: db}
}

// Create creates a new tool
func (r *ToolRepository) Create(ctx context.Context, tool *models.Tool) error {
	return r.db.WithContext(ctx).Create(tool).Error
}

// CreateBatch inserts tools in chunks; callers wrap it in a transaction
func (r *ToolRepository) CreateBatch(ctx context.Context, tools []*models.Tool) error {
	if len(tools) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(tools, 100).Error
}

// GetByID gets a tool by ID with its category
func (r *ToolRepository) GetByID(ctx context.Context, id uint) (*models.Tool, error) {
	var tool models.Tool
	err := r.db.WithContext(ctx).Preload("Category").First(&tool, id).Error
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

// GetByCode gets a tool by code
func (r *ToolRepository) GetByCode(ctx context.Context, code string) (*models.Tool, error) {
	var tool models.Tool
	err := r.db.WithContext(ctx).Preload("Category").Where("code = ?", code).First(&tool).Error
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

// LockByID reads a tool with SELECT ... FOR UPDATE. Only meaningful inside
// a transaction.
func (r *ToolRepository) LockByID(ctx context.Context, id uint) (*models.Tool, error) {
	var tool models.Tool
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tool, id).Error
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

// List lists tools with pagination
func (r *ToolRepository) List(ctx context.Context, filter ToolFilter, offset, limit int) ([]*models.Tool, int64, error) {
	var tools []*models.Tool
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Tool{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ? OR LOWER(location) LIKE ?", like, like, like)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Available {
		q = q.Where("stock_available > 0")
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("Category").Order("name ASC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&tools).Error; err != nil {
		return nil, 0, err
	}

	return tools, total, nil
}

// Update saves descriptive fields. Stock counters only change through
// AdjustStock and SetTotal.
func (r *ToolRepository) Update(ctx context.Context, tool *models.Tool) error {
	return r.db.WithContext(ctx).
		Model(tool).
		Select("code", "name", "description", "category_id", "location", "condition", "is_active").
		Updates(tool).Error
}

// Delete soft deletes a tool
func (r *ToolRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Tool{}, id).Error
}

// AdjustStock applies delta to the tool's available and under-repair
// counters under a row lock and returns the updated tool. A result with a
// negative counter or available+underRepair above total fails with
// domain.ErrConflict. Run it inside the caller's transaction so the stock
// change commits together with the loan or return write.
func (r *ToolRepository) AdjustStock(ctx context.Context, toolID uint, delta domain.StockDelta) (*models.Tool, error) {
	tool, err := r.LockByID(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return tool, nil
	}

	next, err := tool.Stock().Apply(delta)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", tool.Code, err)
	}

	err = r.db.WithContext(ctx).
		Model(&models.Tool{}).
		Where("id = ?", toolID).
		Updates(map[string]any{
			"stock_available":    next.Available,
			"stock_under_repair": next.UnderRepair,
		}).Error
	if err != nil {
		return nil, err
	}

	tool.StockAvailable = next.Available
	tool.StockUnderRepair = next.UnderRepair
	return tool, nil
}

// SetTotal writes a new stock_total. The caller validates it under LockByID.
func (r *ToolRepository) SetTotal(ctx context.Context, toolID uint, total, available int) error {
	return r.db.WithContext(ctx).
		Model(&models.Tool{}).
		Where("id = ?", toolID).
		Updates(map[string]any{
			"stock_total":     total,
			"stock_available": available,
		}).Error
}

// LentUnits sums the quantity of loans currently out for the tool
func (r *ToolRepository) LentUnits(ctx context.Context, toolID uint) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("tool_id = ? AND status = ?", toolID, string(domain.LoanLent)).
		Scan(&sum).Error
	return sum, err
}

// FindExistingNames returns the lowercased names of active catalog tools
// that match names case-insensitively.
func (r *ToolRepository) FindExistingNames(ctx context.Context, names []string) ([]string, error) {
	return pluckLower(r.db.WithContext(ctx).Model(&models.Tool{}), "name", names)
}

// FindExistingCodes returns the lowercased codes already taken, including
// soft-deleted tools.
func (r *ToolRepository) FindExistingCodes(ctx context.Context, codes []string) ([]string, error) {
	return pluckLower(r.db.WithContext(ctx).Unscoped().Model(&models.Tool{}), "code", codes)
}

// CodesWithPrefix returns tool codes starting with prefix, including
// soft-deleted ones since they keep their unique index entry.
func (r *ToolRepository) CodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Unscoped().
		Model(&models.Tool{}).
		Where("code LIKE ?", prefix+"%").
		Pluck("code", &codes).Error
	return codes, err
}

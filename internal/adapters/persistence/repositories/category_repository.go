package repositories

import (
	"context"

	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
)

// CategoryRepository handles category data access
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

// GetByID gets a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).First(&category, id).Error
	return &category, err
}

// GetByCode gets a category by code
func (r *CategoryRepository) GetByCode(ctx context.Context, code string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&category).Error
	return &category, err
}

// List lists active categories, or all of them when includeInactive is set
func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]*models.Category, error) {
	var categories []*models.Category
	q := r.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&categories).Error
	return categories, err
}

// Update updates a category
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

// Delete soft deletes a category
func (r *CategoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Category{}, id).Error
}

// CountTools counts tools still referencing the category
func (r *CategoryRepository) CountTools(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tool{}).Where("category_id = ?", id).Count(&count).Error
	return count, err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/core/domain"
)

// Category service errors
var (
	ErrCategoryCodeExists = fmt.Errorf("%w: category code already exists", domain.ErrConflict)
	ErrCategoryInUse      = fmt.Errorf("%w: category still has tools", domain.ErrPreconditionFailed)
)

// CategoryService manages tool categories (master data)
type CategoryService struct {
	repo *repositories.CategoryRepository
}

// NewCategoryService creates a new category service
func NewCategoryService(repo *repositories.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

// CategoryInput represents create/update category input
type CategoryInput struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (in *CategoryInput) validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("%w: code is required", domain.ErrValidationFailed)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidationFailed)
	}
	return nil
}

// Create creates a category
func (s *CategoryService) Create(ctx context.Context, input *CategoryInput) (*models.Category, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	category := &models.Category{
		Code:        strings.ToUpper(strings.TrimSpace(input.Code)),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		IsActive:    input.IsActive == nil || *input.IsActive,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCategoryCodeExists
		}
		return nil, err
	}
	return category, nil
}

// GetByID gets a category
func (s *CategoryService) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	return category, nil
}

// List lists categories
func (s *CategoryService) List(ctx context.Context, includeInactive bool) ([]*models.Category, error) {
	return s.repo.List(ctx, includeInactive)
}

// Update updates a category
func (s *CategoryService) Update(ctx context.Context, id uint, input *CategoryInput) (*models.Category, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	category, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	category.Name = strings.TrimSpace(input.Name)
	category.Description = strings.TrimSpace(input.Description)
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCategoryCodeExists
		}
		return nil, err
	}
	return category, nil
}

// Delete soft deletes an unused category
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	n, err := s.repo.CountTools(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrCategoryInUse
	}
	return s.repo.Delete(ctx, id)
}

// indexCategories keys every category by its lowercased code and name
func indexCategories(ctx context.Context, repo *repositories.CategoryRepository) (map[string]*models.Category, error) {
	all, err := repo.List(ctx, true)
	if err != nil {
		return nil, err
	}

	index := make(map[string]*models.Category, len(all)*2)
	for _, c := range all {
		index[strings.ToLower(c.Code)] = c
		index[strings.ToLower(c.Name)] = c
	}
	return index, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/core/domain"
	"toolhub/internal/pkg/pagination"
)

// Tool service errors
var (
	ErrCategoryNotFound = fmt.Errorf("category %w", domain.ErrNotFound)
	ErrToolCodeExists   = fmt.Errorf("%w: tool code already exists", domain.ErrConflict)
)

// ToolService manages the tool catalog and administrative stock changes
type ToolService struct {
	repos *repositories.Registry
	cache Cache
	log   *zap.Logger
}

// NewToolService creates a new tool service. cache may be nil.
func NewToolService(repos *repositories.Registry, cache Cache) *ToolService {
	return &ToolService{
		repos: repos,
		cache: cache,
		log:   zap.L().Named("tool"),
	}
}

// ToolInput represents create/update tool input
type ToolInput struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  *uint  `json:"category_id"`
	Location    string `json:"location"`
	Condition   string `json:"condition"`
	StockTotal  int    `json:"stock_total"`
	IsActive    *bool  `json:"is_active"`
}

// Create adds a tool; every unit starts available
func (s *ToolService) Create(ctx context.Context, input *ToolInput) (*models.Tool, error) {
	if err := s.validate(ctx, input); err != nil {
		return nil, err
	}
	if input.StockTotal < 0 {
		return nil, fmt.Errorf("%w: stock_total must not be negative", domain.ErrValidationFailed)
	}

	code := strings.TrimSpace(input.Code)
	if code == "" {
		codes, err := NewToolCodeAllocator(ctx, s.repos.Tools)
		if err != nil {
			return nil, err
		}
		code = codes.Next()
	}

	tool := &models.Tool{
		Code:           code,
		Name:           strings.TrimSpace(input.Name),
		Description:    strings.TrimSpace(input.Description),
		CategoryID:     input.CategoryID,
		Location:       strings.TrimSpace(input.Location),
		Condition:      string(domain.ParseCondition(input.Condition)),
		StockTotal:     input.StockTotal,
		StockAvailable: input.StockTotal,
		IsActive:       input.IsActive == nil || *input.IsActive,
	}
	if err := s.repos.Tools.Create(ctx, tool); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrToolCodeExists
		}
		return nil, err
	}

	s.log.Info("tool created", zap.String("code", tool.Code), zap.Int("stock", tool.StockTotal))
	invalidateReports(ctx, s.cache)
	return s.GetByID(ctx, tool.ID)
}

// Update changes descriptive fields. StockTotal in the input is ignored;
// use SetTotal.
func (s *ToolService) Update(ctx context.Context, id uint, input *ToolInput) (*models.Tool, error) {
	if err := s.validate(ctx, input); err != nil {
		return nil, err
	}

	tool, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if code := strings.TrimSpace(input.Code); code != "" {
		tool.Code = code
	}
	tool.Name = strings.TrimSpace(input.Name)
	tool.Description = strings.TrimSpace(input.Description)
	tool.CategoryID = input.CategoryID
	tool.Location = strings.TrimSpace(input.Location)
	tool.Condition = string(domain.ParseCondition(input.Condition))
	if input.IsActive != nil {
		tool.IsActive = *input.IsActive
	}

	if err := s.repos.Tools.Update(ctx, tool); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrToolCodeExists
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *ToolService) validate(ctx context.Context, input *ToolInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidationFailed)
	}
	if input.CategoryID != nil {
		if _, err := s.repos.Categories.GetByID(ctx, *input.CategoryID); err != nil {
			return notFound(err, ErrCategoryNotFound)
		}
	}
	return nil
}

// Delete soft deletes a tool that has no loan out
func (s *ToolService) Delete(ctx context.Context, id uint) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	lent, err := s.repos.Tools.LentUnits(ctx, id)
	if err != nil {
		return err
	}
	if lent > 0 {
		return fmt.Errorf("%w: %d unit(s) of this tool are lent out", domain.ErrPreconditionFailed, lent)
	}

	if err := s.repos.Tools.Delete(ctx, id); err != nil {
		return err
	}
	invalidateReports(ctx, s.cache)
	return nil
}

// GetByID gets a tool by ID
func (s *ToolService) GetByID(ctx context.Context, id uint) (*models.Tool, error) {
	tool, err := s.repos.Tools.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrToolNotFound)
	}
	return tool, nil
}

// ListToolsInput represents list input
type ListToolsInput struct {
	Page       int
	Limit      int
	Search     string
	CategoryID *uint
	Available  bool
}

// ListToolsOutput represents list output
type ListToolsOutput struct {
	Tools []*models.Tool   `json:"tools"`
	Meta  *pagination.Meta `json:"meta"`
}

// List lists tools
func (s *ToolService) List(ctx context.Context, input *ListToolsInput) (*ListToolsOutput, error) {
	params := pagination.New(input.Page, input.Limit)
	filter := repositories.ToolFilter{
		Search:     input.Search,
		CategoryID: input.CategoryID,
		Available:  input.Available,
	}

	tools, total, err := s.repos.Tools.List(ctx, filter, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}
	return &ListToolsOutput{Tools: tools, Meta: pagination.GetMeta(params, total)}, nil
}

// CompleteRepair moves repaired units from under repair back to available
func (s *ToolService) CompleteRepair(ctx context.Context, id uint, units int) (*models.Tool, error) {
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", domain.ErrValidationFailed)
	}

	var tool *models.Tool
	err := s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		current, err := tx.Tools.LockByID(ctx, id)
		if err != nil {
			return notFound(err, ErrToolNotFound)
		}
		if current.StockUnderRepair < units {
			return fmt.Errorf("%w: only %d unit(s) of %s are under repair",
				domain.ErrValidationFailed, current.StockUnderRepair, current.Code)
		}

		tool, err = tx.Tools.AdjustStock(ctx, id, domain.StockDelta{Available: units, UnderRepair: -units})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("repair completed", zap.String("code", tool.Code), zap.Int("units", units))
	invalidateReports(ctx, s.cache)
	return tool, nil
}

// WriteOffRepair removes units under repair that cannot be fixed. They
// leave circulation like lost units do.
func (s *ToolService) WriteOffRepair(ctx context.Context, id uint, units int) (*models.Tool, error) {
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", domain.ErrValidationFailed)
	}

	var tool *models.Tool
	err := s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		var err error
		tool, err = tx.Tools.AdjustStock(ctx, id, domain.StockDelta{UnderRepair: -units})
		return notFound(err, ErrToolNotFound)
	})
	if err != nil {
		return nil, err
	}

	invalidateReports(ctx, s.cache)
	return tool, nil
}

// SetTotal changes stock_total administratively. Lowering it writes off
// units that left circulation (lost on return); it may not drop below
// available + under repair + lent. Raising it adds the new units to
// available.
func (s *ToolService) SetTotal(ctx context.Context, id uint, total int) (*models.Tool, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: stock_total must not be negative", domain.ErrValidationFailed)
	}

	err := s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		tool, err := tx.Tools.LockByID(ctx, id)
		if err != nil {
			return notFound(err, ErrToolNotFound)
		}
		lent, err := tx.Tools.LentUnits(ctx, id)
		if err != nil {
			return err
		}

		available := tool.StockAvailable
		if added := total - tool.StockTotal; added > 0 {
			available += added
		}

		accounted := available + tool.StockUnderRepair + lent
		if total < accounted {
			return fmt.Errorf("%w: total %d is below %d unit(s) available, under repair or lent",
				domain.ErrConflict, total, accounted)
		}
		return tx.Tools.SetTotal(ctx, id, total, available)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stock total changed", zap.Uint("tool_id", id), zap.Int("total", total))
	invalidateReports(ctx, s.cache)
	return s.GetByID(ctx, id)
}

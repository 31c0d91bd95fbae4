package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/core/domain"
)

// Cache keys
const (
	summaryCacheKey = "reports:summary"
	topToolsLimit   = 10
)

// ReportService builds dashboard reports. The summary is cached when a
// Cache is configured and dropped after every stock change.
type ReportService struct {
	repos *repositories.Registry
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewReportService creates a new report service. cache may be nil.
func NewReportService(repos *repositories.Registry, cache Cache, ttl time.Duration) *ReportService {
	return &ReportService{
		repos: repos,
		cache: cache,
		ttl:   ttl,
		log:   zap.L().Named("report"),
		now:   time.Now,
	}
}

// Summary represents the dashboard summary
type Summary struct {
	// Catalog
	Tools            int64 `json:"tools"`
	UnitsTotal       int64 `json:"units_total"`
	UnitsAvailable   int64 `json:"units_available"`
	UnitsUnderRepair int64 `json:"units_under_repair"`
	UnitsLent        int64 `json:"units_lent"`

	// Loans
	LoansByStatus map[string]int64 `json:"loans_by_status"`
	Overdue       int64            `json:"overdue"`

	// Returns
	FinesThisMonth decimal.Decimal `json:"fines_this_month"`

	// Users
	Borrowers int64 `json:"borrowers"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Summary returns the dashboard summary, from cache when possible
func (s *ReportService) Summary(ctx context.Context) (*Summary, error) {
	if s.cache != nil {
		var cached Summary
		hit, err := s.cache.Get(ctx, summaryCacheKey, &cached)
		if err != nil {
			s.log.Warn("summary cache read failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	summary, err := s.buildSummary(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, summaryCacheKey, summary, s.ttl); err != nil {
			s.log.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Refresh rebuilds the cached summary
func (s *ReportService) Refresh(ctx context.Context) (*Summary, error) {
	invalidateReports(ctx, s.cache)
	return s.Summary(ctx)
}

func (s *ReportService) buildSummary(ctx context.Context) (*Summary, error) {
	db := s.repos.DB().WithContext(ctx)
	now := s.now()
	data := &Summary{GeneratedAt: now}

	var units struct {
		Tools       int64
		Total       int64
		Available   int64
		UnderRepair int64
	}
	err := db.Model(&models.Tool{}).
		Select("COUNT(*) AS tools, COALESCE(SUM(stock_total), 0) AS total, COALESCE(SUM(stock_available), 0) AS available, COALESCE(SUM(stock_under_repair), 0) AS under_repair").
		Scan(&units).Error
	if err != nil {
		return nil, err
	}
	data.Tools = units.Tools
	data.UnitsTotal = units.Total
	data.UnitsAvailable = units.Available
	data.UnitsUnderRepair = units.UnderRepair

	if data.UnitsLent, err = s.repos.Loans.LentUnitsTotal(ctx); err != nil {
		return nil, err
	}
	if data.LoansByStatus, err = s.repos.Loans.CountByStatus(ctx); err != nil {
		return nil, err
	}

	_, overdue, err := s.repos.Loans.List(ctx, repositories.LoanFilter{OverdueAt: &now}, 0, 1)
	if err != nil {
		return nil, err
	}
	data.Overdue = overdue

	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if data.FinesThisMonth, err = s.repos.Returns.SumFines(ctx, startOfMonth, startOfMonth.AddDate(0, 1, 0)); err != nil {
		return nil, err
	}

	err = db.Model(&models.User{}).Where("role = ?", string(domain.RoleBorrower)).Count(&data.Borrowers).Error
	if err != nil {
		return nil, err
	}

	return data, nil
}

// OverdueLoan is a lent loan past its planned return date
type OverdueLoan struct {
	*models.LoanResponse
	DaysLate    int             `json:"days_late"`
	FineAccrued decimal.Decimal `json:"fine_accrued"`
}

// Overdue lists lent loans past their planned return date with the fine
// they would accrue if returned today
func (s *ReportService) Overdue(ctx context.Context, finePerDay decimal.Decimal) ([]OverdueLoan, error) {
	now := s.now()
	loans, _, err := s.repos.Loans.List(ctx, repositories.LoanFilter{OverdueAt: &now}, 0, 0)
	if err != nil {
		return nil, err
	}

	out := make([]OverdueLoan, 0, len(loans))
	for _, l := range loans {
		days := domain.LateDays(l.PlannedReturnDate, now)
		out = append(out, OverdueLoan{
			LoanResponse: l.ToResponse(),
			DaysLate:     days,
			FineAccrued:  domain.Fine(days, finePerDay),
		})
	}
	return out, nil
}

// TopTools ranks the most borrowed tools
func (s *ReportService) TopTools(ctx context.Context, limit int) ([]repositories.ToolUsage, error) {
	if limit < 1 || limit > 100 {
		limit = topToolsLimit
	}
	return s.repos.Loans.TopTools(ctx, limit)
}

// invalidateReports drops cached reports; a nil cache is a no-op
func invalidateReports(ctx context.Context, cache Cache) {
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, summaryCacheKey); err != nil {
		zap.L().Warn("report cache invalidation failed", zap.Error(err))
	}
}

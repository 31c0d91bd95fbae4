package services

import (
	"time"

	"github.com/shopspring/decimal"

	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/pkg/jwt"
)

// Options configures a Container. Cache and Notifier may be nil.
type Options struct {
	FinePerDay            decimal.Decimal
	ImportDefaultPassword string
	ImportMaxRows         int
	ReportTTL             time.Duration
	Cache                 Cache
	Notifier              Notifier
}

// Container wires every service over one repository registry. The HTTP
// server, the CLI and the scheduler share it.
type Container struct {
	Repos      *repositories.Registry
	Tokens     *jwt.Manager
	FinePerDay decimal.Decimal

	Auth       *AuthService
	Users      *UserService
	Categories *CategoryService
	Tools      *ToolService
	Loans      *LoanService
	Returns    *ReturnService
	Imports    *ImportService
	Exports    *ExportService
	Reports    *ReportService
}

// NewContainer creates all services
func NewContainer(repos *repositories.Registry, tokens *jwt.Manager, opts Options) *Container {
	return &Container{
		Repos:      repos,
		Tokens:     tokens,
		FinePerDay: opts.FinePerDay,

		Auth:       NewAuthService(repos.Users, repos.RefreshTokens, tokens),
		Users:      NewUserService(repos.Users),
		Categories: NewCategoryService(repos.Categories),
		Tools:      NewToolService(repos, opts.Cache),
		Loans:      NewLoanService(repos, opts.Cache, opts.Notifier),
		Returns:    NewReturnService(repos, opts.FinePerDay, opts.Cache, opts.Notifier),
		Imports:    NewImportService(repos, opts.ImportDefaultPassword, opts.ImportMaxRows, opts.Cache),
		Exports:    NewExportService(repos),
		Reports:    NewReportService(repos, opts.Cache, opts.ReportTTL),
	}
}

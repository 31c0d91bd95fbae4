package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Registry bundles every repository over one *gorm.DB handle. Inside
// Transaction the handle is the transaction, so all writes made through
// the registry passed to fn commit or roll back together.
type Registry struct {
	db *gorm.DB

	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	Categories    *CategoryRepository
	Tools         *ToolRepository
	Loans         *LoanRepository
	Returns       *ReturnRepository
	Histories     *LoanHistoryRepository
}

// NewRegistry creates repositories bound to db
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		db:            db,
		Users:         NewUserRepository(db),
		RefreshTokens: NewRefreshTokenRepository(db),
		Categories:    NewCategoryRepository(db),
		Tools:         NewToolRepository(db),
		Loans:         NewLoanRepository(db),
		Returns:       NewReturnRepository(db),
		Histories:     NewLoanHistoryRepository(db),
	}
}

// DB returns the underlying handle
func (r *Registry) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn in a database transaction. Returning an error from fn
// rolls everything back.
func (r *Registry) Transaction(ctx context.Context, fn func(tx *Registry) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRegistry(tx))
	})
}

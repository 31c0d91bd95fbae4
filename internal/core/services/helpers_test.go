package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/config"
	"toolhub/internal/core/domain"
	"toolhub/internal/pkg/password"
)

func init() {
	password.Cost = bcrypt.MinCost
}

// newTestRepos opens a private in-memory database with the full schema
func newTestRepos(t *testing.T) *repositories.Registry {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := config.OpenSQLite(dsn, logger.Discard)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return repositories.NewRegistry(db)
}

func fixedClock(date string) func() time.Time {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.Add(9 * time.Hour) }
}

func seedUser(t *testing.T, repos *repositories.Registry, username string, role domain.Role) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
		Password: "x",
		Role:     string(role),
		IsActive: true,
	}
	require.NoError(t, repos.Users.Create(context.Background(), user))
	return user
}

func seedTool(t *testing.T, repos *repositories.Registry, code, name string, total int) *models.Tool {
	t.Helper()
	tool := &models.Tool{
		Code:           code,
		Name:           name,
		Condition:      string(domain.ConditionGood),
		StockTotal:     total,
		StockAvailable: total,
		IsActive:       true,
	}
	require.NoError(t, repos.Tools.Create(context.Background(), tool))
	return tool
}

func reloadTool(t *testing.T, repos *repositories.Registry, id uint) *models.Tool {
	t.Helper()
	tool, err := repos.Tools.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tool
}

// recordingNotifier keeps every event it receives
type recordingNotifier struct {
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, e Event) {
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []string {
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// lendingFixture is a borrower, a staff member, a tool and the services
// to move loans through their lifecycle on a fixed calendar.
type lendingFixture struct {
	repos    *repositories.Registry
	loans    *LoanService
	returns  *ReturnService
	notifier *recordingNotifier
	borrower *models.User
	staff    *models.User
	tool     *models.Tool
}

func newLendingFixture(t *testing.T, stock int) *lendingFixture {
	t.Helper()
	repos := newTestRepos(t)
	notifier := &recordingNotifier{}

	f := &lendingFixture{
		repos:    repos,
		loans:    NewLoanService(repos, nil, notifier),
		returns:  NewReturnService(repos, domain.DefaultFinePerDay, nil, notifier),
		notifier: notifier,
		borrower: seedUser(t, repos, "budi", domain.RoleBorrower),
		staff:    seedUser(t, repos, "sari", domain.RoleStaff),
		tool:     seedTool(t, repos, "TL-0001", "Hammer", stock),
	}
	f.loans.now = fixedClock("2024-01-01")
	f.returns.now = fixedClock("2024-01-01")
	return f
}

// pendingLoan requests quantity units from 2024-01-01 until 2024-01-10
func (f *lendingFixture) pendingLoan(t *testing.T, quantity int) *models.Loan {
	t.Helper()
	loan, err := f.loans.Create(context.Background(), &CreateLoanInput{
		ToolID:            f.tool.ID,
		Quantity:          quantity,
		LoanDate:          "2024-01-01",
		PlannedReturnDate: "2024-01-10",
		Purpose:           "workshop",
	}, f.borrower.ID, "127.0.0.1")
	require.NoError(t, err)
	return loan
}

func (f *lendingFixture) approvedLoan(t *testing.T, quantity int) *models.Loan {
	t.Helper()
	loan := f.pendingLoan(t, quantity)
	loan, err := f.loans.Approve(context.Background(), loan.ID, f.staff.ID, "ok", "127.0.0.1")
	require.NoError(t, err)
	return loan
}

func (f *lendingFixture) lentLoan(t *testing.T, quantity int) *models.Loan {
	t.Helper()
	loan := f.approvedLoan(t, quantity)
	loan, err := f.loans.Lend(context.Background(), loan.ID, f.staff.ID, "127.0.0.1")
	require.NoError(t, err)
	return loan
}

// reconcile returns the loan with the return clock set to returnDate
func (f *lendingFixture) reconcile(loanID uint, good, damaged, lost int, returnDate string) (*models.LoanReturn, error) {
	f.returns.now = fixedClock(returnDate)
	return f.returns.ReconcileReturn(context.Background(), &ReconcileInput{
		LoanID:       loanID,
		UnitsGood:    good,
		UnitsDamaged: damaged,
		UnitsLost:    lost,
	}, f.staff.ID, "127.0.0.1")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

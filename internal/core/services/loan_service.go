package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/core/domain"
	"toolhub/internal/pkg/pagination"
)

// Loan service errors
var (
	ErrLoanNotFound     = fmt.Errorf("loan %w", domain.ErrNotFound)
	ErrToolNotFound     = fmt.Errorf("tool %w", domain.ErrNotFound)
	ErrBorrowerNotFound = fmt.Errorf("borrower %w", domain.ErrNotFound)
	ErrValidatorMissing = fmt.Errorf("%w: a validator is required", domain.ErrPreconditionFailed)
	ErrRejectNoteEmpty  = fmt.Errorf("%w: a rejection note is required", domain.ErrPreconditionFailed)
)

// LoanService runs the loan state machine:
// pending -> approved -> lent -> returned, pending -> rejected.
// lent -> returned belongs to ReturnService.
type LoanService struct {
	repos    *repositories.Registry
	cache    Cache
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewLoanService creates a new loan service. cache and notifier may be nil.
func NewLoanService(repos *repositories.Registry, cache Cache, notifier Notifier) *LoanService {
	return &LoanService{
		repos:    repos,
		cache:    cache,
		notifier: notifier,
		log:      zap.L().Named("loan"),
		now:      time.Now,
	}
}

// CreateLoanInput represents create loan input
type CreateLoanInput struct {
	ToolID            uint   `json:"tool_id"`
	BorrowerID        uint   `json:"borrower_id,omitempty"`
	Quantity          int    `json:"quantity"`
	LoanDate          string `json:"loan_date,omitempty"`
	PlannedReturnDate string `json:"planned_return_date"`
	Purpose           string `json:"purpose"`
}

// Create opens a pending loan. BorrowerID defaults to the actor.
func (s *LoanService) Create(ctx context.Context, input *CreateLoanInput, actorID uint, ipAddress string) (*models.Loan, error) {
	if input.BorrowerID == 0 {
		input.BorrowerID = actorID
	}

	loanDate, planned, err := s.validateCreate(input)
	if err != nil {
		return nil, err
	}

	var loan *models.Loan
	err = s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		tool, err := tx.Tools.GetByID(ctx, input.ToolID)
		if err != nil {
			return notFound(err, ErrToolNotFound)
		}
		if !tool.IsActive {
			return fmt.Errorf("%w: tool %s is inactive", domain.ErrPreconditionFailed, tool.Code)
		}
		if input.Quantity > tool.StockTotal {
			return fmt.Errorf("%w: quantity %d exceeds stock total %d of tool %s",
				domain.ErrValidationFailed, input.Quantity, tool.StockTotal, tool.Code)
		}

		borrower, err := tx.Users.GetByID(ctx, input.BorrowerID)
		if err != nil {
			return notFound(err, ErrBorrowerNotFound)
		}
		if !borrower.IsActive {
			return domain.ErrUserInactive
		}

		code, err := s.nextLoanCode(ctx, tx)
		if err != nil {
			return err
		}

		loan = &models.Loan{
			Code:              code,
			ToolID:            tool.ID,
			BorrowerID:        borrower.ID,
			Quantity:          input.Quantity,
			LoanDate:          loanDate,
			PlannedReturnDate: planned,
			Purpose:           strings.TrimSpace(input.Purpose),
			Status:            string(domain.LoanPending),
		}
		if err := tx.Loans.Create(ctx, loan); err != nil {
			return err
		}

		return tx.Histories.Create(ctx, &models.LoanHistory{
			LoanID:      loan.ID,
			Action:      models.ActionCreate,
			ToStatus:    loan.Status,
			Description: fmt.Sprintf("requested %d x %s", loan.Quantity, tool.Name),
			PerformedBy: actorID,
			IPAddress:   ipAddress,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan created", zap.String("code", loan.Code), zap.Uint("tool_id", loan.ToolID), zap.Int("quantity", loan.Quantity))
	return s.afterCommit(ctx, loan.ID, EventLoanCreated, "new loan request", false)
}

func (s *LoanService) validateCreate(input *CreateLoanInput) (time.Time, time.Time, error) {
	if input.ToolID == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: tool_id is required", domain.ErrValidationFailed)
	}
	if input.Quantity < 1 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidationFailed)
	}
	if strings.TrimSpace(input.Purpose) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: purpose is required", domain.ErrValidationFailed)
	}

	loanDate := domain.Date(s.now())
	if input.LoanDate != "" {
		d, err := ParseDate(input.LoanDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		loanDate = d
	}

	if input.PlannedReturnDate == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: planned_return_date is required", domain.ErrValidationFailed)
	}
	planned, err := ParseDate(input.PlannedReturnDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if planned.Before(loanDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: planned_return_date %s is before loan_date %s",
			domain.ErrValidationFailed, planned.Format(models.DateLayout), loanDate.Format(models.DateLayout))
	}

	return loanDate, planned, nil
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", domain.ErrValidationFailed, s)
	}
	return domain.Date(t), nil
}

// nextLoanCode returns LN-YYYYMMDD-XXXXXX
func (s *LoanService) nextLoanCode(ctx context.Context, tx *repositories.Registry) (string, error) {
	prefix := "LN-" + s.now().Format("20060102") + "-"
	for i := 0; i < 5; i++ {
		suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		code := prefix + suffix

		exists, err := tx.Loans.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique loan code", domain.ErrConflict)
}

// Approve moves a pending loan to approved
func (s *LoanService) Approve(ctx context.Context, loanID, validatorID uint, note, ipAddress string) (*models.Loan, error) {
	if validatorID == 0 {
		return nil, ErrValidatorMissing
	}

	now := s.now()
	err := s.transition(ctx, loanID, domain.LoanApproved, models.ActionApprove, validatorID, ipAddress,
		map[string]any{
			"validator_id":    validatorID,
			"validated_at":    now,
			"validation_note": strings.TrimSpace(note),
		}, strings.TrimSpace(note))
	if err != nil {
		return nil, err
	}

	return s.afterCommit(ctx, loanID, EventLoanApproved, "loan approved", false)
}

// Reject moves a pending loan to rejected. The note is the reason.
func (s *LoanService) Reject(ctx context.Context, loanID, validatorID uint, note, ipAddress string) (*models.Loan, error) {
	if validatorID == 0 {
		return nil, ErrValidatorMissing
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrRejectNoteEmpty
	}

	now := s.now()
	err := s.transition(ctx, loanID, domain.LoanRejected, models.ActionReject, validatorID, ipAddress,
		map[string]any{
			"validator_id":    validatorID,
			"validated_at":    now,
			"validation_note": note,
		}, note)
	if err != nil {
		return nil, err
	}

	return s.afterCommit(ctx, loanID, EventLoanRejected, "loan rejected: "+note, false)
}

// transition runs a guarded status change that touches no stock
func (s *LoanService) transition(ctx context.Context, loanID uint, to domain.LoanStatus, action string, actorID uint, ipAddress string, fields map[string]any, description string) error {
	return s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		loan, err := tx.Loans.LockByID(ctx, loanID)
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}
		from := loan.LoanStatus()
		if err := guardTransition(loan, to); err != nil {
			return err
		}

		if err := tx.Loans.TransitionStatus(ctx, loan.ID, from, to, fields); err != nil {
			return err
		}

		return tx.Histories.Create(ctx, &models.LoanHistory{
			LoanID:      loan.ID,
			Action:      action,
			FromStatus:  string(from),
			ToStatus:    string(to),
			Description: description,
			PerformedBy: actorID,
			IPAddress:   ipAddress,
		})
	})
}

// Lend hands an approved loan out and reserves its units from the tool's
// available stock in the same transaction.
func (s *LoanService) Lend(ctx context.Context, loanID, staffID uint, ipAddress string) (*models.Loan, error) {
	err := s.repos.Transaction(ctx, func(tx *repositories.Registry) error {
		loan, err := tx.Loans.LockByID(ctx, loanID)
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}
		if err := guardTransition(loan, domain.LoanLent); err != nil {
			return err
		}

		tool, err := tx.Tools.LockByID(ctx, loan.ToolID)
		if err != nil {
			return notFound(err, ErrToolNotFound)
		}
		if tool.StockAvailable < loan.Quantity {
			return fmt.Errorf("%w: tool %s has %d available, loan %s needs %d",
				domain.ErrInsufficientStock, tool.Code, tool.StockAvailable, loan.Code, loan.Quantity)
		}
		if _, err := tx.Tools.AdjustStock(ctx, tool.ID, domain.StockDelta{Available: -loan.Quantity}); err != nil {
			return err
		}

		now := s.now()
		err = tx.Loans.TransitionStatus(ctx, loan.ID, domain.LoanApproved, domain.LoanLent, map[string]any{
			"lent_by": staffID,
			"lent_at": now,
		})
		if err != nil {
			return err
		}

		return tx.Histories.Create(ctx, &models.LoanHistory{
			LoanID:      loan.ID,
			Action:      models.ActionLend,
			FromStatus:  string(domain.LoanApproved),
			ToStatus:    string(domain.LoanLent),
			Description: fmt.Sprintf("handed out %d x %s", loan.Quantity, tool.Name),
			PerformedBy: staffID,
			IPAddress:   ipAddress,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.afterCommit(ctx, loanID, EventLoanLent, "loan handed out", true)
}

// guardTransition fails with PreconditionFailed unless the state machine
// allows loan -> to. Reaching returned is reserved for reconciliation.
func guardTransition(loan *models.Loan, to domain.LoanStatus) error {
	from := loan.LoanStatus()
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: loan %s is %s, cannot become %s", domain.ErrPreconditionFailed, loan.Code, from, to)
	}
	return nil
}

// afterCommit reloads the loan, drops cached reports when stock moved and
// emits the event. Notification failures never fail the operation.
func (s *LoanService) afterCommit(ctx context.Context, loanID uint, eventType, message string, stockChanged bool) (*models.Loan, error) {
	if stockChanged {
		invalidateReports(ctx, s.cache)
	}

	loan, err := s.repos.Loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, loanEvent(loan, eventType, message, s.now()))
	}
	return loan, nil
}

// GetByID gets a loan by ID
func (s *LoanService) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	loan, err := s.repos.Loans.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrLoanNotFound)
	}
	return loan, nil
}

// GetByCode gets a loan by code
func (s *LoanService) GetByCode(ctx context.Context, code string) (*models.Loan, error) {
	loan, err := s.repos.Loans.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, notFound(err, ErrLoanNotFound)
	}
	return loan, nil
}

// ListLoansInput represents list input
type ListLoansInput struct {
	Page       int
	Limit      int
	Status     string
	BorrowerID *uint
	ToolID     *uint
	Overdue    bool
	Search     string
}

// ListLoansOutput represents list output
type ListLoansOutput struct {
	Loans []*models.LoanResponse `json:"loans"`
	Meta  *pagination.Meta       `json:"meta"`
}

// List lists loans
func (s *LoanService) List(ctx context.Context, input *ListLoansInput) (*ListLoansOutput, error) {
	if input.Status != "" && !domain.LoanStatus(input.Status).Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidationFailed, input.Status)
	}

	params := pagination.New(input.Page, input.Limit)
	filter := repositories.LoanFilter{
		Status:     input.Status,
		BorrowerID: input.BorrowerID,
		ToolID:     input.ToolID,
		Search:     input.Search,
	}
	if input.Overdue {
		today := s.now()
		filter.OverdueAt = &today
	}

	loans, total, err := s.repos.Loans.List(ctx, filter, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]*models.LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.ToResponse())
	}

	return &ListLoansOutput{Loans: out, Meta: pagination.GetMeta(params, total)}, nil
}

// ListMine lists the borrower's own loans
func (s *LoanService) ListMine(ctx context.Context, borrowerID uint, input *ListLoansInput) (*ListLoansOutput, error) {
	input.BorrowerID = &borrowerID
	return s.List(ctx, input)
}

// History gets the audit trail of a loan
func (s *LoanService) History(ctx context.Context, loanID uint) ([]*models.LoanHistory, error) {
	if _, err := s.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.repos.Histories.GetByLoanID(ctx, loanID)
}

// Receipt is the data a PDF renderer needs for a loan slip
type Receipt struct {
	LoanCode          string         `json:"loan_code"`
	Status            string         `json:"status"`
	BorrowerName      string         `json:"borrower_name"`
	BorrowerEmail     string         `json:"borrower_email"`
	ToolCode          string         `json:"tool_code"`
	ToolName          string         `json:"tool_name"`
	Quantity          int            `json:"quantity"`
	Purpose           string         `json:"purpose"`
	LoanDate          string         `json:"loan_date"`
	PlannedReturnDate string         `json:"planned_return_date"`
	ValidatedBy       string         `json:"validated_by,omitempty"`
	ValidatedAt       *time.Time     `json:"validated_at,omitempty"`
	Return            *ReceiptReturn `json:"return,omitempty"`
	IssuedAt          time.Time      `json:"issued_at"`
}

// ReceiptReturn is the return section of a receipt
type ReceiptReturn struct {
	ReturnDate   string          `json:"return_date"`
	UnitsGood    int             `json:"units_good"`
	UnitsDamaged int             `json:"units_damaged"`
	UnitsLost    int             `json:"units_lost"`
	Condition    string          `json:"condition"`
	LateDays     int             `json:"late_days"`
	Fine         decimal.Decimal `json:"fine"`
	Notes        string          `json:"notes,omitempty"`
}

// Receipt assembles receipt data for a loan
func (s *LoanService) Receipt(ctx context.Context, loanID uint) (*Receipt, error) {
	loan, err := s.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	r := &Receipt{
		LoanCode:          loan.Code,
		Status:            loan.Status,
		Quantity:          loan.Quantity,
		Purpose:           loan.Purpose,
		LoanDate:          loan.LoanDate.Format(models.DateLayout),
		PlannedReturnDate: loan.PlannedReturnDate.Format(models.DateLayout),
		ValidatedAt:       loan.ValidatedAt,
		IssuedAt:          s.now(),
	}
	if loan.Borrower != nil {
		r.BorrowerName = displayName(loan.Borrower)
		r.BorrowerEmail = loan.Borrower.Email
	}
	if loan.Tool != nil {
		r.ToolCode = loan.Tool.Code
		r.ToolName = loan.Tool.Name
	}
	if loan.Validator != nil {
		r.ValidatedBy = displayName(loan.Validator)
	}
	if ret := loan.Return; ret != nil {
		r.Return = &ReceiptReturn{
			ReturnDate:   ret.ReturnDate.Format(models.DateLayout),
			UnitsGood:    ret.UnitsGood,
			UnitsDamaged: ret.UnitsDamaged,
			UnitsLost:    ret.UnitsLost,
			Condition:    ret.DisplayCondition(),
			LateDays:     ret.LateDays,
			Fine:         ret.Fine,
			Notes:        ret.Notes,
		}
	}
	return r, nil
}

func displayName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

func loanEvent(loan *models.Loan, eventType, message string, at time.Time) Event {
	e := Event{
		Type:       eventType,
		LoanID:     loan.ID,
		LoanCode:   loan.Code,
		Quantity:   loan.Quantity,
		Message:    message,
		OccurredAt: at,
	}
	if loan.Tool != nil {
		e.ToolName = loan.Tool.Name
	}
	if loan.Borrower != nil {
		e.Borrower = displayName(loan.Borrower)
	}
	return e
}

// notFound swaps gorm's record-not-found for the service sentinel
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

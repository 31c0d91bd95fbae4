package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TokenCleanupSpec runs expired refresh token cleanup nightly
const TokenCleanupSpec = "15 2 * * *"

// jobTimeout bounds a single scheduled run
const jobTimeout = 2 * time.Minute

// CronService runs scheduled jobs: the daily overdue sweep and refresh
// token cleanup.
type CronService struct {
	cron       *cron.Cron
	reports    *ReportService
	auth       *AuthService
	notifier   Notifier
	finePerDay decimal.Decimal
	log        *zap.Logger
}

// NewCronService creates a new scheduler. notifier may be nil.
func NewCronService(reports *ReportService, auth *AuthService, notifier Notifier, finePerDay decimal.Decimal) *CronService {
	log := zap.L().Named("cron")
	logger := cronLogger{log.Sugar()}

	return &CronService{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		reports:    reports,
		auth:       auth,
		notifier:   notifier,
		finePerDay: finePerDay,
		log:        log,
	}
}

// Register schedules the jobs. overdueSpec is a standard 5-field cron
// expression.
func (s *CronService) Register(overdueSpec string) error {
	if _, err := s.cron.AddFunc(overdueSpec, s.job("overdue", func(ctx context.Context) error {
		_, err := s.RunOverdueCheck(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("invalid overdue schedule %q: %w", overdueSpec, err)
	}

	if s.auth != nil {
		if _, err := s.cron.AddFunc(TokenCleanupSpec, s.job("token-cleanup", s.auth.CleanupExpiredTokens)); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the scheduler goroutine
func (s *CronService) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs until ctx expires
func (s *CronService) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", zap.Error(ctx.Err()))
	}
}

func (s *CronService) job(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Debug("job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}

// RunOverdueCheck notifies every overdue loan and refreshes the cached
// summary. It returns the number of overdue loans.
func (s *CronService) RunOverdueCheck(ctx context.Context) (int, error) {
	overdue, err := s.reports.Overdue(ctx, s.finePerDay)
	if err != nil {
		return 0, err
	}

	now := s.reports.now()
	for _, o := range overdue {
		s.log.Info("loan overdue",
			zap.String("loan", o.Code),
			zap.String("borrower", o.BorrowerName),
			zap.Int("days_late", o.DaysLate),
			zap.String("fine", o.FineAccrued.StringFixed(2)),
		)
		if s.notifier != nil {
			s.notifier.Notify(ctx, Event{
				Type:       EventLoanOverdue,
				LoanID:     o.ID,
				LoanCode:   o.Code,
				ToolName:   o.ToolName,
				Borrower:   o.BorrowerName,
				Quantity:   o.Quantity,
				Message:    fmt.Sprintf("due %s, %d day(s) late, fine so far %s", o.PlannedReturnDate, o.DaysLate, o.FineAccrued.StringFixed(2)),
				OccurredAt: now,
			})
		}
	}

	if _, err := s.reports.Refresh(ctx); err != nil {
		return len(overdue), err
	}
	return len(overdue), nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

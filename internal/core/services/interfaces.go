package services

import (
	"context"
	"time"
)

// Notifier receives loan lifecycle events after they commit
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Cache is the key-value store behind cached reports
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Event types
const (
	EventLoanCreated  = "loan.created"
	EventLoanApproved = "loan.approved"
	EventLoanRejected = "loan.rejected"
	EventLoanLent     = "loan.lent"
	EventLoanReturned = "loan.returned"
	EventLoanOverdue  = "loan.overdue"
)

// Event is a loan lifecycle notification
type Event struct {
	Type       string    `json:"type"`
	LoanID     uint      `json:"loan_id"`
	LoanCode   string    `json:"loan_code"`
	ToolName   string    `json:"tool_name,omitempty"`
	Borrower   string    `json:"borrower,omitempty"`
	Quantity   int       `json:"quantity"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// NotificationService posts loan events to a chat webhook. With no URL
// configured it does nothing.
type NotificationService struct {
	webhookURL string
	enabled    bool
	client     *http.Client
	log        *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(webhookURL string, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationService{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		client:     &http.Client{Timeout: timeout},
		log:        zap.L().Named("notify"),
	}
}

// IsEnabled checks if notification is enabled
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

// webhookPayload carries a chat-ready text plus the structured event
type webhookPayload struct {
	Text  string `json:"text"`
	Event Event  `json:"event"`
}

// Notify implements Notifier. Delivery errors are logged only.
func (s *NotificationService) Notify(ctx context.Context, event Event) {
	if !s.enabled {
		return
	}
	if err := s.send(ctx, webhookPayload{Text: FormatEvent(event), Event: event}); err != nil {
		s.log.Warn("webhook delivery failed",
			zap.String("type", event.Type),
			zap.String("loan", event.LoanCode),
			zap.Error(err),
		)
	}
}

// send posts the payload as JSON
func (s *NotificationService) send(ctx context.Context, payload webhookPayload) error {
	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
	return nil
}

// FormatEvent renders an event as a short chat message
func FormatEvent(e Event) string {
	switch e.Type {
	case EventLoanCreated:
		return fmt.Sprintf("🆕 New loan request %s\n👤 %s\n🔧 %d x %s",
			e.LoanCode, e.Borrower, e.Quantity, e.ToolName)
	case EventLoanApproved:
		return fmt.Sprintf("✅ Loan %s approved\n👤 %s\n🔧 %d x %s\nReady for pickup",
			e.LoanCode, e.Borrower, e.Quantity, e.ToolName)
	case EventLoanRejected:
		return fmt.Sprintf("❌ Loan %s rejected\n👤 %s\n📝 %s",
			e.LoanCode, e.Borrower, e.Message)
	case EventLoanLent:
		return fmt.Sprintf("📦 Loan %s handed out\n👤 %s\n🔧 %d x %s",
			e.LoanCode, e.Borrower, e.Quantity, e.ToolName)
	case EventLoanReturned:
		return fmt.Sprintf("↩️ Loan %s returned\n👤 %s\n📝 %s",
			e.LoanCode, e.Borrower, e.Message)
	case EventLoanOverdue:
		return fmt.Sprintf("⏰ Loan %s is overdue\n👤 %s\n🔧 %d x %s\n📝 %s",
			e.LoanCode, e.Borrower, e.Quantity, e.ToolName, e.Message)
	}
	return fmt.Sprintf("Loan %s: %s", e.LoanCode, e.Message)
}

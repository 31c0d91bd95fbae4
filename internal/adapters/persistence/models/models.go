package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"toolhub/internal/core/domain"
)

// ============================================================
// Auth & User Tables
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	FullName  string         `gorm:"size:150" json:"full_name"`
	Phone     string         `gorm:"size:30" json:"phone"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'BORROWER'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Catalog Tables
// ============================================================

// Category groups tools (master data)
type Category struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Code        string         `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Category) TableName() string {
	return "categories"
}

// Tool is a lendable catalog entry with its stock counters.
// StockAvailable + StockUnderRepair + units currently lent <= StockTotal.
type Tool struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Code             string         `gorm:"size:40;uniqueIndex;not null" json:"code"`
	Name             string         `gorm:"size:150;not null;index" json:"name"`
	Description      string         `gorm:"type:text" json:"description"`
	CategoryID       *uint          `gorm:"index" json:"category_id"`
	Location         string         `gorm:"size:100" json:"location"`
	Condition        string         `gorm:"size:20;default:'good'" json:"condition"`
	StockTotal       int            `gorm:"not null;default:0" json:"stock_total"`
	StockAvailable   int            `gorm:"not null;default:0" json:"stock_available"`
	StockUnderRepair int            `gorm:"not null;default:0" json:"stock_under_repair"`
	IsActive         bool           `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Tool) TableName() string {
	return "tools"
}

// Stock returns the counter snapshot of the tool
func (t *Tool) Stock() domain.Stock {
	return domain.Stock{Total: t.StockTotal, Available: t.StockAvailable, UnderRepair: t.StockUnderRepair}
}

// ============================================================
// Loan Tables
// ============================================================

// Loan is a borrower's request for a quantity of one tool
type Loan struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Code              string     `gorm:"size:40;uniqueIndex;not null" json:"code"`
	ToolID            uint       `gorm:"not null;index" json:"tool_id"`
	BorrowerID        uint       `gorm:"not null;index" json:"borrower_id"`
	Quantity          int        `gorm:"not null" json:"quantity"`
	LoanDate          time.Time  `gorm:"type:date;not null" json:"loan_date"`
	PlannedReturnDate time.Time  `gorm:"type:date;not null;index" json:"planned_return_date"`
	Purpose           string     `gorm:"type:text;not null" json:"purpose"`
	Status            string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ValidatorID       *uint      `json:"validator_id"`
	ValidatedAt       *time.Time `json:"validated_at"`
	ValidationNote    string     `gorm:"type:text" json:"validation_note"`
	LentBy            *uint      `json:"lent_by"`
	LentAt            *time.Time `json:"lent_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Tool      *Tool       `gorm:"foreignKey:ToolID" json:"tool,omitempty"`
	Borrower  *User       `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	Validator *User       `gorm:"foreignKey:ValidatorID" json:"validator,omitempty"`
	Return    *LoanReturn `gorm:"foreignKey:LoanID" json:"return,omitempty"`
}

func (Loan) TableName() string {
	return "loans"
}

// LoanStatus returns the typed status
func (l *Loan) LoanStatus() domain.LoanStatus {
	return domain.LoanStatus(l.Status)
}

// LoanResponse DTO
type LoanResponse struct {
	ID                uint       `json:"id"`
	Code              string     `json:"code"`
	ToolID            uint       `json:"tool_id"`
	ToolName          string     `json:"tool_name,omitempty"`
	BorrowerID        uint       `json:"borrower_id"`
	BorrowerName      string     `json:"borrower_name,omitempty"`
	Quantity          int        `json:"quantity"`
	LoanDate          string     `json:"loan_date"`
	PlannedReturnDate string     `json:"planned_return_date"`
	Purpose           string     `json:"purpose"`
	Status            string     `json:"status"`
	Overdue           bool       `json:"overdue"`
	ValidatorID       *uint      `json:"validator_id"`
	ValidatedAt       *time.Time `json:"validated_at"`
	ValidationNote    string     `json:"validation_note,omitempty"`
	LentAt            *time.Time `json:"lent_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

func (l *Loan) ToResponse() *LoanResponse {
	resp := &LoanResponse{
		ID:                l.ID,
		Code:              l.Code,
		ToolID:            l.ToolID,
		BorrowerID:        l.BorrowerID,
		Quantity:          l.Quantity,
		LoanDate:          l.LoanDate.Format(DateLayout),
		PlannedReturnDate: l.PlannedReturnDate.Format(DateLayout),
		Purpose:           l.Purpose,
		Status:            l.Status,
		Overdue:           l.Status == string(domain.LoanLent) && domain.LateDays(l.PlannedReturnDate, time.Now()) > 0,
		ValidatorID:       l.ValidatorID,
		ValidatedAt:       l.ValidatedAt,
		ValidationNote:    l.ValidationNote,
		LentAt:            l.LentAt,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}

	if l.Tool != nil {
		resp.ToolName = l.Tool.Name
	}
	if l.Borrower != nil {
		resp.BorrowerName = l.Borrower.FullName
		if resp.BorrowerName == "" {
			resp.BorrowerName = l.Borrower.Username
		}
	}

	return resp
}

// LoanReturn is the one-time reconciliation record that closes a loan
type LoanReturn struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	LoanID       uint            `gorm:"not null;uniqueIndex" json:"loan_id"`
	ReturnDate   time.Time       `gorm:"type:date;not null" json:"return_date"`
	UnitsGood    int             `gorm:"not null;default:0" json:"units_good"`
	UnitsDamaged int             `gorm:"not null;default:0" json:"units_damaged"`
	UnitsLost    int             `gorm:"not null;default:0" json:"units_lost"`
	LateDays     int             `gorm:"not null;default:0" json:"late_days"`
	Fine         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"fine"`
	Condition    string          `gorm:"size:20" json:"condition"`
	Notes        string          `gorm:"type:text" json:"notes"`
	ReceivedBy   uint            `gorm:"not null" json:"received_by"`
	CorrectedBy  *uint           `json:"corrected_by"`
	CorrectedAt  *time.Time      `json:"corrected_at"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Loan *Loan `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
}

func (LoanReturn) TableName() string {
	return "loan_returns"
}

// Buckets returns the recorded condition breakdown
func (r *LoanReturn) Buckets() domain.Buckets {
	return domain.Buckets{Good: r.UnitsGood, Damaged: r.UnitsDamaged, Lost: r.UnitsLost}
}

// DisplayCondition prefers the bucket breakdown and falls back to the legacy field
func (r *LoanReturn) DisplayCondition() string {
	if r.Buckets().Total() > 0 {
		return string(r.Buckets().Condition())
	}
	return r.Condition
}

// LoanHistory is the audit trail of a loan
type LoanHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LoanID      uint      `gorm:"not null;index" json:"loan_id"`
	Action      string    `gorm:"size:30;not null" json:"action"`
	FromStatus  string    `gorm:"size:20" json:"from_status"`
	ToStatus    string    `gorm:"size:20" json:"to_status"`
	Description string    `gorm:"type:text" json:"description"`
	PerformedBy uint      `gorm:"not null" json:"performed_by"`
	IPAddress   string    `gorm:"size:50" json:"ip_address"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Performer *User `gorm:"foreignKey:PerformedBy" json:"performer,omitempty"`
}

func (LoanHistory) TableName() string {
	return "loan_histories"
}

// History actions
const (
	ActionCreate        = "CREATE"
	ActionApprove       = "APPROVE"
	ActionReject        = "REJECT"
	ActionLend          = "LEND"
	ActionReturn        = "RETURN"
	ActionReturnCorrect = "RETURN_CORRECT"
)

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Category{},
		&Tool{},
		&Loan{},
		&LoanReturn{},
		&LoanHistory{},
	)
}

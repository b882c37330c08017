package models

import (
	"time"
)

// DebtStatus is the lifecycle state of a debt
type DebtStatus string

const (
	DebtUnpaid  DebtStatus = "unpaid"
	DebtPaid    DebtStatus = "paid"
	DebtOverdue DebtStatus = "overdue"
)

// ReminderStatus is the recorded outcome of one delivery attempt
type ReminderStatus string

const (
	ReminderSent   ReminderStatus = "sent"
	ReminderFailed ReminderStatus = "failed"
)

// ReminderKind binds a lead-time label to the number of days before the due date
type ReminderKind struct {
	Label      string `mapstructure:"Label" json:"label"`
	DaysBefore int    `mapstructure:"DaysBefore" json:"days_before"`
}

// DefaultReminderKinds is the 7/3/1 day ladder, in processing order
var DefaultReminderKinds = []ReminderKind{
	{Label: "7_days", DaysBefore: 7},
	{Label: "3_days", DaysBefore: 3},
	{Label: "1_day", DaysBefore: 1},
}

// User represents a debtor reachable through a messaging platform
type User struct {
	ID             int       `json:"id"`
	ExternalHandle string    `json:"external_handle"` // Telegram chat ID or Discord user ID
	Name           string    `json:"name"`
	IsVerified     bool      `json:"is_verified"`
	DomainID       string    `json:"domain_id,omitempty"` // BPJS number once verified
	CreatedAt      time.Time `json:"created_at"`
}

// Debt represents an outstanding bill owned by a user
type Debt struct {
	ID          int        `json:"id"`
	UserID      int        `json:"user_id"`
	Amount      int64      `json:"amount"` // rupiah, no fractional part
	DueDate     time.Time  `json:"due_date"`
	Status      DebtStatus `json:"status"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Reminder is the insert-only audit record of one notification attempt
type Reminder struct {
	ID        int            `json:"id"`
	DebtID    int            `json:"debt_id"`
	UserID    int            `json:"user_id"`
	Kind      string         `json:"reminder_type"`
	SentAt    time.Time      `json:"sent_at"`
	Status    ReminderStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

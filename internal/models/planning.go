package models

import "time"

// Recurrence represents how often a planning transaction repeats.
type Recurrence string

const (
	RecurrenceOnce      Recurrence = "ONCE"
	RecurrenceDaily     Recurrence = "DAILY"
	RecurrenceWeekly    Recurrence = "WEEKLY"
	RecurrenceBiweekly  Recurrence = "BIWEEKLY"
	RecurrenceMonthly   Recurrence = "MONTHLY"
	RecurrenceQuarterly Recurrence = "QUARTERLY"
	RecurrenceYearly    Recurrence = "YEARLY"
)

// PlanningTransaction is a template for recurring transactions. Concrete
// dated occurrences are generated from StartDate by the planning service;
// executing an occurrence books a real transaction and advances StartDate.
type PlanningTransaction struct {
	Base
	Name       string          `gorm:"not null" json:"name"`
	AccountID  string          `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Type       TransactionType `gorm:"not null" json:"type"`
	Amount     int64           `gorm:"type:bigint;not null" json:"amount"`

	Recurrence Recurrence `gorm:"not null;default:'ONCE'" json:"recurrence"`
	StartDate  time.Time  `gorm:"not null" json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`

	// CounterAccountID is set on account-transfer templates.
	CounterAccountID *string `gorm:"type:uuid" json:"counter_account_id,omitempty"`

	RecipientID *string `gorm:"type:uuid" json:"recipient_id,omitempty"`
	Note        string  `json:"note"`
	IsActive    bool    `gorm:"default:true" json:"is_active"`

	Account  Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

package models

import "time"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeExpense          TransactionType = "EXPENSE"
	TransactionTypeIncome           TransactionType = "INCOME"
	TransactionTypeAccountTransfer  TransactionType = "ACCOUNTTRANSFER"
	TransactionTypeCategoryTransfer TransactionType = "CATEGORYTRANSFER"
)

// Transaction represents a booked transaction. Amount is signed, in cents;
// negative amounts are outflows. Transfers exist as linked pairs whose
// CounterTransactionID fields point at each other and whose amounts carry
// opposite signs.
type Transaction struct {
	Base
	Date       time.Time       `gorm:"not null;index" json:"date"`
	ValueDate  time.Time       `gorm:"not null;index" json:"value_date"`
	AccountID  string          `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID *string         `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Type       TransactionType `gorm:"not null" json:"type"`
	Amount     int64           `gorm:"type:bigint;not null" json:"amount"`

	RecipientID *string `gorm:"type:uuid" json:"recipient_id,omitempty"`
	// Payee mirrors the recipient's name for display. It is re-derived
	// whenever RecipientID changes, never edited independently.
	Payee string `json:"payee"`

	TagIDs     StringList `gorm:"type:text" json:"tag_ids"`
	Note       string     `json:"note"`
	Reconciled bool       `gorm:"default:false" json:"reconciled"`

	CounterTransactionID *string `gorm:"type:uuid" json:"counter_transaction_id,omitempty"`

	// RunningBalance is the cached account balance after this transaction,
	// recomputed whenever the account's history changes.
	RunningBalance int64 `gorm:"type:bigint;not null;default:0" json:"running_balance"`

	Account   Account    `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Category  *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Recipient *Recipient `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
}

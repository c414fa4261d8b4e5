package models

// BudgetAllocation records the amount budgeted into a category for one
// calendar month. The envelope fields on Category (Budgeted, Activity,
// Available) are projections over these rows plus the transaction history.
type BudgetAllocation struct {
	Base
	CategoryID string `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_month" json:"category_id"`
	Year       int    `gorm:"not null;uniqueIndex:idx_alloc_month" json:"year"`
	Month      int    `gorm:"not null;uniqueIndex:idx_alloc_month" json:"month"`
	// Amount budgeted into the envelope, in cents.
	Amount int64 `gorm:"type:bigint;not null" json:"amount"`

	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

package models

// AccountGroup organizes accounts in the sidebar. Deletion is rejected while
// any account still references the group.
type AccountGroup struct {
	Base
	Name      string `gorm:"not null" json:"name"`
	SortOrder int    `gorm:"not null;default:0" json:"sort_order"`

	Accounts []Account `gorm:"foreignKey:AccountGroupID" json:"accounts,omitempty"`
}

// Account represents a financial account within a tenant.
type Account struct {
	Base
	Name           string `gorm:"not null" json:"name"`
	AccountGroupID string `gorm:"type:uuid;not null;index" json:"account_group_id"`
	Description    string `json:"description"`
	IBAN           string `json:"iban,omitempty"`
	// Balance is the cached sum of all transactions, in cents.
	Balance  int64 `gorm:"not null;default:0" json:"balance"`
	IsActive bool  `gorm:"default:true" json:"is_active"`

	Group        *AccountGroup `gorm:"foreignKey:AccountGroupID" json:"group,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}

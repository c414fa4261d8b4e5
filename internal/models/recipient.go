package models

// Recipient is a payee/payer an amount moved to or from.
type Recipient struct {
	Base
	Name string `gorm:"not null;index" json:"name"`
}

// Tag is a free-form label attached to transactions via Transaction.TagIDs.
type Tag struct {
	Base
	Name  string `gorm:"not null" json:"name"`
	Color string `json:"color"`
}

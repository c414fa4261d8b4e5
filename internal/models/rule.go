package models

// RuleField selects which transaction field a rule matches against.
type RuleField string

const (
	RuleFieldPayee RuleField = "payee"
	RuleFieldNote  RuleField = "note"
)

// Rule auto-assigns a category and/or recipient to newly created
// transactions whose payee or note contains the pattern. Rules apply
// highest Priority first; the first match wins.
type Rule struct {
	Base
	Name        string    `gorm:"not null" json:"name"`
	MatchField  RuleField `gorm:"not null;default:'payee'" json:"match_field"`
	Pattern     string    `gorm:"not null" json:"pattern"`
	Priority    int       `gorm:"not null;default:0" json:"priority"`
	CategoryID  *string   `gorm:"type:uuid" json:"category_id,omitempty"`
	RecipientID *string   `gorm:"type:uuid" json:"recipient_id,omitempty"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
}

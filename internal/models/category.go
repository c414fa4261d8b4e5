package models

// AvailableFundsName is the reserved name of the singleton pseudo-category
// that tracks unbudgeted funds. It is created lazily and excluded from
// normal category listings.
const AvailableFundsName = "Verfügbare Mittel"

// CategoryGroup organizes categories. IsIncomeGroup propagates to every
// category in the group.
type CategoryGroup struct {
	Base
	Name          string `gorm:"not null" json:"name"`
	SortOrder     int    `gorm:"not null;default:0" json:"sort_order"`
	IsIncomeGroup bool   `gorm:"default:false" json:"is_income_group"`

	Categories []Category `gorm:"foreignKey:CategoryGroupID" json:"categories,omitempty"`
}

// Category represents an envelope-budgeting category.
type Category struct {
	Base
	Name            string  `gorm:"not null" json:"name"`
	CategoryGroupID string  `gorm:"type:uuid;not null;index" json:"category_group_id"`
	ParentID        *string `gorm:"type:uuid" json:"parent_id,omitempty"`

	// IsIncomeCategory is a derived field: it must always equal the owning
	// group's IsIncomeGroup. It is re-derived on every create/update and by
	// the load-time migration pass, never trusted as stored truth.
	IsIncomeCategory bool `gorm:"default:false" json:"is_income_category"`

	// Envelope fields for the current month, in cents.
	Budgeted  int64 `gorm:"not null;default:0" json:"budgeted"`
	Activity  int64 `gorm:"not null;default:0" json:"activity"`
	Available int64 `gorm:"not null;default:0" json:"available"`

	IsHidden         bool `gorm:"default:false" json:"is_hidden"`
	IsActive         bool `gorm:"default:true" json:"is_active"`
	IsAvailableFunds bool `gorm:"default:false" json:"is_available_funds"`

	Group    *CategoryGroup `gorm:"foreignKey:CategoryGroupID" json:"group,omitempty"`
	Parent   *Category      `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category     `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

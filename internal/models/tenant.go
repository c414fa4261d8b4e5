package models

// Tenant is an isolated workspace. All budget data for a tenant lives in its
// own embedded database file; only the registry row lives centrally.
type Tenant struct {
	Base
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name   string `gorm:"not null" json:"name"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// UserSettings holds per-user preferences that survive tenant switches:
// logging configuration and a free-form blob of UI state (expanded trees,
// filter selections). SearchHistory is capped at ten entries, newest first.
type UserSettings struct {
	UserID string `gorm:"type:uuid;primaryKey" json:"user_id"`

	LogLevel             string     `gorm:"default:'info'" json:"log_level"`
	LogCategories        StringList `gorm:"type:text" json:"log_categories"`
	HistoryRetentionDays int        `gorm:"default:60" json:"history_retention_days"`

	SearchHistory StringList `gorm:"type:text" json:"search_history"`
	Preferences   string     `gorm:"type:text" json:"preferences"`
}

// MaxSearchHistory bounds UserSettings.SearchHistory.
const MaxSearchHistory = 10

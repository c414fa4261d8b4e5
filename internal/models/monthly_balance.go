package models

import "time"

// MonthlyBalance caches the month-end actual and projected balance of an
// account. It is a read-through cache: the stats service fills rows on demand
// and deletes them when a mutation touches the month or any earlier one.
// Not part of the sync data set.
type MonthlyBalance struct {
	AccountID string `gorm:"type:uuid;primaryKey" json:"account_id"`
	Year      int    `gorm:"primaryKey" json:"year"`
	Month     int    `gorm:"primaryKey" json:"month"`

	EndBalance       int64     `gorm:"type:bigint;not null" json:"end_balance"`
	ProjectedBalance int64     `gorm:"type:bigint;not null" json:"projected_balance"`
	ComputedAt       time.Time `json:"computed_at"`
}

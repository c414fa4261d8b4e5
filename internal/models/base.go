package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"finwave/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables. UpdatedAt and Revision carry
// the last-write-wins merge metadata; DeletedAt doubles as the sync tombstone,
// so a deleted row keeps its revision and can still win or lose a merge.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Revision  string         `gorm:"index" json:"revision"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// Meta exposes the merge metadata to the generic LWW apply code.
func (b *Base) Meta() *Base { return b }

// Syncable is satisfied by every tenant entity and gives the sync layer
// access to the id/revision pair it merges on.
type Syncable interface {
	Meta() *Base
}

// StringList stores a list of ids as a JSON array in a single column.
// SQLite has no native array type and the lists are small (tag ids on a
// transaction), so a serialized column beats a join table here.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Contains reports whether id is present in the list.
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

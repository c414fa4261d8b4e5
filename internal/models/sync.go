package models

import (
	"encoding/json"
	"time"
)

// SyncOperation is the kind of mutation a sync record describes.
type SyncOperation string

const (
	SyncOpCreate SyncOperation = "CREATE"
	SyncOpUpdate SyncOperation = "UPDATE"
	SyncOpDelete SyncOperation = "DELETE"
)

// SyncStatus tracks a queue entry through the drain pipeline.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusSynced     SyncStatus = "synced"
	SyncStatusFailed     SyncStatus = "failed"
)

// SyncQueueEntry is one pending local mutation awaiting transmission. The
// queue is append-only from the stores' point of view; the drainer flips
// Status as it publishes entries. Entries are never created for changes that
// arrived from remote peers, which is what breaks echo loops.
type SyncQueueEntry struct {
	ID         string        `gorm:"type:uuid;primaryKey" json:"id"`
	EntityType string        `gorm:"not null;index" json:"entity_type"`
	EntityID   string        `gorm:"type:uuid;not null" json:"entity_id"`
	Operation  SyncOperation `gorm:"not null" json:"operation"`
	Payload    string        `gorm:"type:text" json:"payload"`
	Revision   string        `json:"revision"`

	Status    SyncStatus `gorm:"not null;default:'pending';index" json:"status"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	QueuedAt  time.Time  `gorm:"not null" json:"queued_at"`
}

// ChangeRecord is the wire form of a single mutation, both as published to
// the sync exchange and as accepted from remote peers.
type ChangeRecord struct {
	EntityType string          `json:"entity_type" binding:"required"`
	EntityID   string          `json:"entity_id" binding:"required"`
	Operation  SyncOperation   `json:"operation" binding:"required"`
	Revision   string          `json:"revision"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

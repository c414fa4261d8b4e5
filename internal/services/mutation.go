package services

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"finwave/internal/logger"
	"finwave/internal/models"
	"finwave/internal/tenant"
	"finwave/internal/uuid"
)

// Entity type names used in sync records. These are the wire vocabulary
// shared with remote peers; renaming one is a protocol change.
const (
	EntityAccount       = "account"
	EntityAccountGroup  = "accountGroup"
	EntityCategory      = "category"
	EntityCategoryGroup = "categoryGroup"
	EntityTransaction   = "transaction"
	EntityPlanning      = "planningTransaction"
	EntityRecipient     = "recipient"
	EntityTag           = "tag"
	EntityRule          = "rule"
	EntityAllocation    = "budgetAllocation"
)

// stamp sets the merge metadata on an entity before a local write. Every
// local mutation advances the tenant clock exactly once.
func stamp(sess *tenant.Session, e models.Syncable) {
	meta := e.Meta()
	meta.UpdatedAt = time.Now()
	meta.Revision = sess.Clock().Now()
}

// enqueueSync appends a change record to the tenant's sync queue. A failed
// enqueue is logged and swallowed: the local mutation stands even if it
// cannot yet be queued for transmission.
func enqueueSync(db *gorm.DB, entityType string, op models.SyncOperation, e models.Syncable) {
	meta := e.Meta()

	payload, err := json.Marshal(e)
	if err != nil {
		logger.Get().Errorw("marshaling sync payload",
			"entity_type", entityType, "entity_id", meta.ID, "error", err)
		return
	}

	entry := &models.SyncQueueEntry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   meta.ID,
		Operation:  op,
		Payload:    string(payload),
		Revision:   meta.Revision,
		Status:     models.SyncStatusPending,
		QueuedAt:   time.Now(),
	}
	if err := db.Create(entry).Error; err != nil {
		logger.Get().Errorw("enqueueing sync record",
			"entity_type", entityType, "entity_id", meta.ID, "operation", op, "error", err)
	}
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"finwave/internal/amqp"
	"finwave/internal/clock"
	apperrors "finwave/internal/errors"
	"finwave/internal/logger"
	"finwave/internal/models"
	"finwave/internal/realtime"
	"finwave/internal/retry"
	"finwave/internal/tenant"
)

// drainBatchSize bounds how many queue entries one drain pass publishes.
const drainBatchSize = 100

// syncService implements the last-write-wins merge for remote changes and
// the outbound queue drain. Remote changes never re-enter the queue, which
// is what keeps two peers from echoing each other's mutations forever.
type syncService struct {
	tenants   *tenant.Manager
	publisher *amqp.Publisher
	hub       *realtime.Hub
	retryCfg  retry.Config
}

// NewSyncService creates a new SyncServicer. publisher and hub may be nil;
// draining then becomes a no-op and applied changes are not pushed.
func NewSyncService(tenants *tenant.Manager, publisher *amqp.Publisher, hub *realtime.Hub) SyncServicer {
	return &syncService{
		tenants:   tenants,
		publisher: publisher,
		hub:       hub,
		retryCfg:  retry.DefaultConfig(),
	}
}

// newSyncEntity maps a wire entity type to a fresh model instance.
func newSyncEntity(entityType string) (models.Syncable, error) {
	switch entityType {
	case EntityAccount:
		return &models.Account{}, nil
	case EntityAccountGroup:
		return &models.AccountGroup{}, nil
	case EntityCategory:
		return &models.Category{}, nil
	case EntityCategoryGroup:
		return &models.CategoryGroup{}, nil
	case EntityTransaction:
		return &models.Transaction{}, nil
	case EntityPlanning:
		return &models.PlanningTransaction{}, nil
	case EntityRecipient:
		return &models.Recipient{}, nil
	case EntityTag:
		return &models.Tag{}, nil
	case EntityRule:
		return &models.Rule{}, nil
	case EntityAllocation:
		return &models.BudgetAllocation{}, nil
	}
	return nil, apperrors.WithMessage(apperrors.ErrInvalidSyncRecord,
		fmt.Sprintf("unknown entity type %q", entityType))
}

// remoteWins decides the merge. Revisions order first; equal or missing
// revisions fall back to the wall-clock UpdatedAt. Exact ties are discarded,
// which makes re-applying the same batch idempotent.
func remoteWins(rec models.ChangeRecord, local *models.Base) bool {
	if rec.Revision != "" && local.Revision != "" {
		switch clock.Compare(rec.Revision, local.Revision) {
		case 1:
			return true
		case -1:
			return false
		}
	}
	return rec.UpdatedAt.After(local.UpdatedAt)
}

// ApplyChanges merges a batch of remote change records into the active
// tenant database. Losing and duplicate records are counted as discarded;
// the batch never fails halfway because one record is stale.
func (s *syncService) ApplyChanges(userID string, records []models.ChangeRecord) (*SyncResult, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	result := &SyncResult{}
	var applied []models.ChangeRecord
	touchedAccounts := make(map[string]time.Time)

	for _, rec := range records {
		if rec.EntityID == "" {
			return nil, apperrors.ErrInvalidSyncRecord
		}
		entity, err := newSyncEntity(rec.EntityType)
		if err != nil {
			return nil, err
		}

		// Every observed remote revision advances the local clock, so
		// the next local edit is guaranteed to win against it.
		sess.Clock().Observe(rec.Revision)

		ok, err := s.applyOne(sess, db, rec, entity, touchedAccounts)
		if err != nil {
			return nil, err
		}
		if ok {
			result.Applied++
			applied = append(applied, rec)
		} else {
			result.Discarded++
		}
	}

	for accountID, from := range touchedAccounts {
		if err := recomputeAccount(db, accountID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		invalidateMonthly(db, accountID, from)
	}

	if s.hub != nil && len(applied) > 0 {
		if data, err := json.Marshal(applied); err == nil {
			s.hub.Broadcast(sess.TenantID, realtime.Event{
				Type:     realtime.EventChangeApplied,
				TenantID: sess.TenantID,
				Data:     data,
			})
		}
	}
	return result, nil
}

// applyOne merges a single record, reporting whether it was applied.
func (s *syncService) applyOne(sess *tenant.Session, db *gorm.DB, rec models.ChangeRecord, entity models.Syncable, touched map[string]time.Time) (bool, error) {
	// Tombstones are part of the merge, so the lookup must see them.
	err := db.Unscoped().Where("id = ?", rec.EntityID).First(entity).Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if exists && !remoteWins(rec, entity.Meta()) {
		return false, nil
	}

	if rec.Operation == models.SyncOpDelete {
		return true, s.applyDelete(db, rec, entity, exists, touched)
	}

	incoming, err := newSyncEntity(rec.EntityType)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(rec.Payload, incoming); err != nil {
		return false, apperrors.Wrap(apperrors.ErrInvalidSyncRecord, err)
	}
	meta := incoming.Meta()
	meta.ID = rec.EntityID
	meta.Revision = rec.Revision
	meta.UpdatedAt = rec.UpdatedAt
	// A winning update resurrects a tombstoned row.
	meta.DeletedAt = gorm.DeletedAt{}
	if exists {
		meta.CreatedAt = entity.Meta().CreatedAt
	}

	if err := rederive(db, incoming); err != nil {
		return false, err
	}

	// Save only updates when the primary key already has a row; a create
	// arriving for an unseen id must insert.
	if exists {
		err = db.Unscoped().Save(incoming).Error
	} else {
		err = db.Create(incoming).Error
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if txn, ok := incoming.(*models.Transaction); ok && txn.AccountID != "" {
		markTouched(touched, txn.AccountID, txn.Date)
	}
	if exists {
		if old, ok := entity.(*models.Transaction); ok && old.AccountID != "" {
			markTouched(touched, old.AccountID, old.Date)
		}
	}
	return true, nil
}

// applyDelete records a tombstone carrying the remote revision. Deleting an
// entity this peer has never seen still writes the tombstone, so a stale
// create arriving later loses the merge.
func (s *syncService) applyDelete(db *gorm.DB, rec models.ChangeRecord, entity models.Syncable, exists bool, touched map[string]time.Time) error {
	meta := entity.Meta()
	meta.ID = rec.EntityID
	meta.Revision = rec.Revision
	meta.UpdatedAt = rec.UpdatedAt
	meta.DeletedAt = gorm.DeletedAt{Time: rec.UpdatedAt, Valid: true}
	if meta.DeletedAt.Time.IsZero() {
		meta.DeletedAt.Time = time.Now()
	}

	var err error
	if exists {
		err = db.Unscoped().Save(entity).Error
	} else {
		err = db.Create(entity).Error
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if exists {
		if txn, ok := entity.(*models.Transaction); ok && txn.AccountID != "" {
			markTouched(touched, txn.AccountID, txn.Date)
		}
	}
	return nil
}

// rederive refreshes the fields that are projections of other entities.
// Remote payloads may carry stale values for them; local data wins here
// regardless of revisions, because these fields are never merged directly.
func rederive(db *gorm.DB, entity models.Syncable) error {
	switch e := entity.(type) {
	case *models.Category:
		var group models.CategoryGroup
		err := db.Where("id = ?", e.CategoryGroupID).First(&group).Error
		if err == nil {
			e.IsIncomeCategory = group.IsIncomeGroup
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	case *models.Transaction:
		if e.RecipientID != nil {
			var recipient models.Recipient
			err := db.Where("id = ?", *e.RecipientID).First(&recipient).Error
			if err == nil {
				e.Payee = recipient.Name
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
	}
	return nil
}

func markTouched(touched map[string]time.Time, accountID string, date time.Time) {
	if prev, ok := touched[accountID]; !ok || date.Before(prev) {
		touched[accountID] = date
	}
}

// PendingQueue lists the queue entries still awaiting transmission.
func (s *syncService) PendingQueue(userID string) ([]models.SyncQueueEntry, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	var entries []models.SyncQueueEntry
	err = sess.DB().
		Where("status IN ?", []models.SyncStatus{models.SyncStatusPending, models.SyncStatusFailed}).
		Order("queued_at").Limit(drainBatchSize).Find(&entries).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entries, nil
}

// DrainOnce publishes one batch of pending queue entries to the sync
// exchange, returning how many went out. Entries that keep failing stay in
// the queue as failed and are retried on the next pass.
func (s *syncService) DrainOnce(ctx context.Context, userID string) (int, error) {
	if s.publisher == nil {
		return 0, nil
	}
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return 0, err
	}
	db := sess.DB()

	entries, err := s.PendingQueue(userID)
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range entries {
		entry := &entries[i]

		err := db.Model(entry).Updates(map[string]interface{}{
			"status":   models.SyncStatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
		if err != nil {
			return published, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		pubErr := retry.Do(ctx, s.retryCfg, func() error {
			return s.publisher.PublishChange(ctx, sess.TenantID, entry)
		})
		if pubErr != nil {
			logger.Get().Warnw("publishing sync entry",
				"entity_type", entry.EntityType, "entity_id", entry.EntityID, "error", pubErr)
			db.Model(entry).Updates(map[string]interface{}{
				"status":     models.SyncStatusFailed,
				"last_error": pubErr.Error(),
			})
			if ctx.Err() != nil {
				return published, ctx.Err()
			}
			continue
		}

		err = db.Model(entry).Updates(map[string]interface{}{
			"status":     models.SyncStatusSynced,
			"last_error": "",
		}).Error
		if err != nil {
			return published, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		published++
	}
	return published, nil
}

// Snapshot serializes the tenant's full entity state for an initial-data
// push to a freshly connected client.
func (s *syncService) Snapshot(tenantID string) (json.RawMessage, error) {
	sess, err := s.tenants.SessionByTenant(tenantID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	snapshot := make(map[string]interface{})
	load := func(key string, dest interface{}) error {
		if err := db.Find(dest).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		snapshot[key] = dest
		return nil
	}

	if err := load("account_groups", &[]models.AccountGroup{}); err != nil {
		return nil, err
	}
	if err := load("accounts", &[]models.Account{}); err != nil {
		return nil, err
	}
	if err := load("category_groups", &[]models.CategoryGroup{}); err != nil {
		return nil, err
	}
	if err := load("categories", &[]models.Category{}); err != nil {
		return nil, err
	}
	if err := load("transactions", &[]models.Transaction{}); err != nil {
		return nil, err
	}
	if err := load("planning_transactions", &[]models.PlanningTransaction{}); err != nil {
		return nil, err
	}
	if err := load("recipients", &[]models.Recipient{}); err != nil {
		return nil, err
	}
	if err := load("tags", &[]models.Tag{}); err != nil {
		return nil, err
	}
	if err := load("rules", &[]models.Rule{}); err != nil {
		return nil, err
	}
	if err := load("budget_allocations", &[]models.BudgetAllocation{}); err != nil {
		return nil, err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return data, nil
}

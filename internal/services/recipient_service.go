package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/tenant"
)

// recipientService handles recipient business logic.
type recipientService struct {
	tenants *tenant.Manager
}

// NewRecipientService creates a new RecipientServicer.
func NewRecipientService(tenants *tenant.Manager) RecipientServicer {
	return &recipientService{tenants: tenants}
}

// CreateRecipient creates a new recipient.
func (s *recipientService) CreateRecipient(userID, name string) (*models.Recipient, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "recipient name is required")
	}

	recipient := &models.Recipient{Name: name}
	stamp(sess, recipient)
	if err := sess.DB().Create(recipient).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityRecipient, models.SyncOpCreate, recipient)
	return recipient, nil
}

// GetRecipients lists recipients alphabetically, paginated.
func (s *recipientService) GetRecipients(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Recipient], error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := sess.DB().Model(&models.Recipient{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var recipients []models.Recipient
	if err := base.Scopes(pagination.Paginate(page)).Order("name").Find(&recipients).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(recipients, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateRecipient renames a recipient and refreshes the derived payee on
// every transaction that references it.
func (s *recipientService) UpdateRecipient(userID, recipientID, name string) (*models.Recipient, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "recipient name is required")
	}

	var recipient models.Recipient
	if err := sess.DB().Where("id = ?", recipientID).First(&recipient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecipientNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	recipient.Name = name
	stamp(sess, &recipient)
	err = sess.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&recipient).Error; err != nil {
			return err
		}
		return tx.Model(&models.Transaction{}).
			Where("recipient_id = ?", recipient.ID).
			UpdateColumn("payee", recipient.Name).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityRecipient, models.SyncOpUpdate, &recipient)
	return &recipient, nil
}

// DeleteRecipient soft-deletes a recipient. Transactions keep the derived
// payee text but lose the link.
func (s *recipientService) DeleteRecipient(userID, recipientID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}

	var recipient models.Recipient
	if err := sess.DB().Where("id = ?", recipientID).First(&recipient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrRecipientNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stamp(sess, &recipient)
	err = sess.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&recipient).UpdateColumn("revision", recipient.Revision).Error; err != nil {
			return err
		}
		if err := tx.Delete(&recipient).Error; err != nil {
			return err
		}
		return tx.Model(&models.Transaction{}).
			Where("recipient_id = ?", recipient.ID).
			UpdateColumn("recipient_id", nil).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityRecipient, models.SyncOpDelete, &recipient)
	return nil
}

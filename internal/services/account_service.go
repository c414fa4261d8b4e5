package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/tenant"
)

// accountService handles account and account-group business logic against
// the user's active tenant database.
type accountService struct {
	tenants *tenant.Manager
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(tenants *tenant.Manager) AccountServicer {
	return &accountService{tenants: tenants}
}

// CreateAccountGroup creates a new account group.
func (s *accountService) CreateAccountGroup(userID, name string, sortOrder int) (*models.AccountGroup, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group name is required")
	}

	group := &models.AccountGroup{Name: name, SortOrder: sortOrder}
	stamp(sess, group)
	if err := sess.DB().Create(group).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityAccountGroup, models.SyncOpCreate, group)
	return group, nil
}

// GetAccountGroups lists account groups in sort order.
func (s *accountService) GetAccountGroups(userID string) ([]models.AccountGroup, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	var groups []models.AccountGroup
	if err := sess.DB().Order("sort_order, name").Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return groups, nil
}

// UpdateAccountGroup merges the provided fields into the group.
func (s *accountService) UpdateAccountGroup(userID, groupID string, name *string, sortOrder *int) (*models.AccountGroup, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	var group models.AccountGroup
	if err := sess.DB().Where("id = ?", groupID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if name != nil {
		group.Name = *name
	}
	if sortOrder != nil {
		group.SortOrder = *sortOrder
	}
	stamp(sess, &group)
	if err := sess.DB().Save(&group).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityAccountGroup, models.SyncOpUpdate, &group)
	return &group, nil
}

// DeleteAccountGroup removes a group. Deletion is rejected while any account
// still references it.
func (s *accountService) DeleteAccountGroup(userID, groupID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}

	var group models.AccountGroup
	if err := sess.DB().Where("id = ?", groupID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrAccountGroupNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var inUse int64
	if err := sess.DB().Model(&models.Account{}).
		Where("account_group_id = ?", groupID).Count(&inUse).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if inUse > 0 {
		return apperrors.ErrGroupInUse
	}

	stamp(sess, &group)
	if err := sess.DB().Model(&group).UpdateColumn("revision", group.Revision).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := sess.DB().Delete(&group).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityAccountGroup, models.SyncOpDelete, &group)
	return nil
}

// CreateAccount creates a new account in the given group.
func (s *accountService) CreateAccount(userID, name, groupID, description, iban string) (*models.Account, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	var count int64
	if err := sess.DB().Model(&models.AccountGroup{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrAccountGroupNotFound
	}

	account := &models.Account{
		Name:           name,
		AccountGroupID: groupID,
		Description:    description,
		IBAN:           iban,
		IsActive:       true,
	}
	stamp(sess, account)
	if err := sess.DB().Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityAccount, models.SyncOpCreate, account)
	return account, nil
}

// GetAccounts retrieves a paginated list of active accounts.
func (s *accountService) GetAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := sess.DB().Model(&models.Account{}).Where("is_active = ?", true)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Scopes(pagination.Paginate(page)).Order("name").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountByID retrieves an account by ID.
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	return getAccount(sess.DB(), accountID)
}

func getAccount(db *gorm.DB, accountID string) (*models.Account, error) {
	var account models.Account
	if err := db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// UpdateAccount merges the provided fields into the account.
func (s *accountService) UpdateAccount(userID, accountID string, fields AccountUpdate) (*models.Account, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	account, err := getAccount(sess.DB(), accountID)
	if err != nil {
		return nil, err
	}

	if fields.GroupID != nil {
		var count int64
		if err := sess.DB().Model(&models.AccountGroup{}).Where("id = ?", *fields.GroupID).Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return nil, apperrors.ErrAccountGroupNotFound
		}
		account.AccountGroupID = *fields.GroupID
	}
	if fields.Name != nil {
		account.Name = *fields.Name
	}
	if fields.Description != nil {
		account.Description = *fields.Description
	}
	if fields.IBAN != nil {
		account.IBAN = *fields.IBAN
	}
	if fields.IsActive != nil {
		account.IsActive = *fields.IsActive
	}

	stamp(sess, account)
	if err := sess.DB().Save(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityAccount, models.SyncOpUpdate, account)
	return account, nil
}

// DeleteAccount soft-deletes an account and its transactions.
func (s *accountService) DeleteAccount(userID, accountID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}

	account, err := getAccount(sess.DB(), accountID)
	if err != nil {
		return err
	}

	stamp(sess, account)
	err = sess.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(account).UpdateColumn("revision", account.Revision).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(account).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityAccount, models.SyncOpDelete, account)
	return nil
}

package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/tenant"
)

// categoryService handles category and category-group business logic.
type categoryService struct {
	tenants *tenant.Manager
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(tenants *tenant.Manager) CategoryServicer {
	return &categoryService{tenants: tenants}
}

// MigrateIncomeFlags re-derives IsIncomeCategory from the owning group for
// every category. Registered as a tenant open hook so stale flags from older
// data or divergent peers are repaired before the session becomes visible.
func MigrateIncomeFlags(db *gorm.DB) error {
	var groups []models.CategoryGroup
	if err := db.Find(&groups).Error; err != nil {
		return err
	}
	for _, group := range groups {
		err := db.Model(&models.Category{}).
			Where("category_group_id = ? AND is_income_category <> ?", group.ID, group.IsIncomeGroup).
			UpdateColumn("is_income_category", group.IsIncomeGroup).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateCategoryGroup creates a new category group.
func (s *categoryService) CreateCategoryGroup(userID, name string, sortOrder int, isIncomeGroup bool) (*models.CategoryGroup, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group name is required")
	}

	group := &models.CategoryGroup{Name: name, SortOrder: sortOrder, IsIncomeGroup: isIncomeGroup}
	stamp(sess, group)
	if err := sess.DB().Create(group).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityCategoryGroup, models.SyncOpCreate, group)
	return group, nil
}

// GetCategoryGroups lists category groups in sort order.
func (s *categoryService) GetCategoryGroups(userID string) ([]models.CategoryGroup, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	var groups []models.CategoryGroup
	if err := sess.DB().Order("sort_order, name").Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return groups, nil
}

// UpdateCategoryGroup merges the provided fields into the group. Changing
// IsIncomeGroup re-derives IsIncomeCategory on every category in the group.
func (s *categoryService) UpdateCategoryGroup(userID, groupID string, name *string, sortOrder *int, isIncomeGroup *bool) (*models.CategoryGroup, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	var group models.CategoryGroup
	if err := sess.DB().Where("id = ?", groupID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if name != nil {
		group.Name = *name
	}
	if sortOrder != nil {
		group.SortOrder = *sortOrder
	}
	incomeChanged := isIncomeGroup != nil && group.IsIncomeGroup != *isIncomeGroup
	if isIncomeGroup != nil {
		group.IsIncomeGroup = *isIncomeGroup
	}

	stamp(sess, &group)
	err = sess.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&group).Error; err != nil {
			return err
		}
		if incomeChanged {
			return tx.Model(&models.Category{}).
				Where("category_group_id = ?", group.ID).
				UpdateColumn("is_income_category", group.IsIncomeGroup).Error
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityCategoryGroup, models.SyncOpUpdate, &group)
	return &group, nil
}

// DeleteCategoryGroup removes a group. Deletion is rejected while any
// category still references it.
func (s *categoryService) DeleteCategoryGroup(userID, groupID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}

	var group models.CategoryGroup
	if err := sess.DB().Where("id = ?", groupID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCategoryGroupNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var inUse int64
	if err := sess.DB().Model(&models.Category{}).
		Where("category_group_id = ?", groupID).Count(&inUse).Error; err != nil {
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
	enqueueSync(sess.DB(), EntityCategoryGroup, models.SyncOpDelete, &group)
	return nil
}

// CreateCategory creates a new category. IsIncomeCategory is derived from
// the owning group, never taken from input.
func (s *categoryService) CreateCategory(userID, name, groupID string, parentID *string) (*models.Category, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	var group models.CategoryGroup
	if err := sess.DB().Where("id = ?", groupID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if parentID != nil {
		var count int64
		if err := sess.DB().Model(&models.Category{}).Where("id = ?", *parentID).Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
		}
	}

	category := &models.Category{
		Name:             name,
		CategoryGroupID:  groupID,
		ParentID:         parentID,
		IsIncomeCategory: group.IsIncomeGroup,
		IsActive:         true,
	}
	stamp(sess, category)
	if err := sess.DB().Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityCategory, models.SyncOpCreate, category)
	return category, nil
}

// GetCategories lists categories. The available-funds pseudo-category is
// always excluded; hidden categories only appear when requested.
func (s *categoryService) GetCategories(userID string, includeHidden bool) ([]models.Category, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	q := sess.DB().Where("is_available_funds = ?", false)
	if !includeHidden {
		q = q.Where("is_hidden = ?", false)
	}

	var categories []models.Category
	if err := q.Order("name").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category by ID.
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	return getCategory(sess.DB(), categoryID)
}

func getCategory(db *gorm.DB, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory merges the provided fields into the category. Moving the
// category to another group re-derives IsIncomeCategory.
func (s *categoryService) UpdateCategory(userID, categoryID string, fields CategoryUpdate) (*models.Category, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	category, err := getCategory(sess.DB(), categoryID)
	if err != nil {
		return nil, err
	}

	if fields.ParentID != nil {
		if *fields.ParentID == categoryID {
			return nil, apperrors.ErrSelfParentCategory
		}
		var count int64
		if err := sess.DB().Model(&models.Category{}).Where("id = ?", *fields.ParentID).Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
		}
		category.ParentID = fields.ParentID
	}
	if fields.GroupID != nil {
		var group models.CategoryGroup
		if err := sess.DB().Where("id = ?", *fields.GroupID).First(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrCategoryGroupNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		category.CategoryGroupID = group.ID
		category.IsIncomeCategory = group.IsIncomeGroup
	}
	if fields.Name != nil {
		category.Name = *fields.Name
	}
	if fields.IsHidden != nil {
		category.IsHidden = *fields.IsHidden
	}
	if fields.IsActive != nil {
		category.IsActive = *fields.IsActive
	}

	stamp(sess, category)
	if err := sess.DB().Save(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityCategory, models.SyncOpUpdate, category)
	return category, nil
}

// DeleteCategory soft-deletes a category. Rejected while child categories
// reference it.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}

	category, err := getCategory(sess.DB(), categoryID)
	if err != nil {
		return err
	}

	var children int64
	if err := sess.DB().Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&children).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if children > 0 {
		return apperrors.WithMessage(apperrors.ErrGroupInUse, "Category has child categories")
	}

	stamp(sess, category)
	if err := sess.DB().Model(category).UpdateColumn("revision", category.Revision).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := sess.DB().Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityCategory, models.SyncOpDelete, category)
	return nil
}

// GetAvailableFundsCategory returns the singleton pseudo-category tracking
// unbudgeted funds, creating it (and its backing group) on first use.
func (s *categoryService) GetAvailableFundsCategory(userID string) (*models.Category, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	var category models.Category
	err = sess.DB().Where("is_available_funds = ?", true).First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// Lazily create the pseudo-category inside a system group.
	var group models.CategoryGroup
	err = sess.DB().Where("name = ?", "System").First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		group = models.CategoryGroup{Name: "System", SortOrder: 9999}
		stamp(sess, &group)
		if err := sess.DB().Create(&group).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		enqueueSync(sess.DB(), EntityCategoryGroup, models.SyncOpCreate, &group)
	} else if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	category = models.Category{
		Name:             models.AvailableFundsName,
		CategoryGroupID:  group.ID,
		IsAvailableFunds: true,
		IsActive:         true,
	}
	stamp(sess, &category)
	if err := sess.DB().Create(&category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	// The singleton syncs like any other create; peers adopt this id via the
	// merge instead of minting a second one.
	enqueueSync(sess.DB(), EntityCategory, models.SyncOpCreate, &category)
	return &category, nil
}

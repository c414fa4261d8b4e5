package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/tenant"
)

// tagService handles tag business logic.
type tagService struct {
	tenants *tenant.Manager
}

// NewTagService creates a new TagServicer.
func NewTagService(tenants *tenant.Manager) TagServicer {
	return &tagService{tenants: tenants}
}

// CreateTag creates a new tag.
func (s *tagService) CreateTag(userID, name, color string) (*models.Tag, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tag name is required")
	}

	tag := &models.Tag{Name: name, Color: color}
	stamp(sess, tag)
	if err := sess.DB().Create(tag).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityTag, models.SyncOpCreate, tag)
	return tag, nil
}

// GetTags lists tags alphabetically, paginated.
func (s *tagService) GetTags(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Tag], error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := sess.DB().Model(&models.Tag{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var tags []models.Tag
	if err := base.Scopes(pagination.Paginate(page)).Order("name").Find(&tags).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(tags, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateTag merges the provided fields into the tag.
func (s *tagService) UpdateTag(userID, tagID string, name, color *string) (*models.Tag, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	tag, err := getTag(sess.DB(), tagID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		tag.Name = *name
	}
	if color != nil {
		tag.Color = *color
	}

	stamp(sess, tag)
	if err := sess.DB().Save(tag).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityTag, models.SyncOpUpdate, tag)
	return tag, nil
}

// DeleteTag soft-deletes a tag and removes it from every transaction's tag
// list.
func (s *tagService) DeleteTag(userID, tagID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}
	db := sess.DB()

	tag, err := getTag(db, tagID)
	if err != nil {
		return err
	}

	var tagged []models.Transaction
	if err := db.Where("tag_ids LIKE ?", "%"+tagID+"%").Find(&tagged).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stamp(sess, tag)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(tag).UpdateColumn("revision", tag.Revision).Error; err != nil {
			return err
		}
		if err := tx.Delete(tag).Error; err != nil {
			return err
		}
		for i := range tagged {
			kept := make(models.StringList, 0, len(tagged[i].TagIDs))
			for _, id := range tagged[i].TagIDs {
				if id != tagID {
					kept = append(kept, id)
				}
			}
			if len(kept) == len(tagged[i].TagIDs) {
				continue
			}
			err := tx.Model(&tagged[i]).UpdateColumn("tag_ids", kept).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(db, EntityTag, models.SyncOpDelete, tag)
	return nil
}

func getTag(db *gorm.DB, tagID string) (*models.Tag, error) {
	var tag models.Tag
	if err := db.Where("id = ?", tagID).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTagNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tag, nil
}

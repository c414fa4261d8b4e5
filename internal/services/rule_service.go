package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/tenant"
)

// ruleService handles auto-categorization rule business logic.
type ruleService struct {
	tenants *tenant.Manager
}

// NewRuleService creates a new RuleServicer.
func NewRuleService(tenants *tenant.Manager) RuleServicer {
	return &ruleService{tenants: tenants}
}

func validateRuleInput(db *gorm.DB, input RuleInput) error {
	if input.Name == "" || input.Pattern == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "rule name and pattern are required")
	}
	if input.MatchField != models.RuleFieldPayee && input.MatchField != models.RuleFieldNote {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "match field must be payee or note")
	}
	if input.CategoryID != nil {
		if _, err := getCategory(db, *input.CategoryID); err != nil {
			return err
		}
	}
	if input.RecipientID != nil {
		var count int64
		if err := db.Model(&models.Recipient{}).Where("id = ?", *input.RecipientID).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return apperrors.ErrRecipientNotFound
		}
	}
	return nil
}

// CreateRule creates a new rule.
func (s *ruleService) CreateRule(userID string, input RuleInput) (*models.Rule, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if err := validateRuleInput(sess.DB(), input); err != nil {
		return nil, err
	}

	rule := &models.Rule{
		Name:        input.Name,
		MatchField:  input.MatchField,
		Pattern:     input.Pattern,
		Priority:    input.Priority,
		CategoryID:  input.CategoryID,
		RecipientID: input.RecipientID,
		IsActive:    input.IsActive,
	}
	stamp(sess, rule)
	if err := sess.DB().Create(rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityRule, models.SyncOpCreate, rule)
	return rule, nil
}

// GetRules lists rules, highest priority first, paginated.
func (s *ruleService) GetRules(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Rule], error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := sess.DB().Model(&models.Rule{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rules []models.Rule
	if err := base.Scopes(pagination.Paginate(page)).Order("priority desc, name").Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rules, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateRule replaces a rule's definition.
func (s *ruleService) UpdateRule(userID, ruleID string, input RuleInput) (*models.Rule, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	var rule models.Rule
	if err := sess.DB().Where("id = ?", ruleID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRuleNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := validateRuleInput(sess.DB(), input); err != nil {
		return nil, err
	}

	rule.Name = input.Name
	rule.MatchField = input.MatchField
	rule.Pattern = input.Pattern
	rule.Priority = input.Priority
	rule.CategoryID = input.CategoryID
	rule.RecipientID = input.RecipientID
	rule.IsActive = input.IsActive

	stamp(sess, &rule)
	if err := sess.DB().Save(&rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityRule, models.SyncOpUpdate, &rule)
	return &rule, nil
}

// DeleteRule soft-deletes a rule.
func (s *ruleService) DeleteRule(userID, ruleID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}

	var rule models.Rule
	if err := sess.DB().Where("id = ?", ruleID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrRuleNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stamp(sess, &rule)
	if err := sess.DB().Model(&rule).UpdateColumn("revision", rule.Revision).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := sess.DB().Delete(&rule).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityRule, models.SyncOpDelete, &rule)
	return nil
}

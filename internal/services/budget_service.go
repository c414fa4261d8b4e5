package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/tenant"
)

// budgetService handles envelope allocations and the derived envelope fields
// on categories.
type budgetService struct {
	tenants *tenant.Manager
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(tenants *tenant.Manager) BudgetServicer {
	return &budgetService{tenants: tenants}
}

// Allocate sets the budgeted amount for a category and month, replacing any
// existing allocation for that month.
func (s *budgetService) Allocate(userID, categoryID string, year, month int, amount int64) (*models.BudgetAllocation, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	if month < 1 || month > 12 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12")
	}
	if _, err := getCategory(db, categoryID); err != nil {
		return nil, err
	}

	var alloc models.BudgetAllocation
	err = db.Where("category_id = ? AND year = ? AND month = ?", categoryID, year, month).
		First(&alloc).Error
	switch {
	case err == nil:
		alloc.Amount = amount
		stamp(sess, &alloc)
		if err := db.Save(&alloc).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		enqueueSync(db, EntityAllocation, models.SyncOpUpdate, &alloc)
	case errors.Is(err, gorm.ErrRecordNotFound):
		alloc = models.BudgetAllocation{
			CategoryID: categoryID,
			Year:       year,
			Month:      month,
			Amount:     amount,
		}
		stamp(sess, &alloc)
		if err := db.Create(&alloc).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		enqueueSync(db, EntityAllocation, models.SyncOpCreate, &alloc)
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if _, err := s.RefreshEnvelopes(userID, year, month); err != nil {
		return nil, err
	}
	return &alloc, nil
}

// GetAllocations lists the allocations of one month.
func (s *budgetService) GetAllocations(userID string, year, month int) ([]models.BudgetAllocation, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	var allocations []models.BudgetAllocation
	err = sess.DB().Where("year = ? AND month = ?", year, month).
		Order("category_id").Find(&allocations).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return allocations, nil
}

// RefreshEnvelopes recomputes the envelope projection for the given month:
// Budgeted from the month's allocations, Activity from the month's booked
// transactions, Available carried over from all history. The projection is
// written with UpdateColumns so it never advances revisions or produces sync
// traffic; every peer derives the same numbers from the same merged data.
func (s *budgetService) RefreshEnvelopes(userID string, year, month int) ([]models.Category, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var categories []models.Category
	if err := db.Where("is_available_funds = ?", false).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i := range categories {
		c := &categories[i]

		budgeted, err := sumAllocations(db, c.ID, year, month)
		if err != nil {
			return nil, err
		}
		activity, err := sumActivity(db, c.ID, monthStart, monthEnd)
		if err != nil {
			return nil, err
		}
		// Available carries unspent budget forward: everything ever
		// allocated up to this month plus everything ever spent.
		allocated, err := sumAllocationsUntil(db, c.ID, year, month)
		if err != nil {
			return nil, err
		}
		spent, err := sumActivity(db, c.ID, time.Time{}, monthEnd)
		if err != nil {
			return nil, err
		}
		available := allocated + spent

		if c.Budgeted == budgeted && c.Activity == activity && c.Available == available {
			continue
		}
		c.Budgeted = budgeted
		c.Activity = activity
		c.Available = available

		err = db.Model(c).UpdateColumns(map[string]interface{}{
			"budgeted":  budgeted,
			"activity":  activity,
			"available": available,
		}).Error
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return categories, nil
}

func sumAllocations(db *gorm.DB, categoryID string, year, month int) (int64, error) {
	var sum *int64
	err := db.Model(&models.BudgetAllocation{}).
		Where("category_id = ? AND year = ? AND month = ?", categoryID, year, month).
		Select("SUM(amount)").Scan(&sum).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func sumAllocationsUntil(db *gorm.DB, categoryID string, year, month int) (int64, error) {
	var sum *int64
	err := db.Model(&models.BudgetAllocation{}).
		Where("category_id = ? AND (year < ? OR (year = ? AND month <= ?))", categoryID, year, year, month).
		Select("SUM(amount)").Scan(&sum).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// sumActivity follows the value date, like every category-side aggregation.
func sumActivity(db *gorm.DB, categoryID string, from, to time.Time) (int64, error) {
	q := db.Model(&models.Transaction{}).
		Where("category_id = ? AND value_date < ?", categoryID, to)
	if !from.IsZero() {
		q = q.Where("value_date >= ?", from)
	}

	var sum *int64
	if err := q.Select("SUM(amount)").Scan(&sum).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/tenant"
)

// maxOccurrences caps how many dated instances a single window expansion may
// produce, so a daily plan over a decade cannot blow up a forecast request.
const maxOccurrences = 500

// planningService handles recurring planning transactions and their
// expansion into dated occurrences.
type planningService struct {
	tenants *tenant.Manager
}

// NewPlanningService creates a new PlanningServicer.
func NewPlanningService(tenants *tenant.Manager) PlanningServicer {
	return &planningService{tenants: tenants}
}

func validatePlanningInput(db *gorm.DB, input PlanningInput) error {
	if input.Name == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "planning name is required")
	}
	switch input.Recurrence {
	case models.RecurrenceOnce, models.RecurrenceDaily, models.RecurrenceWeekly,
		models.RecurrenceBiweekly, models.RecurrenceMonthly,
		models.RecurrenceQuarterly, models.RecurrenceYearly:
	default:
		return apperrors.ErrInvalidRecurrence
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "end date precedes start date")
	}
	if _, err := getAccount(db, input.AccountID); err != nil {
		return err
	}
	if input.CategoryID != nil {
		if _, err := getCategory(db, *input.CategoryID); err != nil {
			return err
		}
	}
	if input.CounterAccountID != nil {
		if *input.CounterAccountID == input.AccountID {
			return apperrors.ErrSameAccountTransfer
		}
		if _, err := getAccount(db, *input.CounterAccountID); err != nil {
			return err
		}
	}
	return nil
}

// CreatePlanning creates a new planning transaction.
func (s *planningService) CreatePlanning(userID string, input PlanningInput) (*models.PlanningTransaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	if err := validatePlanningInput(sess.DB(), input); err != nil {
		return nil, err
	}

	planning := &models.PlanningTransaction{
		Name:             input.Name,
		AccountID:        input.AccountID,
		CategoryID:       input.CategoryID,
		Type:             input.Type,
		Amount:           input.Amount,
		Recurrence:       input.Recurrence,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		CounterAccountID: input.CounterAccountID,
		RecipientID:      input.RecipientID,
		Note:             input.Note,
		IsActive:         input.IsActive,
	}
	stamp(sess, planning)
	if err := sess.DB().Create(planning).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityPlanning, models.SyncOpCreate, planning)
	invalidatePlanMonths(sess.DB(), planning, planning.StartDate)
	return planning, nil
}

// invalidatePlanMonths drops the cached month projections of every account
// the plan contributes to, starting at the given month.
func invalidatePlanMonths(db *gorm.DB, p *models.PlanningTransaction, from time.Time) {
	invalidateMonthly(db, p.AccountID, from)
	if p.CounterAccountID != nil {
		invalidateMonthly(db, *p.CounterAccountID, from)
	}
}

// GetPlannings lists planning transactions by next due date, paginated.
func (s *planningService) GetPlannings(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PlanningTransaction], error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := sess.DB().Model(&models.PlanningTransaction{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var plannings []models.PlanningTransaction
	if err := base.Scopes(pagination.Paginate(page)).Order("start_date, name").Find(&plannings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(plannings, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetPlanningByID retrieves a planning transaction by ID.
func (s *planningService) GetPlanningByID(userID, planningID string) (*models.PlanningTransaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	return getPlanning(sess.DB(), planningID)
}

func getPlanning(db *gorm.DB, planningID string) (*models.PlanningTransaction, error) {
	var planning models.PlanningTransaction
	if err := db.Where("id = ?", planningID).First(&planning).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPlanningNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &planning, nil
}

// UpdatePlanning replaces a planning transaction's definition.
func (s *planningService) UpdatePlanning(userID, planningID string, input PlanningInput) (*models.PlanningTransaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	planning, err := getPlanning(sess.DB(), planningID)
	if err != nil {
		return nil, err
	}
	if err := validatePlanningInput(sess.DB(), input); err != nil {
		return nil, err
	}

	old := *planning

	planning.Name = input.Name
	planning.AccountID = input.AccountID
	planning.CategoryID = input.CategoryID
	planning.Type = input.Type
	planning.Amount = input.Amount
	planning.Recurrence = input.Recurrence
	planning.StartDate = input.StartDate
	planning.EndDate = input.EndDate
	planning.CounterAccountID = input.CounterAccountID
	planning.RecipientID = input.RecipientID
	planning.Note = input.Note
	planning.IsActive = input.IsActive

	stamp(sess, planning)
	if err := sess.DB().Save(planning).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityPlanning, models.SyncOpUpdate, planning)

	// Both the old and the new definition stop being valid projections from
	// the earlier of the two start months.
	from := old.StartDate
	if planning.StartDate.Before(from) {
		from = planning.StartDate
	}
	invalidatePlanMonths(sess.DB(), &old, from)
	invalidatePlanMonths(sess.DB(), planning, from)
	return planning, nil
}

// DeletePlanning soft-deletes a planning transaction.
func (s *planningService) DeletePlanning(userID, planningID string) error {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return err
	}

	planning, err := getPlanning(sess.DB(), planningID)
	if err != nil {
		return err
	}

	stamp(sess, planning)
	if err := sess.DB().Model(planning).UpdateColumn("revision", planning.Revision).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := sess.DB().Delete(planning).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityPlanning, models.SyncOpDelete, planning)
	invalidatePlanMonths(sess.DB(), planning, planning.StartDate)
	return nil
}

// CalculateNextOccurrences expands a planning transaction into the dated
// instances falling inside [from, to].
func (s *planningService) CalculateNextOccurrences(userID, planningID string, from, to time.Time) ([]Occurrence, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	planning, err := getPlanning(sess.DB(), planningID)
	if err != nil {
		return nil, err
	}
	return expandPlanning(planning, from, to), nil
}

// expandPlanning generates the occurrences of a plan inside [from, to].
// Month-based recurrences anchor on the plan's start day and clamp to the
// last day of shorter months, so a plan starting on the 31st fires on
// Feb 28 and returns to the 31st in March.
func expandPlanning(p *models.PlanningTransaction, from, to time.Time) []Occurrence {
	if !p.IsActive {
		return nil
	}

	var out []Occurrence
	for i := 0; len(out) < maxOccurrences; i++ {
		date, ok := occurrenceAt(p, i)
		if !ok {
			break
		}
		if date.After(to) {
			break
		}
		if p.EndDate != nil && date.After(*p.EndDate) {
			break
		}
		if date.Before(from) {
			continue
		}
		out = append(out, Occurrence{
			Date:        date,
			Description: p.Name,
			Amount:      p.Amount,
			PlanningID:  p.ID,
		})
	}
	return out
}

// occurrenceAt returns the i-th occurrence of the plan, counted from its
// start date.
func occurrenceAt(p *models.PlanningTransaction, i int) (time.Time, bool) {
	start := p.StartDate
	switch p.Recurrence {
	case models.RecurrenceOnce:
		if i > 0 {
			return time.Time{}, false
		}
		return start, true
	case models.RecurrenceDaily:
		return start.AddDate(0, 0, i), true
	case models.RecurrenceWeekly:
		return start.AddDate(0, 0, 7*i), true
	case models.RecurrenceBiweekly:
		return start.AddDate(0, 0, 14*i), true
	case models.RecurrenceMonthly:
		return addMonthsClamped(start, i), true
	case models.RecurrenceQuarterly:
		return addMonthsClamped(start, 3*i), true
	case models.RecurrenceYearly:
		return addMonthsClamped(start, 12*i), true
	}
	return time.Time{}, false
}

// addMonthsClamped adds months to the anchor date, clamping the day-of-month
// to the target month's length instead of overflowing into the next month.
func addMonthsClamped(anchor time.Time, months int) time.Time {
	y, m, d := anchor.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, anchor.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

// ExecutePlanning books the plan as a real transaction on the given date and
// advances the plan to its next occurrence. One-off plans are deactivated
// after execution.
func (s *planningService) ExecutePlanning(userID, planningID string, date time.Time) (*models.Transaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	planning, err := getPlanning(db, planningID)
	if err != nil {
		return nil, err
	}
	if !planning.IsActive {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "planning is inactive")
	}

	txn := &models.Transaction{
		Date:        date,
		ValueDate:   date,
		AccountID:   planning.AccountID,
		CategoryID:  planning.CategoryID,
		Type:        planning.Type,
		Amount:      planning.Amount,
		RecipientID: planning.RecipientID,
		Note:        planning.Note,
	}
	if err := derivePayee(db, txn); err != nil {
		return nil, err
	}

	var counter *models.Transaction
	if planning.CounterAccountID != nil {
		txn.Type = models.TransactionTypeAccountTransfer
		counter = &models.Transaction{
			Date:      date,
			ValueDate: date,
			AccountID: *planning.CounterAccountID,
			Type:      models.TransactionTypeAccountTransfer,
			Amount:    -planning.Amount,
			Note:      planning.Note,
		}
	}

	stamp(sess, txn)
	if counter != nil {
		stamp(sess, counter)
	}
	if err := s.advance(sess, planning, date); err != nil {
		return nil, err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			return err
		}
		if counter != nil {
			if err := tx.Create(counter).Error; err != nil {
				return err
			}
			if err := tx.Model(txn).UpdateColumn("counter_transaction_id", counter.ID).Error; err != nil {
				return err
			}
			if err := tx.Model(counter).UpdateColumn("counter_transaction_id", txn.ID).Error; err != nil {
				return err
			}
			txn.CounterTransactionID = &counter.ID
			counter.CounterTransactionID = &txn.ID
		}
		return tx.Save(planning).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	enqueueSync(db, EntityTransaction, models.SyncOpCreate, txn)
	if counter != nil {
		enqueueSync(db, EntityTransaction, models.SyncOpCreate, counter)
	}
	enqueueSync(db, EntityPlanning, models.SyncOpUpdate, planning)

	if err := recomputeAccount(db, txn.AccountID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	invalidateMonthly(db, txn.AccountID, date)
	if counter != nil {
		if err := recomputeAccount(db, counter.AccountID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		invalidateMonthly(db, counter.AccountID, date)
	}
	return txn, nil
}

// SkipPlanning advances the plan past its next occurrence without booking a
// transaction.
func (s *planningService) SkipPlanning(userID, planningID string) (*models.PlanningTransaction, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}

	planning, err := getPlanning(sess.DB(), planningID)
	if err != nil {
		return nil, err
	}
	if !planning.IsActive {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "planning is inactive")
	}

	skipped := planning.StartDate
	if err := s.advance(sess, planning, planning.StartDate); err != nil {
		return nil, err
	}
	if err := sess.DB().Save(planning).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	enqueueSync(sess.DB(), EntityPlanning, models.SyncOpUpdate, planning)
	invalidatePlanMonths(sess.DB(), planning, skipped)
	return planning, nil
}

// advance moves the plan's start date to the first occurrence strictly after
// the given date, deactivating the plan when none remains.
func (s *planningService) advance(sess *tenant.Session, p *models.PlanningTransaction, after time.Time) error {
	stamp(sess, p)

	if p.Recurrence == models.RecurrenceOnce {
		p.IsActive = false
		return nil
	}
	for i := 1; ; i++ {
		next, ok := occurrenceAt(p, i)
		if !ok {
			return apperrors.ErrInvalidRecurrence
		}
		if !next.After(after) {
			continue
		}
		if p.EndDate != nil && next.After(*p.EndDate) {
			p.IsActive = false
			return nil
		}
		p.StartDate = next
		return nil
	}
}

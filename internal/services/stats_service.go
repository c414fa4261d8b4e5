package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/tenant"
)

// statsService aggregates balances and forecasts over the booked history and
// the planning templates.
type statsService struct {
	tenants *tenant.Manager
	nowFn   func() time.Time
}

// NewStatsService creates a new StatsServicer.
func NewStatsService(tenants *tenant.Manager) StatsServicer {
	return &statsService{tenants: tenants, nowFn: time.Now}
}

// ActualBalance sums the booked transactions of an account or category up to
// and including the given date. Account balances follow the booking date;
// category balances follow the value date, matching the category view.
func (s *statsService) ActualBalance(userID string, kind BalanceKind, id string, date time.Time) (int64, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return 0, err
	}
	return actualBalance(sess.DB(), kind, id, date)
}

func actualBalance(db *gorm.DB, kind BalanceKind, id string, date time.Time) (int64, error) {
	q := db.Model(&models.Transaction{})
	switch kind {
	case BalanceKindAccount:
		q = q.Where("account_id = ? AND date <= ?", id, endOfDay(date))
	case BalanceKindCategory:
		q = q.Where("category_id = ? AND value_date <= ?", id, endOfDay(date))
	default:
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown balance kind")
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

// ProjectedBalance extends the actual balance with the planned occurrences
// falling between today and the given date. For past dates projection and
// actual coincide.
func (s *statsService) ProjectedBalance(userID string, kind BalanceKind, id string, date time.Time) (int64, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return 0, err
	}

	actual, err := actualBalance(sess.DB(), kind, id, date)
	if err != nil {
		return 0, err
	}

	now := s.nowFn()
	if !date.After(now) {
		return actual, nil
	}

	forecasts, err := plannedAmounts(sess.DB(), kind, id, now.AddDate(0, 0, 1), endOfDay(date))
	if err != nil {
		return 0, err
	}
	for _, f := range forecasts {
		actual += f.Amount
	}
	return actual, nil
}

// plannedAmounts expands every active plan touching the subject into the
// occurrences inside [from, to]. Transfer templates contribute to both legs'
// accounts with opposite signs.
func plannedAmounts(db *gorm.DB, kind BalanceKind, id string, from, to time.Time) ([]Occurrence, error) {
	var plannings []models.PlanningTransaction
	if err := db.Where("is_active = ?", true).Find(&plannings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var out []Occurrence
	for i := range plannings {
		p := &plannings[i]

		sign := int64(0)
		switch kind {
		case BalanceKindAccount:
			if p.AccountID == id {
				sign = 1
			} else if p.CounterAccountID != nil && *p.CounterAccountID == id {
				sign = -1
			}
		case BalanceKindCategory:
			if p.CategoryID != nil && *p.CategoryID == id {
				sign = 1
			}
		}
		if sign == 0 {
			continue
		}

		for _, occ := range expandPlanning(p, from, to) {
			occ.Amount *= sign
			out = append(out, occ)
		}
	}
	return out, nil
}

// MonthlySeries returns one point per month in [from, to] with the month-end
// actual balance, the projected balance and the forecast occurrences of that
// month. Account months are served from the monthly balance cache where
// possible; computed months are written back.
func (s *statsService) MonthlySeries(userID string, kind BalanceKind, id string, from, to time.Time) ([]MonthlyPoint, error) {
	sess, err := s.tenants.Session(userID)
	if err != nil {
		return nil, err
	}
	db := sess.DB()

	now := s.nowFn()
	var points []MonthlyPoint
	for cursor := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC); !cursor.After(to); cursor = cursor.AddDate(0, 1, 0) {
		year, month := cursor.Year(), int(cursor.Month())
		monthEnd := cursor.AddDate(0, 1, -1)

		forecasts, err := plannedAmounts(db, kind, id, maxTime(cursor, now.AddDate(0, 0, 1)), endOfDay(monthEnd))
		if err != nil {
			return nil, err
		}

		if kind == BalanceKindAccount {
			var cached models.MonthlyBalance
			err := db.Where("account_id = ? AND year = ? AND month = ?", id, year, month).
				First(&cached).Error
			if err == nil {
				points = append(points, MonthlyPoint{
					Year: year, Month: month,
					Actual:    cached.EndBalance,
					Projected: cached.ProjectedBalance,
					Forecasts: forecasts,
				})
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		actual, err := actualBalance(db, kind, id, monthEnd)
		if err != nil {
			return nil, err
		}
		projected := actual
		for _, f := range forecasts {
			projected += f.Amount
		}

		if kind == BalanceKindAccount {
			// Best-effort write-back; a failed insert only costs a recompute.
			db.Create(&models.MonthlyBalance{
				AccountID:        id,
				Year:             year,
				Month:            month,
				EndBalance:       actual,
				ProjectedBalance: projected,
				ComputedAt:       now,
			})
		}

		points = append(points, MonthlyPoint{
			Year: year, Month: month,
			Actual:    actual,
			Projected: projected,
			Forecasts: forecasts,
		})
	}
	return points, nil
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

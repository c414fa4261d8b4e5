package services

import (
	"testing"
	"time"

	"finwave/internal/models"
	"finwave/internal/testutil"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateNextOccurrences(t *testing.T) {
	tenants, sess := testutil.SetupTenant(t, "user-1")
	svc := NewPlanningService(tenants)

	group := testutil.CreateTestAccountGroup(t, sess.DB())
	account := testutil.CreateTestAccount(t, sess.DB(), group.ID)

	newPlan := func(recurrence models.Recurrence, start time.Time) *models.PlanningTransaction {
		plan, err := svc.CreatePlanning("user-1", PlanningInput{
			Name:       "Miete",
			AccountID:  account.ID,
			Type:       models.TransactionTypeExpense,
			Amount:     -80000,
			Recurrence: recurrence,
			StartDate:  start,
			IsActive:   true,
		})
		testutil.AssertNoError(t, err)
		return plan
	}

	t.Run("monthly_clamps_to_month_end", func(t *testing.T) {
		plan := newPlan(models.RecurrenceMonthly, date(2026, time.January, 31))

		occurrences, err := svc.CalculateNextOccurrences("user-1", plan.ID,
			date(2026, time.January, 1), date(2026, time.April, 30))
		testutil.AssertNoError(t, err)

		want := []time.Time{
			date(2026, time.January, 31),
			date(2026, time.February, 28),
			date(2026, time.March, 31),
			date(2026, time.April, 30),
		}
		if len(occurrences) != len(want) {
			t.Fatalf("expected %d occurrences, got %d", len(want), len(occurrences))
		}
		for i, occ := range occurrences {
			if !occ.Date.Equal(want[i]) {
				t.Errorf("occurrence %d: expected %s, got %s", i, want[i].Format("2006-01-02"), occ.Date.Format("2006-01-02"))
			}
		}
	})

	t.Run("clamped_month_returns_to_anchor_day", func(t *testing.T) {
		plan := newPlan(models.RecurrenceMonthly, date(2024, time.January, 30))

		// 2024 is a leap year: Feb clamps to 29, March returns to 30.
		occurrences, err := svc.CalculateNextOccurrences("user-1", plan.ID,
			date(2024, time.February, 1), date(2024, time.March, 31))
		testutil.AssertNoError(t, err)

		if len(occurrences) != 2 {
			t.Fatalf("expected 2 occurrences, got %d", len(occurrences))
		}
		if occurrences[0].Date.Day() != 29 {
			t.Errorf("expected leap-February clamp to 29, got %d", occurrences[0].Date.Day())
		}
		if occurrences[1].Date.Day() != 30 {
			t.Errorf("expected March to return to the anchor day 30, got %d", occurrences[1].Date.Day())
		}
	})

	t.Run("biweekly", func(t *testing.T) {
		plan := newPlan(models.RecurrenceBiweekly, date(2026, time.March, 2))

		occurrences, err := svc.CalculateNextOccurrences("user-1", plan.ID,
			date(2026, time.March, 1), date(2026, time.March, 31))
		testutil.AssertNoError(t, err)

		if len(occurrences) != 3 {
			t.Fatalf("expected 3 occurrences (2nd, 16th, 30th), got %d", len(occurrences))
		}
	})

	t.Run("once_outside_window", func(t *testing.T) {
		plan := newPlan(models.RecurrenceOnce, date(2026, time.June, 15))

		occurrences, err := svc.CalculateNextOccurrences("user-1", plan.ID,
			date(2026, time.January, 1), date(2026, time.May, 31))
		testutil.AssertNoError(t, err)
		if len(occurrences) != 0 {
			t.Errorf("expected no occurrences before the plan starts, got %d", len(occurrences))
		}
	})

	t.Run("end_date_bounds_expansion", func(t *testing.T) {
		end := date(2026, time.February, 28)
		plan, err := svc.CreatePlanning("user-1", PlanningInput{
			Name:       "Abo",
			AccountID:  account.ID,
			Type:       models.TransactionTypeExpense,
			Amount:     -999,
			Recurrence: models.RecurrenceMonthly,
			StartDate:  date(2026, time.January, 15),
			EndDate:    &end,
			IsActive:   true,
		})
		testutil.AssertNoError(t, err)

		occurrences, err := svc.CalculateNextOccurrences("user-1", plan.ID,
			date(2026, time.January, 1), date(2026, time.December, 31))
		testutil.AssertNoError(t, err)
		if len(occurrences) != 2 {
			t.Errorf("expected expansion to stop at the end date, got %d occurrences", len(occurrences))
		}
	})
}

func TestExecutePlanning(t *testing.T) {
	t.Run("books_transaction_and_advances", func(t *testing.T) {
		tenants, sess := testutil.SetupTenant(t, "user-1")
		svc := NewPlanningService(tenants)

		group := testutil.CreateTestAccountGroup(t, sess.DB())
		account := testutil.CreateTestAccount(t, sess.DB(), group.ID)

		plan, err := svc.CreatePlanning("user-1", PlanningInput{
			Name:       "Miete",
			AccountID:  account.ID,
			Type:       models.TransactionTypeExpense,
			Amount:     -80000,
			Recurrence: models.RecurrenceMonthly,
			StartDate:  date(2026, time.March, 1),
			IsActive:   true,
		})
		testutil.AssertNoError(t, err)

		txn, err := svc.ExecutePlanning("user-1", plan.ID, date(2026, time.March, 1))
		testutil.AssertNoError(t, err)

		if txn.Amount != -80000 {
			t.Errorf("expected booked amount -80000, got %d", txn.Amount)
		}

		var reloadedAccount models.Account
		sess.DB().First(&reloadedAccount, "id = ?", account.ID)
		if reloadedAccount.Balance != -80000 {
			t.Errorf("expected account balance -80000, got %d", reloadedAccount.Balance)
		}

		advanced, err := svc.GetPlanningByID("user-1", plan.ID)
		testutil.AssertNoError(t, err)
		if !advanced.StartDate.Equal(date(2026, time.April, 1)) {
			t.Errorf("expected plan advanced to April 1, got %s", advanced.StartDate.Format("2006-01-02"))
		}
	})

	t.Run("transfer_template_books_pair", func(t *testing.T) {
		tenants, sess := testutil.SetupTenant(t, "user-1")
		svc := NewPlanningService(tenants)

		group := testutil.CreateTestAccountGroup(t, sess.DB())
		from := testutil.CreateTestAccount(t, sess.DB(), group.ID)
		to := testutil.CreateTestAccount(t, sess.DB(), group.ID)

		plan, err := svc.CreatePlanning("user-1", PlanningInput{
			Name:             "Sparrate",
			AccountID:        from.ID,
			Type:             models.TransactionTypeAccountTransfer,
			Amount:           -20000,
			Recurrence:       models.RecurrenceMonthly,
			StartDate:        date(2026, time.March, 1),
			CounterAccountID: &to.ID,
			IsActive:         true,
		})
		testutil.AssertNoError(t, err)

		txn, err := svc.ExecutePlanning("user-1", plan.ID, date(2026, time.March, 1))
		testutil.AssertNoError(t, err)
		if txn.CounterTransactionID == nil {
			t.Fatal("expected a linked counter transaction")
		}

		var counter models.Transaction
		testutil.AssertNoError(t, sess.DB().First(&counter, "id = ?", *txn.CounterTransactionID).Error)
		if counter.Amount != 20000 {
			t.Errorf("expected counter leg 20000, got %d", counter.Amount)
		}
	})

	t.Run("once_plan_deactivates", func(t *testing.T) {
		tenants, sess := testutil.SetupTenant(t, "user-1")
		svc := NewPlanningService(tenants)

		group := testutil.CreateTestAccountGroup(t, sess.DB())
		account := testutil.CreateTestAccount(t, sess.DB(), group.ID)

		plan, err := svc.CreatePlanning("user-1", PlanningInput{
			Name:       "Einmalzahlung",
			AccountID:  account.ID,
			Type:       models.TransactionTypeExpense,
			Amount:     -5000,
			Recurrence: models.RecurrenceOnce,
			StartDate:  date(2026, time.March, 1),
			IsActive:   true,
		})
		testutil.AssertNoError(t, err)

		_, err = svc.ExecutePlanning("user-1", plan.ID, date(2026, time.March, 1))
		testutil.AssertNoError(t, err)

		done, err := svc.GetPlanningByID("user-1", plan.ID)
		testutil.AssertNoError(t, err)
		if done.IsActive {
			t.Error("one-off plan must deactivate after execution")
		}
	})
}

func TestSkipPlanning(t *testing.T) {
	tenants, sess := testutil.SetupTenant(t, "user-1")
	svc := NewPlanningService(tenants)

	group := testutil.CreateTestAccountGroup(t, sess.DB())
	account := testutil.CreateTestAccount(t, sess.DB(), group.ID)

	plan, err := svc.CreatePlanning("user-1", PlanningInput{
		Name:       "Miete",
		AccountID:  account.ID,
		Type:       models.TransactionTypeExpense,
		Amount:     -80000,
		Recurrence: models.RecurrenceMonthly,
		StartDate:  date(2026, time.March, 31),
		IsActive:   true,
	})
	testutil.AssertNoError(t, err)

	skipped, err := svc.SkipPlanning("user-1", plan.ID)
	testutil.AssertNoError(t, err)

	if !skipped.StartDate.Equal(date(2026, time.April, 30)) {
		t.Errorf("expected skip to the clamped April 30, got %s", skipped.StartDate.Format("2006-01-02"))
	}

	// Nothing was booked.
	var count int64
	sess.DB().Model(&models.Transaction{}).Count(&count)
	if count != 0 {
		t.Errorf("skip must not book transactions, found %d", count)
	}
}

func TestPlanningMutationRefreshesProjections(t *testing.T) {
	tenants, sess := testutil.SetupTenant(t, "user-1")
	plans := NewPlanningService(tenants)
	now := date(2026, time.March, 15)
	stats := &statsService{tenants: tenants, nowFn: func() time.Time { return now }}

	group := testutil.CreateTestAccountGroup(t, sess.DB())
	account := testutil.CreateTestAccount(t, sess.DB(), group.ID)

	input := PlanningInput{
		Name:       "Miete",
		AccountID:  account.ID,
		Type:       models.TransactionTypeExpense,
		Amount:     -80000,
		Recurrence: models.RecurrenceMonthly,
		StartDate:  date(2026, time.April, 1),
		IsActive:   true,
	}
	plan, err := plans.CreatePlanning("user-1", input)
	testutil.AssertNoError(t, err)

	aprilProjection := func() int64 {
		t.Helper()
		points, err := stats.MonthlySeries("user-1", BalanceKindAccount, account.ID,
			date(2026, time.April, 1), date(2026, time.April, 30))
		testutil.AssertNoError(t, err)
		if len(points) != 1 {
			t.Fatalf("expected 1 monthly point, got %d", len(points))
		}
		return points[0].Projected
	}

	// Prime the monthly balance cache.
	if got := aprilProjection(); got != -80000 {
		t.Fatalf("expected projected -80000 before the update, got %d", got)
	}

	input.Amount = -50000
	_, err = plans.UpdatePlanning("user-1", plan.ID, input)
	testutil.AssertNoError(t, err)

	if got := aprilProjection(); got != -50000 {
		t.Errorf("expected the April projection to follow the updated amount, got %d", got)
	}

	testutil.AssertNoError(t, plans.DeletePlanning("user-1", plan.ID))

	if got := aprilProjection(); got != 0 {
		t.Errorf("expected no projection after deleting the plan, got %d", got)
	}
}

package services

import (
	"testing"

	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/testutil"
)

func TestCreateAccount(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tenants, sess := testutil.SetupTenant(t, "user-1")
		svc := NewAccountService(tenants)

		group := testutil.CreateTestAccountGroup(t, sess.DB())

		account, err := svc.CreateAccount("user-1", "Girokonto", group.ID, "Daily spending", "DE02120300000000202051")
		testutil.AssertNoError(t, err)

		if account.ID == "" {
			t.Fatal("expected account ID to be set")
		}
		if account.Name != "Girokonto" {
			t.Errorf("expected name Girokonto, got %s", account.Name)
		}
		if account.Revision == "" {
			t.Error("expected revision to be stamped")
		}
		if !account.IsActive {
			t.Error("expected account to be active")
		}
	})

	t.Run("queues_sync_entry", func(t *testing.T) {
		tenants, sess := testutil.SetupTenant(t, "user-1")
		svc := NewAccountService(tenants)

		group := testutil.CreateTestAccountGroup(t, sess.DB())
		account, err := svc.CreateAccount("user-1", "Sparkonto", group.ID, "", "")
		testutil.AssertNoError(t, err)

		var entry models.SyncQueueEntry
		err = sess.DB().Where("entity_id = ?", account.ID).First(&entry).Error
		testutil.AssertNoError(t, err)
		if entry.EntityType != EntityAccount {
			t.Errorf("expected entity type %s, got %s", EntityAccount, entry.EntityType)
		}
		if entry.Operation != models.SyncOpCreate {
			t.Errorf("expected CREATE, got %s", entry.Operation)
		}
		if entry.Status != models.SyncStatusPending {
			t.Errorf("expected pending, got %s", entry.Status)
		}
		if entry.Revision != account.Revision {
			t.Errorf("expected queue entry to carry the entity revision")
		}
	})

	t.Run("unknown_group", func(t *testing.T) {
		tenants, _ := testutil.SetupTenant(t, "user-1")
		svc := NewAccountService(tenants)

		_, err := svc.CreateAccount("user-1", "Orphan", "no-such-group", "", "")
		testutil.AssertAppError(t, err, "ACCOUNT_GROUP_NOT_FOUND")
	})

	t.Run("no_active_tenant", func(t *testing.T) {
		tenants, _ := testutil.SetupTenant(t, "user-1")
		svc := NewAccountService(tenants)

		_, err := svc.CreateAccount("other-user", "X", "g", "", "")
		testutil.AssertAppError(t, err, "NO_ACTIVE_TENANT")
	})
}

func TestGetAccounts(t *testing.T) {
	tenants, sess := testutil.SetupTenant(t, "user-1")
	svc := NewAccountService(tenants)

	group := testutil.CreateTestAccountGroup(t, sess.DB())
	for i := 0; i < 3; i++ {
		testutil.CreateTestAccount(t, sess.DB(), group.ID)
	}

	resp, err := svc.GetAccounts("user-1", pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)

	if resp.TotalItems != 3 {
		t.Errorf("expected 3 total accounts, got %d", resp.TotalItems)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 accounts on first page, got %d", len(resp.Data))
	}
}

func TestUpdateAccount(t *testing.T) {
	tenants, sess := testutil.SetupTenant(t, "user-1")
	svc := NewAccountService(tenants)

	group := testutil.CreateTestAccountGroup(t, sess.DB())
	account := testutil.CreateTestAccount(t, sess.DB(), group.ID)

	name := "Renamed"
	updated, err := svc.UpdateAccount("user-1", account.ID, AccountUpdate{Name: &name})
	testutil.AssertNoError(t, err)

	if updated.Name != "Renamed" {
		t.Errorf("expected renamed account, got %s", updated.Name)
	}
	if updated.Revision == account.Revision {
		t.Error("expected update to advance the revision")
	}
}

func TestDeleteAccount(t *testing.T) {
	t.Run("tombstones_account_and_transactions", func(t *testing.T) {
		tenants, sess := testutil.SetupTenant(t, "user-1")
		svc := NewAccountService(tenants)

		group := testutil.CreateTestAccountGroup(t, sess.DB())
		account := testutil.CreateTestAccount(t, sess.DB(), group.ID)
		testutil.CreateTestTransaction(t, sess.DB(), account.ID, models.TransactionTypeExpense, -500)

		testutil.AssertNoError(t, svc.DeleteAccount("user-1", account.ID))

		_, err := svc.GetAccountByID("user-1", account.ID)
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")

		// The rows survive as tombstones, they are not erased.
		var count int64
		sess.DB().Unscoped().Model(&models.Account{}).Where("id = ?", account.ID).Count(&count)
		if count != 1 {
			t.Error("expected account tombstone to remain")
		}
		sess.DB().Unscoped().Model(&models.Transaction{}).
			Where("account_id = ? AND deleted_at IS NOT NULL", account.ID).Count(&count)
		if count != 1 {
			t.Error("expected transaction tombstone to remain")
		}
	})
}

func TestDeleteAccountGroup(t *testing.T) {
	t.Run("rejected_while_in_use", func(t *testing.T) {
		tenants, sess := testutil.SetupTenant(t, "user-1")
		svc := NewAccountService(tenants)

		group := testutil.CreateTestAccountGroup(t, sess.DB())
		testutil.CreateTestAccount(t, sess.DB(), group.ID)

		err := svc.DeleteAccountGroup("user-1", group.ID)
		testutil.AssertAppError(t, err, "GROUP_IN_USE")
	})

	t.Run("empty_group", func(t *testing.T) {
		tenants, sess := testutil.SetupTenant(t, "user-1")
		svc := NewAccountService(tenants)

		group := testutil.CreateTestAccountGroup(t, sess.DB())
		testutil.AssertNoError(t, svc.DeleteAccountGroup("user-1", group.ID))

		_, err := svc.GetAccountGroups("user-1")
		testutil.AssertNoError(t, err)
	})
}

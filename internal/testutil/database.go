// Package testutil provides test helpers for setting up in-memory databases,
// tenant sessions, fixtures, and assertions.
package testutil

import (
	"testing"

	"finwave/internal/models"
	"finwave/internal/tenant"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// centralModels is the list of registry models auto-migrated in tests.
var centralModels = []interface{}{
	&models.User{},
	&models.Tenant{},
	&models.UserSettings{},
}

// SetupTestDB creates an in-memory SQLite database with the central registry
// models migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(centralModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// TeardownTestDB closes the underlying database connection.
func TeardownTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Errorf("failed to get underlying DB for teardown: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

// SetupTenant creates a tenant manager over a temp directory and activates
// one tenant session for the given user. All sessions are closed on cleanup.
func SetupTenant(t *testing.T, userID string, hooks ...tenant.OpenHook) (*tenant.Manager, *tenant.Session) {
	t.Helper()

	manager, err := tenant.NewManager(t.TempDir(), hooks...)
	if err != nil {
		t.Fatalf("failed to create tenant manager: %v", err)
	}
	t.Cleanup(manager.CloseAll)

	sess, err := manager.Activate(userID, "tenant-"+userID)
	if err != nil {
		t.Fatalf("failed to activate test tenant: %v", err)
	}
	return manager, sess
}

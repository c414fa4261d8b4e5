package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"finwave/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccountGroup creates an account group in a tenant database.
func CreateTestAccountGroup(t *testing.T, db *gorm.DB) *models.AccountGroup {
	t.Helper()

	group := &models.AccountGroup{
		Name: fmt.Sprintf("Test Account Group %d", nextID()),
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test account group: %v", err)
	}
	return group
}

// CreateTestAccount creates an account inside the given group.
func CreateTestAccount(t *testing.T, db *gorm.DB, groupID string) *models.Account {
	t.Helper()

	account := &models.Account{
		Name:           fmt.Sprintf("Test Account %d", nextID()),
		AccountGroupID: groupID,
		IsActive:       true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategoryGroup creates a category group in a tenant database.
func CreateTestCategoryGroup(t *testing.T, db *gorm.DB, isIncomeGroup bool) *models.CategoryGroup {
	t.Helper()

	group := &models.CategoryGroup{
		Name:          fmt.Sprintf("Test Category Group %d", nextID()),
		IsIncomeGroup: isIncomeGroup,
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test category group: %v", err)
	}
	return group
}

// CreateTestCategory creates a category inside the given group, deriving the
// income flag from the group.
func CreateTestCategory(t *testing.T, db *gorm.DB, group *models.CategoryGroup) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:             fmt.Sprintf("Test Category %d", nextID()),
		CategoryGroupID:  group.ID,
		IsIncomeCategory: group.IsIncomeGroup,
		IsActive:         true,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a transaction of the given type and amount
// (in cents, signed).
func CreateTestTransaction(t *testing.T, db *gorm.DB, accountID string, txType models.TransactionType, amount int64) *models.Transaction {
	t.Helper()

	now := time.Now()
	tx := &models.Transaction{
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Date:      now,
		ValueDate: now,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestRecipient creates a recipient.
func CreateTestRecipient(t *testing.T, db *gorm.DB, name string) *models.Recipient {
	t.Helper()

	recipient := &models.Recipient{Name: name}
	if err := db.Create(recipient).Error; err != nil {
		t.Fatalf("failed to create test recipient: %v", err)
	}
	return recipient
}

// CreateTestTag creates a tag.
func CreateTestTag(t *testing.T, db *gorm.DB, name string) *models.Tag {
	t.Helper()

	tag := &models.Tag{Name: name}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}
	return tag
}

package services

import (
	"testing"
	"time"

	"finwave/internal/testutil"

	"golang.org/x/crypto/bcrypt"
)

func TestCreateUser(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		user, err := svc.CreateUser("alice@example.com", "password123", "Alice", "Smith")
		testutil.AssertNoError(t, err)

		if user.ID == "" {
			t.Fatal("expected user ID to be set")
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected email alice@example.com, got %s", user.Email)
		}
		if user.FirstName != "Alice" {
			t.Errorf("expected first name Alice, got %s", user.FirstName)
		}
		if !user.IsActive {
			t.Error("expected user to be active")
		}
	})

	t.Run("lowercases_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		user, err := svc.CreateUser("Bob@Example.COM", "password123", "", "")
		testutil.AssertNoError(t, err)
		if user.Email != "bob@example.com" {
			t.Errorf("expected lowercased email, got %s", user.Email)
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.CreateUser("dup@example.com", "password123", "", "")
		testutil.AssertNoError(t, err)

		_, err = svc.CreateUser("dup@example.com", "password456", "", "")
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("missing_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.CreateUser("", "password123", "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = svc.CreateUser("x@example.com", "", "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("password_is_hashed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		user, err := svc.CreateUser("hash@example.com", "secret-password", "", "")
		testutil.AssertNoError(t, err)

		if user.Password == "secret-password" {
			t.Error("password must not be stored in plaintext")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret-password")); err != nil {
			t.Errorf("stored hash should verify against the password: %v", err)
		}
	})
}

func TestGetUserByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		created := testutil.CreateTestUserWithEmail(t, db, "find@example.com")

		user, err := svc.GetUserByEmail("find@example.com")
		testutil.AssertNoError(t, err)
		if user.ID != created.ID {
			t.Errorf("expected user %s, got %s", created.ID, user.ID)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.GetUserByEmail("missing@example.com")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestVerifyPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(db)

	user := testutil.CreateTestUser(t, db)

	t.Run("correct", func(t *testing.T) {
		if !svc.VerifyPassword(user, "password123") {
			t.Error("expected correct password to verify")
		}
		if user.LastLoginAt == nil {
			t.Error("expected last login to be recorded")
		} else if time.Since(*user.LastLoginAt) > time.Minute {
			t.Error("expected last login to be recent")
		}
	})

	t.Run("wrong", func(t *testing.T) {
		if svc.VerifyPassword(user, "wrong-password") {
			t.Error("expected wrong password to fail")
		}
	})
}

func TestRefreshTokenHash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(db)

	user := testutil.CreateTestUser(t, db)

	testutil.AssertNoError(t, svc.StoreRefreshTokenHash(user.ID, "abc123"))

	hash, err := svc.GetRefreshTokenHash(user.ID)
	testutil.AssertNoError(t, err)
	if hash != "abc123" {
		t.Errorf("expected stored hash, got %q", hash)
	}
}

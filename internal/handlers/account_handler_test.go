package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/services"
)

// --- mock account service ---

type mockAccountService struct {
	createAccountGroupFn func(userID, name string, sortOrder int) (*models.AccountGroup, error)
	getAccountGroupsFn   func(userID string) ([]models.AccountGroup, error)
	updateAccountGroupFn func(userID, groupID string, name *string, sortOrder *int) (*models.AccountGroup, error)
	deleteAccountGroupFn func(userID, groupID string) error
	createAccountFn      func(userID, name, groupID, description, iban string) (*models.Account, error)
	getAccountsFn        func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	getAccountByIDFn     func(userID, accountID string) (*models.Account, error)
	updateAccountFn      func(userID, accountID string, fields services.AccountUpdate) (*models.Account, error)
	deleteAccountFn      func(userID, accountID string) error
}

func (m *mockAccountService) CreateAccountGroup(userID, name string, sortOrder int) (*models.AccountGroup, error) {
	if m.createAccountGroupFn != nil {
		return m.createAccountGroupFn(userID, name, sortOrder)
	}
	return &models.AccountGroup{}, nil
}

func (m *mockAccountService) GetAccountGroups(userID string) ([]models.AccountGroup, error) {
	if m.getAccountGroupsFn != nil {
		return m.getAccountGroupsFn(userID)
	}
	return []models.AccountGroup{}, nil
}

func (m *mockAccountService) UpdateAccountGroup(userID, groupID string, name *string, sortOrder *int) (*models.AccountGroup, error) {
	if m.updateAccountGroupFn != nil {
		return m.updateAccountGroupFn(userID, groupID, name, sortOrder)
	}
	return &models.AccountGroup{}, nil
}

func (m *mockAccountService) DeleteAccountGroup(userID, groupID string) error {
	if m.deleteAccountGroupFn != nil {
		return m.deleteAccountGroupFn(userID, groupID)
	}
	return nil
}

func (m *mockAccountService) CreateAccount(userID, name, groupID, description, iban string) (*models.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(userID, name, groupID, description, iban)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) GetAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	if m.getAccountsFn != nil {
		return m.getAccountsFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Account{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockAccountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	if m.getAccountByIDFn != nil {
		return m.getAccountByIDFn(userID, accountID)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) UpdateAccount(userID, accountID string, fields services.AccountUpdate) (*models.Account, error) {
	if m.updateAccountFn != nil {
		return m.updateAccountFn(userID, accountID, fields)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) DeleteAccount(userID, accountID string) error {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(userID, accountID)
	}
	return nil
}

// verify interface compliance
var _ services.AccountServicer = (*mockAccountService)(nil)

const testGroupID = "7c9a4c1e-9a65-4f2e-9d57-0f6b9c2d3a41"

func setupAccountRouter(handler *AccountHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID("user-1"))
	auth.POST("/account-groups", handler.CreateAccountGroup)
	auth.GET("/account-groups", handler.GetAccountGroups)
	auth.PUT("/account-groups/:id", handler.UpdateAccountGroup)
	auth.DELETE("/account-groups/:id", handler.DeleteAccountGroup)
	auth.POST("/accounts", handler.CreateAccount)
	auth.GET("/accounts", handler.GetAccounts)
	auth.GET("/accounts/:id", handler.GetAccount)
	auth.PUT("/accounts/:id", handler.UpdateAccount)
	auth.DELETE("/accounts/:id", handler.DeleteAccount)
	return r
}

func TestAccountHandler_CreateAccount(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		acctSvc := &mockAccountService{
			createAccountFn: func(userID, name, groupID, description, iban string) (*models.Account, error) {
				return &models.Account{
					Base:           models.Base{ID: "acc-1"},
					Name:           name,
					AccountGroupID: groupID,
					IBAN:           iban,
					IsActive:       true,
				}, nil
			},
		}
		handler := NewAccountHandler(acctSvc)
		r := setupAccountRouter(handler)

		rec := doRequest(r, "POST", "/accounts",
			`{"name":"Girokonto","group_id":"`+testGroupID+`","iban":"DE02120300000000202051"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		acct := result["account"].(map[string]interface{})
		if acct["name"] != "Girokonto" {
			t.Errorf("expected Girokonto, got %v", acct["name"])
		}
	})

	t.Run("returns 400 on missing name", func(t *testing.T) {
		handler := NewAccountHandler(&mockAccountService{})
		r := setupAccountRouter(handler)

		rec := doRequest(r, "POST", "/accounts", `{"group_id":"`+testGroupID+`"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on malformed iban", func(t *testing.T) {
		handler := NewAccountHandler(&mockAccountService{})
		r := setupAccountRouter(handler)

		rec := doRequest(r, "POST", "/accounts",
			`{"name":"Test","group_id":"`+testGroupID+`","iban":"not-an-iban"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		handler := NewAccountHandler(&mockAccountService{})
		r := gin.New()
		r.POST("/accounts", handler.CreateAccount)

		rec := doRequest(r, "POST", "/accounts", `{"name":"Test","group_id":"`+testGroupID+`"}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAccountHandler_GetAccounts(t *testing.T) {
	t.Run("returns 200 with paginated accounts", func(t *testing.T) {
		acctSvc := &mockAccountService{
			getAccountsFn: func(_ string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
				if page.Page != 2 || page.PageSize != 5 {
					t.Errorf("expected page 2 size 5, got %d/%d", page.Page, page.PageSize)
				}
				resp := pagination.NewPageResponse([]models.Account{
					{Base: models.Base{ID: "acc-1"}, Name: "Girokonto"},
				}, 2, 5, 6)
				return &resp, nil
			},
		}
		handler := NewAccountHandler(acctSvc)
		r := setupAccountRouter(handler)

		rec := doRequest(r, "GET", "/accounts?page=2&page_size=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["total_items"] != float64(6) {
			t.Errorf("expected total_items 6, got %v", result["total_items"])
		}
	})
}

func TestAccountHandler_UpdateAccount(t *testing.T) {
	t.Run("passes optional fields through", func(t *testing.T) {
		acctSvc := &mockAccountService{
			updateAccountFn: func(_, accountID string, fields services.AccountUpdate) (*models.Account, error) {
				if fields.Name == nil || *fields.Name != "Sparkonto" {
					t.Errorf("expected name update, got %v", fields.Name)
				}
				if fields.IsActive == nil || *fields.IsActive {
					t.Errorf("expected is_active false, got %v", fields.IsActive)
				}
				return &models.Account{Base: models.Base{ID: accountID}, Name: *fields.Name}, nil
			},
		}
		handler := NewAccountHandler(acctSvc)
		r := setupAccountRouter(handler)

		rec := doRequest(r, "PUT", "/accounts/"+testGroupID,
			`{"name":"Sparkonto","is_active":false}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 400 on malformed id", func(t *testing.T) {
		handler := NewAccountHandler(&mockAccountService{})
		r := setupAccountRouter(handler)

		rec := doRequest(r, "PUT", "/accounts/42", `{"name":"x"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAccountHandler_DeleteAccountGroup(t *testing.T) {
	t.Run("returns 409 when the group still holds accounts", func(t *testing.T) {
		acctSvc := &mockAccountService{
			deleteAccountGroupFn: func(_, _ string) error {
				return apperrors.ErrGroupInUse
			},
		}
		handler := NewAccountHandler(acctSvc)
		r := setupAccountRouter(handler)

		rec := doRequest(r, "DELETE", "/account-groups/"+testGroupID, "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "GROUP_IN_USE")
	})

	t.Run("returns 204 on success", func(t *testing.T) {
		handler := NewAccountHandler(&mockAccountService{})
		r := setupAccountRouter(handler)

		rec := doRequest(r, "DELETE", "/account-groups/"+testGroupID, "")

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})
}

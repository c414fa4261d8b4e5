package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/services"
)

// --- mock category service ---

type mockCategoryService struct {
	createCategoryGroupFn       func(userID, name string, sortOrder int, isIncomeGroup bool) (*models.CategoryGroup, error)
	getCategoryGroupsFn         func(userID string) ([]models.CategoryGroup, error)
	updateCategoryGroupFn       func(userID, groupID string, name *string, sortOrder *int, isIncomeGroup *bool) (*models.CategoryGroup, error)
	deleteCategoryGroupFn       func(userID, groupID string) error
	createCategoryFn            func(userID, name, groupID string, parentID *string) (*models.Category, error)
	getCategoriesFn             func(userID string, includeHidden bool) ([]models.Category, error)
	getCategoryByIDFn           func(userID, categoryID string) (*models.Category, error)
	updateCategoryFn            func(userID, categoryID string, fields services.CategoryUpdate) (*models.Category, error)
	deleteCategoryFn            func(userID, categoryID string) error
	getAvailableFundsCategoryFn func(userID string) (*models.Category, error)
}

func (m *mockCategoryService) CreateCategoryGroup(userID, name string, sortOrder int, isIncomeGroup bool) (*models.CategoryGroup, error) {
	if m.createCategoryGroupFn != nil {
		return m.createCategoryGroupFn(userID, name, sortOrder, isIncomeGroup)
	}
	return &models.CategoryGroup{}, nil
}

func (m *mockCategoryService) GetCategoryGroups(userID string) ([]models.CategoryGroup, error) {
	if m.getCategoryGroupsFn != nil {
		return m.getCategoryGroupsFn(userID)
	}
	return []models.CategoryGroup{}, nil
}

func (m *mockCategoryService) UpdateCategoryGroup(userID, groupID string, name *string, sortOrder *int, isIncomeGroup *bool) (*models.CategoryGroup, error) {
	if m.updateCategoryGroupFn != nil {
		return m.updateCategoryGroupFn(userID, groupID, name, sortOrder, isIncomeGroup)
	}
	return &models.CategoryGroup{}, nil
}

func (m *mockCategoryService) DeleteCategoryGroup(userID, groupID string) error {
	if m.deleteCategoryGroupFn != nil {
		return m.deleteCategoryGroupFn(userID, groupID)
	}
	return nil
}

func (m *mockCategoryService) CreateCategory(userID, name, groupID string, parentID *string) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(userID, name, groupID, parentID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetCategories(userID string, includeHidden bool) ([]models.Category, error) {
	if m.getCategoriesFn != nil {
		return m.getCategoriesFn(userID, includeHidden)
	}
	return []models.Category{}, nil
}

func (m *mockCategoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(userID, categoryID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) UpdateCategory(userID, categoryID string, fields services.CategoryUpdate) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(userID, categoryID, fields)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) DeleteCategory(userID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, categoryID)
	}
	return nil
}

func (m *mockCategoryService) GetAvailableFundsCategory(userID string) (*models.Category, error) {
	if m.getAvailableFundsCategoryFn != nil {
		return m.getAvailableFundsCategoryFn(userID)
	}
	return &models.Category{Name: models.AvailableFundsName}, nil
}

// verify interface compliance
var _ services.CategoryServicer = (*mockCategoryService)(nil)

func setupCategoryRouter(handler *CategoryHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID("user-1"))
	auth.POST("/category-groups", handler.CreateCategoryGroup)
	auth.GET("/category-groups", handler.GetCategoryGroups)
	auth.PUT("/category-groups/:id", handler.UpdateCategoryGroup)
	auth.DELETE("/category-groups/:id", handler.DeleteCategoryGroup)
	auth.POST("/categories", handler.CreateCategory)
	auth.GET("/categories", handler.GetCategories)
	auth.GET("/categories/available-funds", handler.GetAvailableFundsCategory)
	auth.GET("/categories/:id", handler.GetCategory)
	auth.PUT("/categories/:id", handler.UpdateCategory)
	auth.DELETE("/categories/:id", handler.DeleteCategory)
	return r
}

func TestCategoryHandler_CreateCategoryGroup(t *testing.T) {
	t.Run("returns 201 and passes the income flag", func(t *testing.T) {
		catSvc := &mockCategoryService{
			createCategoryGroupFn: func(_, name string, _ int, isIncomeGroup bool) (*models.CategoryGroup, error) {
				if !isIncomeGroup {
					t.Error("expected income group flag")
				}
				return &models.CategoryGroup{Base: models.Base{ID: "grp-1"}, Name: name, IsIncomeGroup: true}, nil
			},
		}
		handler := NewCategoryHandler(catSvc)
		r := setupCategoryRouter(handler)

		rec := doRequest(r, "POST", "/category-groups",
			`{"name":"Einnahmen","is_income_group":true}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestCategoryHandler_GetCategories(t *testing.T) {
	t.Run("passes include_hidden through", func(t *testing.T) {
		var gotHidden bool
		catSvc := &mockCategoryService{
			getCategoriesFn: func(_ string, includeHidden bool) ([]models.Category, error) {
				gotHidden = includeHidden
				return []models.Category{}, nil
			},
		}
		handler := NewCategoryHandler(catSvc)
		r := setupCategoryRouter(handler)

		rec := doRequest(r, "GET", "/categories?include_hidden=true", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotHidden {
			t.Error("expected include_hidden to be forwarded")
		}
	})
}

func TestCategoryHandler_GetAvailableFundsCategory(t *testing.T) {
	t.Run("returns the singleton", func(t *testing.T) {
		handler := NewCategoryHandler(&mockCategoryService{})
		r := setupCategoryRouter(handler)

		rec := doRequest(r, "GET", "/categories/available-funds", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		cat := result["category"].(map[string]interface{})
		if cat["name"] != models.AvailableFundsName {
			t.Errorf("expected %q, got %v", models.AvailableFundsName, cat["name"])
		}
	})
}

func TestCategoryHandler_UpdateCategory(t *testing.T) {
	t.Run("returns 409 on self-parenting", func(t *testing.T) {
		catSvc := &mockCategoryService{
			updateCategoryFn: func(_, _ string, _ services.CategoryUpdate) (*models.Category, error) {
				return nil, apperrors.ErrSelfParentCategory
			},
		}
		handler := NewCategoryHandler(catSvc)
		r := setupCategoryRouter(handler)

		rec := doRequest(r, "PUT", "/categories/"+testGroupID,
			`{"parent_id":"`+testGroupID+`"}`)

		if rec.Code != apperrors.ErrSelfParentCategory.StatusCode {
			t.Fatalf("expected %d, got %d", apperrors.ErrSelfParentCategory.StatusCode, rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "SELF_PARENT_CATEGORY")
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/services"
)

// CategoryHandler handles category and category group requests.
type CategoryHandler struct {
	categoryService services.CategoryServicer
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categoryService services.CategoryServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CreateCategoryGroupRequest represents the payload for creating a category group.
type CreateCategoryGroupRequest struct {
	Name          string `json:"name" binding:"required,min=1,max=100"`
	SortOrder     int    `json:"sort_order" binding:"gte=0"`
	IsIncomeGroup bool   `json:"is_income_group"`
}

// UpdateCategoryGroupRequest represents the payload for updating a category group.
type UpdateCategoryGroupRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=100"`
	SortOrder     *int    `json:"sort_order" binding:"omitempty,gte=0"`
	IsIncomeGroup *bool   `json:"is_income_group"`
}

// CreateCategoryRequest represents the payload for creating a category.
type CreateCategoryRequest struct {
	Name     string  `json:"name" binding:"required,min=1,max=100"`
	GroupID  string  `json:"group_id" binding:"required,uuid"`
	ParentID *string `json:"parent_id" binding:"omitempty,uuid"`
}

// UpdateCategoryRequest represents the payload for updating a category.
type UpdateCategoryRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=100"`
	GroupID  *string `json:"group_id" binding:"omitempty,uuid"`
	ParentID *string `json:"parent_id" binding:"omitempty,uuid"`
	IsHidden *bool   `json:"is_hidden"`
	IsActive *bool   `json:"is_active"`
}

// CreateCategoryGroup creates a new category group.
func (h *CategoryHandler) CreateCategoryGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.categoryService.CreateCategoryGroup(userID, req.Name, req.SortOrder, req.IsIncomeGroup)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category_group": group})
}

// GetCategoryGroups lists category groups in sort order.
func (h *CategoryHandler) GetCategoryGroups(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groups, err := h.categoryService.GetCategoryGroups(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category_groups": groups})
}

// UpdateCategoryGroup updates a category group. Toggling the income flag
// propagates to the group's categories.
func (h *CategoryHandler) UpdateCategoryGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.categoryService.UpdateCategoryGroup(userID, groupID, req.Name, req.SortOrder, req.IsIncomeGroup)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category_group": group})
}

// DeleteCategoryGroup deletes an empty category group.
func (h *CategoryHandler) DeleteCategoryGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.categoryService.DeleteCategoryGroup(userID, groupID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateCategory creates a new category inside a group.
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.CreateCategory(userID, req.Name, req.GroupID, req.ParentID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetCategories lists categories. Hidden categories are excluded unless
// include_hidden=true.
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	includeHidden := c.Query("include_hidden") == "true"

	categories, err := h.categoryService.GetCategories(userID, includeHidden)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategory returns a single category.
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// GetAvailableFundsCategory returns the pseudo-category holding unbudgeted
// funds, creating it on first access.
func (h *CategoryHandler) GetAvailableFundsCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetAvailableFundsCategory(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory updates a category.
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.UpdateCategory(userID, categoryID, services.CategoryUpdate{
		Name:     req.Name,
		GroupID:  req.GroupID,
		ParentID: req.ParentID,
		IsHidden: req.IsHidden,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory deletes a category without children.
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.categoryService.DeleteCategory(userID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/services"
)

// BudgetHandler handles envelope budget requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

// AllocateRequest represents the payload for budgeting an amount into a
// category envelope for one month.
type AllocateRequest struct {
	CategoryID string `json:"category_id" binding:"required,uuid"`
	Year       int    `json:"year" binding:"required,gte=1970,lte=9999"`
	Month      int    `json:"month" binding:"required,gte=1,lte=12"`
	Amount     int64  `json:"amount"`
}

// MonthRequest represents the year/month query parameters.
type MonthRequest struct {
	Year  int `form:"year" binding:"required,gte=1970,lte=9999"`
	Month int `form:"month" binding:"required,gte=1,lte=12"`
}

// Allocate sets the budgeted amount of a category for a month and refreshes
// the envelope projections.
func (h *BudgetHandler) Allocate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	allocation, err := h.budgetService.Allocate(userID, req.CategoryID, req.Year, req.Month, req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocation": allocation})
}

// GetAllocations lists the budget allocations of a month.
func (h *BudgetHandler) GetAllocations(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req MonthRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	allocations, err := h.budgetService.GetAllocations(userID, req.Year, req.Month)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": allocations})
}

// RefreshEnvelopes recomputes Budgeted/Activity/Available on every category
// for the month and returns the refreshed categories.
func (h *BudgetHandler) RefreshEnvelopes(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req MonthRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	categories, err := h.budgetService.RefreshEnvelopes(userID, req.Year, req.Month)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

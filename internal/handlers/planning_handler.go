package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/services"
)

// PlanningHandler handles recurring planning transaction requests.
type PlanningHandler struct {
	planningService services.PlanningServicer
}

// NewPlanningHandler creates a new PlanningHandler.
func NewPlanningHandler(planningService services.PlanningServicer) *PlanningHandler {
	return &PlanningHandler{planningService: planningService}
}

// PlanningRequest represents the payload for creating or updating a planning
// transaction.
type PlanningRequest struct {
	Name             string     `json:"name" binding:"required,min=1,max=200"`
	AccountID        string     `json:"account_id" binding:"required,uuid"`
	CategoryID       *string    `json:"category_id" binding:"omitempty,uuid"`
	Type             string     `json:"type" binding:"required,oneof=EXPENSE INCOME ACCOUNTTRANSFER"`
	Amount           int64      `json:"amount" binding:"required"`
	Recurrence       string     `json:"recurrence" binding:"required,recurrence"`
	StartDate        time.Time  `json:"start_date" binding:"required"`
	EndDate          *time.Time `json:"end_date"`
	CounterAccountID *string    `json:"counter_account_id" binding:"omitempty,uuid"`
	RecipientID      *string    `json:"recipient_id" binding:"omitempty,uuid"`
	Note             string     `json:"note" binding:"max=1000"`
	IsActive         *bool      `json:"is_active"`
}

func (r PlanningRequest) toInput() services.PlanningInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return services.PlanningInput{
		Name:             r.Name,
		AccountID:        r.AccountID,
		CategoryID:       r.CategoryID,
		Type:             models.TransactionType(r.Type),
		Amount:           r.Amount,
		Recurrence:       models.Recurrence(r.Recurrence),
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		CounterAccountID: r.CounterAccountID,
		RecipientID:      r.RecipientID,
		Note:             r.Note,
		IsActive:         active,
	}
}

// OccurrencesRequest represents the query window for occurrence expansion.
type OccurrencesRequest struct {
	From time.Time `form:"from" time_format:"2006-01-02" binding:"required"`
	To   time.Time `form:"to" time_format:"2006-01-02" binding:"required"`
}

// ExecutePlanningRequest carries the booking date for executing a planning
// transaction. Defaults to the plan's next due date when omitted.
type ExecutePlanningRequest struct {
	Date *time.Time `json:"date"`
}

// CreatePlanning creates a new planning transaction.
func (h *PlanningHandler) CreatePlanning(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PlanningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	planning, err := h.planningService.CreatePlanning(userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"planning": planning})
}

// GetPlannings lists planning transactions.
func (h *PlanningHandler) GetPlannings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	plannings, err := h.planningService.GetPlannings(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plannings)
}

// GetPlanning returns a single planning transaction.
func (h *PlanningHandler) GetPlanning(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planningID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	planning, err := h.planningService.GetPlanningByID(userID, planningID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"planning": planning})
}

// UpdatePlanning replaces a planning transaction's definition.
func (h *PlanningHandler) UpdatePlanning(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planningID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PlanningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	planning, err := h.planningService.UpdatePlanning(userID, planningID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"planning": planning})
}

// DeletePlanning deletes a planning transaction.
func (h *PlanningHandler) DeletePlanning(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planningID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.planningService.DeletePlanning(userID, planningID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetOccurrences expands a planning transaction into its dated occurrences
// inside the requested window.
func (h *PlanningHandler) GetOccurrences(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planningID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req OccurrencesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	occurrences, err := h.planningService.CalculateNextOccurrences(userID, planningID, req.From, req.To)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"occurrences": occurrences})
}

// ExecutePlanning books the plan's next occurrence as a real transaction and
// advances the plan.
func (h *PlanningHandler) ExecutePlanning(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planningID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExecutePlanningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	planning, err := h.planningService.GetPlanningByID(userID, planningID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	date := planning.StartDate
	if req.Date != nil {
		date = *req.Date
	}

	transaction, err := h.planningService.ExecutePlanning(userID, planningID, date)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// SkipPlanning advances the plan past its next occurrence without booking it.
func (h *PlanningHandler) SkipPlanning(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planningID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	planning, err := h.planningService.SkipPlanning(userID, planningID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"planning": planning})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/pagination"
	"finwave/internal/services"
)

// RuleHandler handles auto-categorization rule requests.
type RuleHandler struct {
	ruleService services.RuleServicer
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(ruleService services.RuleServicer) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// RuleRequest represents the payload for creating or updating a rule.
type RuleRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=100"`
	MatchField  string  `json:"match_field" binding:"required,oneof=payee note"`
	Pattern     string  `json:"pattern" binding:"required,min=1,max=200"`
	Priority    int     `json:"priority" binding:"gte=0"`
	CategoryID  *string `json:"category_id" binding:"omitempty,uuid"`
	RecipientID *string `json:"recipient_id" binding:"omitempty,uuid"`
	IsActive    *bool   `json:"is_active"`
}

func (r RuleRequest) toInput() services.RuleInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return services.RuleInput{
		Name:        r.Name,
		MatchField:  models.RuleField(r.MatchField),
		Pattern:     r.Pattern,
		Priority:    r.Priority,
		CategoryID:  r.CategoryID,
		RecipientID: r.RecipientID,
		IsActive:    active,
	}
}

// CreateRule creates a new rule.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rule, err := h.ruleService.CreateRule(userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// GetRules lists rules, highest priority first.
func (h *RuleHandler) GetRules(c *gin.Context) {
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

	rules, err := h.ruleService.GetRules(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// UpdateRule replaces a rule's definition.
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ruleID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rule, err := h.ruleService.UpdateRule(userID, ruleID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// DeleteRule deletes a rule.
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ruleID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ruleService.DeleteRule(userID, ruleID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

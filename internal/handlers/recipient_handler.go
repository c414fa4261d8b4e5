package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/pagination"
	"finwave/internal/services"
)

// RecipientHandler handles recipient requests.
type RecipientHandler struct {
	recipientService services.RecipientServicer
}

// NewRecipientHandler creates a new RecipientHandler.
func NewRecipientHandler(recipientService services.RecipientServicer) *RecipientHandler {
	return &RecipientHandler{recipientService: recipientService}
}

// RecipientRequest represents the payload for creating or renaming a recipient.
type RecipientRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}

// CreateRecipient creates a new recipient.
func (h *RecipientHandler) CreateRecipient(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	recipient, err := h.recipientService.CreateRecipient(userID, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recipient": recipient})
}

// GetRecipients lists recipients alphabetically.
func (h *RecipientHandler) GetRecipients(c *gin.Context) {
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

	recipients, err := h.recipientService.GetRecipients(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipients)
}

// UpdateRecipient renames a recipient and refreshes the denormalized payee
// text on its transactions.
func (h *RecipientHandler) UpdateRecipient(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recipientID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	recipient, err := h.recipientService.UpdateRecipient(userID, recipientID, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipient": recipient})
}

// DeleteRecipient deletes a recipient. Transactions keep their payee text.
func (h *RecipientHandler) DeleteRecipient(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recipientID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.recipientService.DeleteRecipient(userID, recipientID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

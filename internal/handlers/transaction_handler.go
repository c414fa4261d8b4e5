package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/filter"
	"finwave/internal/models"
	"finwave/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// CreateTransactionRequest represents the payload for creating a transaction.
type CreateTransactionRequest struct {
	Date        time.Time              `json:"date" binding:"required"`
	ValueDate   *time.Time             `json:"value_date"`
	AccountID   string                 `json:"account_id" binding:"required,uuid"`
	CategoryID  *string                `json:"category_id" binding:"omitempty,uuid"`
	Amount      int64                  `json:"amount" binding:"required"`
	Type        models.TransactionType `json:"type" binding:"required,oneof=EXPENSE INCOME"`
	RecipientID *string                `json:"recipient_id" binding:"omitempty,uuid"`
	TagIDs      []string               `json:"tag_ids" binding:"omitempty,dive,uuid"`
	Note        string                 `json:"note" binding:"max=1000"`
	Reconciled  bool                   `json:"reconciled"`
}

// UpdateTransactionRequest represents the payload for updating a transaction.
type UpdateTransactionRequest struct {
	Date        *time.Time `json:"date"`
	ValueDate   *time.Time `json:"value_date"`
	CategoryID  *string    `json:"category_id" binding:"omitempty,uuid"`
	Amount      *int64     `json:"amount"`
	RecipientID *string    `json:"recipient_id" binding:"omitempty,uuid"`
	TagIDs      *[]string  `json:"tag_ids" binding:"omitempty,dive,uuid"`
	Note        *string    `json:"note" binding:"omitempty,max=1000"`
	Reconciled  *bool      `json:"reconciled"`
}

// TransferRequest represents the payload for an account or category transfer.
type TransferRequest struct {
	FromID string    `json:"from_id" binding:"required,uuid"`
	ToID   string    `json:"to_id" binding:"required,uuid"`
	Amount int64     `json:"amount" binding:"required,gt=0"`
	Date   time.Time `json:"date" binding:"required"`
	Note   string    `json:"note" binding:"max=1000"`
}

// ListTransactionsRequest represents the query parameters for listing
// transactions. Date bounds are day-granular.
type ListTransactionsRequest struct {
	Query      string     `form:"q"`
	AccountID  *string    `form:"account_id"`
	CategoryID *string    `form:"category_id"`
	TagID      *string    `form:"tag_id"`
	Type       *string    `form:"type"`
	Reconciled *bool      `form:"reconciled"`
	From       *time.Time `form:"from" time_format:"2006-01-02"`
	To         *time.Time `form:"to" time_format:"2006-01-02"`
	Basis      string     `form:"basis" binding:"omitempty,oneof=date value_date"`
	Sort       string     `form:"sort" binding:"omitempty,sort_key"`
	Order      string     `form:"order" binding:"omitempty,oneof=asc desc"`
}

// BatchModeRequest toggles bulk import mode for the user's session.
type BatchModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// CreateTransaction creates a new expense or income transaction.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.CreateTransaction(userID, services.TransactionInput{
		Date:        req.Date,
		ValueDate:   req.ValueDate,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Type:        req.Type,
		RecipientID: req.RecipientID,
		TagIDs:      req.TagIDs,
		Note:        req.Note,
		Reconciled:  req.Reconciled,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// CreateAccountTransfer books a linked pair of transactions moving money
// between two accounts.
func (h *TransactionHandler) CreateAccountTransfer(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.CreateAccountTransfer(userID, req.FromID, req.ToID, req.Amount, req.Date, req.Note)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// CreateCategoryTransfer moves budgeted money between two envelopes.
func (h *TransactionHandler) CreateCategoryTransfer(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.CreateCategoryTransfer(userID, req.FromID, req.ToID, req.Amount, req.Date, req.Note)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// ListTransactions returns transactions matching the filter criteria,
// optionally sorted.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	criteria := filter.Criteria{
		Query:      req.Query,
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		TagID:      req.TagID,
		Reconciled: req.Reconciled,
		From:       req.From,
		To:         req.To,
		Basis:      filter.DateBasis(req.Basis),
	}
	if req.Type != nil {
		txType := models.TransactionType(*req.Type)
		criteria.Type = &txType
	}

	transactions, err := h.transactionService.ListTransactions(userID, criteria, filter.SortKey(req.Sort), req.Order != "desc")
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// GetTransaction returns a single transaction.
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction updates a transaction. Amount and date changes on a
// transfer leg are mirrored to the counter leg.
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.UpdateTransaction(userID, transactionID, services.TransactionUpdate{
		Date:        req.Date,
		ValueDate:   req.ValueDate,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		RecipientID: req.RecipientID,
		TagIDs:      req.TagIDs,
		Note:        req.Note,
		Reconciled:  req.Reconciled,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction deletes a transaction. Deleting a transfer leg removes
// both legs.
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetBatchMode enables or disables bulk import mode. Disabling it triggers a
// full balance recomputation pass.
func (h *TransactionHandler) SetBatchMode(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BatchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.transactionService.SetBatchMode(userID, *req.Enabled); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_mode": *req.Enabled})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/pagination"
	"finwave/internal/services"
)

// AccountHandler handles account and account group requests.
type AccountHandler struct {
	accountService services.AccountServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccountGroupRequest represents the payload for creating an account group.
type CreateAccountGroupRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=100"`
	SortOrder int    `json:"sort_order" binding:"gte=0"`
}

// UpdateAccountGroupRequest represents the payload for updating an account group.
type UpdateAccountGroupRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=1,max=100"`
	SortOrder *int    `json:"sort_order" binding:"omitempty,gte=0"`
}

// CreateAccountRequest represents the payload for creating an account.
type CreateAccountRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	GroupID     string `json:"group_id" binding:"required,uuid"`
	Description string `json:"description" binding:"max=500"`
	IBAN        string `json:"iban" binding:"omitempty,iban"`
}

// UpdateAccountRequest represents the payload for updating an account.
type UpdateAccountRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	GroupID     *string `json:"group_id" binding:"omitempty,uuid"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	IBAN        *string `json:"iban" binding:"omitempty,iban"`
	IsActive    *bool   `json:"is_active"`
}

// CreateAccountGroup creates a new account group.
func (h *AccountHandler) CreateAccountGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAccountGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.accountService.CreateAccountGroup(userID, req.Name, req.SortOrder)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account_group": group})
}

// GetAccountGroups lists the account groups in sort order.
func (h *AccountHandler) GetAccountGroups(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groups, err := h.accountService.GetAccountGroups(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_groups": groups})
}

// UpdateAccountGroup updates an account group.
func (h *AccountHandler) UpdateAccountGroup(c *gin.Context) {
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

	var req UpdateAccountGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.accountService.UpdateAccountGroup(userID, groupID, req.Name, req.SortOrder)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_group": group})
}

// DeleteAccountGroup deletes an empty account group.
func (h *AccountHandler) DeleteAccountGroup(c *gin.Context) {
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

	if err := h.accountService.DeleteAccountGroup(userID, groupID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateAccount creates a new account inside a group.
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	account, err := h.accountService.CreateAccount(userID, req.Name, req.GroupID, req.Description, req.IBAN)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// GetAccounts lists the user's accounts, paginated.
func (h *AccountHandler) GetAccounts(c *gin.Context) {
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

	accounts, err := h.accountService.GetAccounts(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// GetAccount returns a single account.
func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accountID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.GetAccountByID(userID, accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// UpdateAccount updates an account.
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accountID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	account, err := h.accountService.UpdateAccount(userID, accountID, services.AccountUpdate{
		Name:        req.Name,
		GroupID:     req.GroupID,
		Description: req.Description,
		IBAN:        req.IBAN,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// DeleteAccount deletes an account and tombstones its transactions.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accountID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.accountService.DeleteAccount(userID, accountID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/services"
)

// TenantHandler handles tenant registry requests.
type TenantHandler struct {
	tenantService services.TenantServicer
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(tenantService services.TenantServicer) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

// CreateTenantRequest represents the tenant creation payload.
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreateTenant creates a new tenant data file for the user.
func (h *TenantHandler) CreateTenant(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tenant, err := h.tenantService.CreateTenant(userID, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tenant": tenant})
}

// GetTenants lists the user's tenants.
func (h *TenantHandler) GetTenants(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tenants, err := h.tenantService.GetUserTenants(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

// ActivateTenant opens the tenant's data file and makes it the user's
// active session. Any previously active tenant is closed first.
func (h *TenantHandler) ActivateTenant(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tenantID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tenant, err := h.tenantService.ActivateTenant(userID, tenantID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": tenant})
}

// DeleteTenant removes a tenant and its data file.
func (h *TenantHandler) DeleteTenant(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tenantID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.tenantService.DeleteTenant(userID, tenantID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

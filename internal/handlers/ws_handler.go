package handlers

import (
	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/realtime"
	"finwave/internal/services"
)

// WSHandler upgrades realtime WebSocket connections.
type WSHandler struct {
	hub           *realtime.Hub
	tenantService services.TenantServicer
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *realtime.Hub, tenantService services.TenantServicer) *WSHandler {
	return &WSHandler{hub: hub, tenantService: tenantService}
}

// Serve upgrades the connection and subscribes it to the tenant's change
// feed. The tenant must belong to the authenticated user.
func (h *WSHandler) Serve(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "tenant_id is required"))
		return
	}

	tenants, err := h.tenantService.GetUserTenants(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	owned := false
	for _, t := range tenants {
		if t.ID == tenantID {
			owned = true
			break
		}
	}
	if !owned {
		respondWithError(c, apperrors.ErrTenantNotFound)
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, tenantID); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
	}
}

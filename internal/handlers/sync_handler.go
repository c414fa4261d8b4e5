package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/services"
)

// SyncHandler handles change-record ingestion and the outbound sync queue.
type SyncHandler struct {
	syncService services.SyncServicer
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncService services.SyncServicer) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// ApplyChangesRequest carries a batch of remote change records.
type ApplyChangesRequest struct {
	Changes []models.ChangeRecord `json:"changes" binding:"required,min=1,max=500"`
}

// ApplyChanges merges a batch of remote change records into the active
// tenant. Losing records are discarded, winners are applied and broadcast.
func (h *SyncHandler) ApplyChanges(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ApplyChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.syncService.ApplyChanges(userID, req.Changes)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetQueue lists pending and failed outbound sync queue entries.
func (h *SyncHandler) GetQueue(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entries, err := h.syncService.PendingQueue(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": entries})
}

// DrainQueue publishes one batch of pending queue entries immediately instead
// of waiting for the background drainer.
func (h *SyncHandler) DrainQueue(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	published, err := h.syncService.DrainOnce(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"published": published})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/services"
)

// SettingsHandler handles user settings requests.
type SettingsHandler struct {
	settingsService services.SettingsServicer
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService services.SettingsServicer) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// UpdateSettingsRequest represents the payload for updating user settings.
type UpdateSettingsRequest struct {
	LogLevel             *string   `json:"log_level" binding:"omitempty,log_level"`
	LogCategories        *[]string `json:"log_categories"`
	HistoryRetentionDays *int      `json:"history_retention_days" binding:"omitempty,gte=0"`
	Preferences          *string   `json:"preferences"`
}

// SearchTermRequest carries one search term for the history.
type SearchTermRequest struct {
	Term string `json:"term" binding:"required,max=200"`
}

// GetSettings returns the user's settings, creating defaults on first access.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settings, err := h.settingsService.GetSettings(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateSettings updates the user's settings. A log level change takes effect
// immediately.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	settings, err := h.settingsService.UpdateSettings(userID, services.SettingsUpdate{
		LogLevel:             req.LogLevel,
		LogCategories:        req.LogCategories,
		HistoryRetentionDays: req.HistoryRetentionDays,
		Preferences:          req.Preferences,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// ResetSettings restores the default settings.
func (h *SettingsHandler) ResetSettings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settings, err := h.settingsService.ResetSettings(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// GetSearchHistory returns the recent search terms, newest first.
func (h *SettingsHandler) GetSearchHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settings, err := h.settingsService.GetSettings(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	history := settings.SearchHistory
	if history == nil {
		history = models.StringList{}
	}
	c.JSON(http.StatusOK, gin.H{"search_history": history})
}

// AddSearchTerm records a search term in the user's search history.
func (h *SettingsHandler) AddSearchTerm(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SearchTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	settings, err := h.settingsService.AddSearchTerm(userID, req.Term)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

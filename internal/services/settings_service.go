package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/logger"
	"finwave/internal/models"
)

// settingsService handles per-user settings. Settings live in the central
// database, not the tenant files, so they survive tenant switches.
type settingsService struct {
	db *gorm.DB
}

// NewSettingsService creates a new SettingsServicer.
func NewSettingsService(db *gorm.DB) SettingsServicer {
	return &settingsService{db: db}
}

// GetSettings returns the user's settings, creating the default row on first
// access.
func (s *settingsService) GetSettings(userID string) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := s.db.Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	settings = defaultSettings(userID)
	if err := s.db.Create(&settings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &settings, nil
}

func defaultSettings(userID string) models.UserSettings {
	return models.UserSettings{
		UserID:               userID,
		LogLevel:             "info",
		HistoryRetentionDays: 60,
	}
}

// UpdateSettings merges the provided fields. Changing the log level takes
// effect immediately.
func (s *settingsService) UpdateSettings(userID string, update SettingsUpdate) (*models.UserSettings, error) {
	settings, err := s.GetSettings(userID)
	if err != nil {
		return nil, err
	}

	if update.LogLevel != nil {
		switch *update.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown log level")
		}
		settings.LogLevel = *update.LogLevel
	}
	if update.LogCategories != nil {
		settings.LogCategories = *update.LogCategories
	}
	if update.HistoryRetentionDays != nil {
		if *update.HistoryRetentionDays < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "retention must not be negative")
		}
		settings.HistoryRetentionDays = *update.HistoryRetentionDays
	}
	if update.Preferences != nil {
		settings.Preferences = *update.Preferences
	}

	if err := s.db.Save(settings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if update.LogLevel != nil {
		logger.SetLevel(settings.LogLevel)
	}
	return settings, nil
}

// ResetSettings restores the defaults, clearing search history and
// preferences.
func (s *settingsService) ResetSettings(userID string) (*models.UserSettings, error) {
	if _, err := s.GetSettings(userID); err != nil {
		return nil, err
	}
	settings := defaultSettings(userID)
	if err := s.db.Save(&settings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	logger.SetLevel(settings.LogLevel)
	return &settings, nil
}

// AddSearchTerm pushes a term onto the user's search history, newest first.
// Duplicates move to the front; the list is capped at MaxSearchHistory.
func (s *settingsService) AddSearchTerm(userID, term string) (*models.UserSettings, error) {
	if term == "" {
		return s.GetSettings(userID)
	}

	settings, err := s.GetSettings(userID)
	if err != nil {
		return nil, err
	}

	history := make(models.StringList, 0, len(settings.SearchHistory)+1)
	history = append(history, term)
	for _, t := range settings.SearchHistory {
		if t == term {
			continue
		}
		history = append(history, t)
	}
	if len(history) > models.MaxSearchHistory {
		history = history[:models.MaxSearchHistory]
	}
	settings.SearchHistory = history

	if err := s.db.Save(settings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return settings, nil
}

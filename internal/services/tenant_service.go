package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finwave/internal/errors"
	"finwave/internal/models"
	"finwave/internal/realtime"
	"finwave/internal/tenant"
)

// tenantService manages tenant registry rows and their embedded databases.
type tenantService struct {
	db      *gorm.DB
	tenants *tenant.Manager
	hub     *realtime.Hub
}

// NewTenantService creates a new TenantServicer. hub may be nil in tests.
func NewTenantService(db *gorm.DB, tenants *tenant.Manager, hub *realtime.Hub) TenantServicer {
	return &tenantService{db: db, tenants: tenants, hub: hub}
}

// CreateTenant registers a new tenant for the user. The tenant database file
// is created lazily on first activation.
func (s *tenantService) CreateTenant(userID, name string) (*models.Tenant, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tenant name is required")
	}

	t := &models.Tenant{UserID: userID, Name: name}
	if err := s.db.Create(t).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return t, nil
}

// GetUserTenants lists the user's tenants.
func (s *tenantService) GetUserTenants(userID string) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := s.db.Where("user_id = ?", userID).Order("created_at").Find(&tenants).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tenants, nil
}

// ActivateTenant makes the tenant the user's active workspace, closing any
// previously open tenant database first.
func (s *tenantService) ActivateTenant(userID, tenantID string) (*models.Tenant, error) {
	t, err := s.getOwned(userID, tenantID)
	if err != nil {
		return nil, err
	}

	if _, err := s.tenants.Activate(userID, tenantID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return t, nil
}

// DeleteTenant removes the tenant row, its database file, and signals the
// disconnect to connected clients.
func (s *tenantService) DeleteTenant(userID, tenantID string) error {
	t, err := s.getOwned(userID, tenantID)
	if err != nil {
		return err
	}

	if err := s.tenants.Remove(tenantID); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Unscoped().Delete(t).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if s.hub != nil {
		s.hub.NotifyTenantRemoved(tenantID)
	}
	return nil
}

func (s *tenantService) getOwned(userID, tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.db.Where("id = ? AND user_id = ?", tenantID, userID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTenantNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &t, nil
}

// Package tenant manages per-tenant embedded databases. Every tenant's
// budget data lives in its own SQLite file; a Session owns exactly one open
// handle plus the tenant's revision clock. The manager enforces the
// close-before-open rule: a user never has two tenants' data visible at the
// same time.
package tenant

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"finwave/internal/clock"
	apperrors "finwave/internal/errors"
	"finwave/internal/logger"
	"finwave/internal/models"
)

// tenantModels is the set of GORM models auto-migrated into every tenant
// database when it is first opened.
var tenantModels = []interface{}{
	&models.AccountGroup{},
	&models.Account{},
	&models.CategoryGroup{},
	&models.Category{},
	&models.Transaction{},
	&models.PlanningTransaction{},
	&models.Recipient{},
	&models.Tag{},
	&models.Rule{},
	&models.BudgetAllocation{},
	&models.MonthlyBalance{},
	&models.SyncQueueEntry{},
}

// Session is one open tenant database plus the clock that stamps its
// revisions. Sessions are handed out by the Manager and must not outlive a
// Deactivate/Remove call for their tenant.
type Session struct {
	TenantID string
	db       *gorm.DB
	clock    *clock.HLC
}

// DB returns the tenant's database handle.
func (s *Session) DB() *gorm.DB { return s.db }

// Clock returns the tenant's revision clock.
func (s *Session) Clock() *clock.HLC { return s.clock }

func (s *Session) close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OpenHook runs against a tenant database right after its schema migration,
// before the session becomes visible. The category income-flag migration
// pass is wired here.
type OpenHook func(db *gorm.DB) error

// Manager opens and closes tenant sessions. At most one session is active
// per user.
type Manager struct {
	dataDir string
	hooks   []OpenHook

	mu     sync.Mutex
	active map[string]*Session // keyed by user ID
}

// NewManager creates a manager storing tenant databases under dataDir.
func NewManager(dataDir string, hooks ...OpenHook) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tenant data dir: %w", err)
	}
	return &Manager{
		dataDir: dataDir,
		hooks:   hooks,
		active:  make(map[string]*Session),
	}, nil
}

// Activate opens the tenant's database for the user, closing any previously
// active session first. Activating the already-active tenant is a no-op and
// returns the existing session.
func (m *Manager) Activate(userID, tenantID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.active[userID]; ok {
		if s.TenantID == tenantID {
			return s, nil
		}
		// Close previous, then open next. The ordering matters: two
		// tenants' data must never be reachable at once.
		if err := s.close(); err != nil {
			logger.Get().Warnw("closing previous tenant session", "tenant_id", s.TenantID, "error", err)
		}
		delete(m.active, userID)
	}

	s, err := m.open(tenantID)
	if err != nil {
		return nil, err
	}
	m.active[userID] = s
	return s, nil
}

// Session returns the user's active session.
func (m *Manager) Session(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.active[userID]
	if !ok {
		return nil, apperrors.ErrNoActiveTenant
	}
	return s, nil
}

// SessionByTenant returns an active session holding the tenant's database,
// if any user has it open.
func (m *Manager) SessionByTenant(tenantID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.active {
		if s.TenantID == tenantID {
			return s, nil
		}
	}
	return nil, apperrors.ErrNoActiveTenant
}

// ActiveUsers returns the IDs of all users with an open session. The sync
// drainer walks this list.
func (m *Manager) ActiveUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]string, 0, len(m.active))
	for userID := range m.active {
		users = append(users, userID)
	}
	return users
}

// Deactivate closes the user's active session, if any.
func (m *Manager) Deactivate(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.active[userID]; ok {
		if err := s.close(); err != nil {
			logger.Get().Warnw("closing tenant session", "tenant_id", s.TenantID, "error", err)
		}
		delete(m.active, userID)
	}
}

// Remove closes any session for the tenant and deletes its database file.
// Used when a tenant is deleted.
func (m *Manager) Remove(tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, s := range m.active {
		if s.TenantID == tenantID {
			if err := s.close(); err != nil {
				logger.Get().Warnw("closing tenant session", "tenant_id", tenantID, "error", err)
			}
			delete(m.active, userID)
		}
	}

	path := m.path(tenantID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tenant database %s: %w", path, err)
	}
	return nil
}

// CloseAll closes every active session. Called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, s := range m.active {
		if err := s.close(); err != nil {
			logger.Get().Warnw("closing tenant session", "tenant_id", s.TenantID, "error", err)
		}
		delete(m.active, userID)
	}
}

func (m *Manager) open(tenantID string) (*Session, error) {
	db, err := gorm.Open(sqlite.Open(m.path(tenantID)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open tenant database: %w", err)
	}

	if err := db.AutoMigrate(tenantModels...); err != nil {
		return nil, fmt.Errorf("migrate tenant database: %w", err)
	}

	for _, hook := range m.hooks {
		if err := hook(db); err != nil {
			return nil, fmt.Errorf("tenant open hook: %w", err)
		}
	}

	return &Session{
		TenantID: tenantID,
		db:       db,
		clock:    clock.New(),
	}, nil
}

func (m *Manager) path(tenantID string) string {
	return filepath.Join(m.dataDir, tenantID+".db")
}

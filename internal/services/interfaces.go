package services

import (
	"context"
	"encoding/json"
	"time"

	"finwave/internal/filter"
	"finwave/internal/models"
	"finwave/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// TenantServicer manages tenant registry rows and their sessions.
type TenantServicer interface {
	CreateTenant(userID, name string) (*models.Tenant, error)
	GetUserTenants(userID string) ([]models.Tenant, error)
	ActivateTenant(userID, tenantID string) (*models.Tenant, error)
	DeleteTenant(userID, tenantID string) error
}

// AccountServicer defines the contract for accounts and account groups.
type AccountServicer interface {
	CreateAccountGroup(userID, name string, sortOrder int) (*models.AccountGroup, error)
	GetAccountGroups(userID string) ([]models.AccountGroup, error)
	UpdateAccountGroup(userID, groupID string, name *string, sortOrder *int) (*models.AccountGroup, error)
	DeleteAccountGroup(userID, groupID string) error

	CreateAccount(userID, name, groupID, description, iban string) (*models.Account, error)
	GetAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	UpdateAccount(userID, accountID string, fields AccountUpdate) (*models.Account, error)
	DeleteAccount(userID, accountID string) error
}

// AccountUpdate carries the optional fields of an account update.
type AccountUpdate struct {
	Name        *string
	GroupID     *string
	Description *string
	IBAN        *string
	IsActive    *bool
}

// CategoryServicer defines the contract for categories and category groups.
type CategoryServicer interface {
	CreateCategoryGroup(userID, name string, sortOrder int, isIncomeGroup bool) (*models.CategoryGroup, error)
	GetCategoryGroups(userID string) ([]models.CategoryGroup, error)
	UpdateCategoryGroup(userID, groupID string, name *string, sortOrder *int, isIncomeGroup *bool) (*models.CategoryGroup, error)
	DeleteCategoryGroup(userID, groupID string) error

	CreateCategory(userID, name, groupID string, parentID *string) (*models.Category, error)
	GetCategories(userID string, includeHidden bool) ([]models.Category, error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, fields CategoryUpdate) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error

	// GetAvailableFundsCategory lazily creates and returns the singleton
	// pseudo-category holding unbudgeted funds.
	GetAvailableFundsCategory(userID string) (*models.Category, error)
}

// CategoryUpdate carries the optional fields of a category update.
type CategoryUpdate struct {
	Name     *string
	GroupID  *string
	ParentID *string
	IsHidden *bool
	IsActive *bool
}

// TransactionServicer defines the contract for transaction business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, input TransactionInput) (*models.Transaction, error)
	CreateAccountTransfer(userID string, fromAccountID, toAccountID string, amount int64, date time.Time, note string) (*models.Transaction, error)
	CreateCategoryTransfer(userID string, fromCategoryID, toCategoryID string, amount int64, date time.Time, note string) (*models.Transaction, error)
	ListTransactions(userID string, criteria filter.Criteria, sortKey filter.SortKey, ascending bool) ([]models.Transaction, error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, fields TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error

	// SetBatchMode suppresses per-mutation cache invalidation and balance
	// recomputation during bulk operations; disabling it runs one full pass.
	SetBatchMode(userID string, enabled bool) error
}

// TransactionInput is the payload for creating a standard transaction.
type TransactionInput struct {
	Date        time.Time
	ValueDate   *time.Time
	AccountID   string
	CategoryID  *string
	Amount      int64
	Type        models.TransactionType
	RecipientID *string
	TagIDs      []string
	Note        string
	Reconciled  bool
}

// TransactionUpdate carries the optional fields of a transaction update.
type TransactionUpdate struct {
	Date        *time.Time
	ValueDate   *time.Time
	CategoryID  *string
	Amount      *int64
	RecipientID *string
	TagIDs      *[]string
	Note        *string
	Reconciled  *bool
}

// RecipientServicer defines the contract for recipients.
type RecipientServicer interface {
	CreateRecipient(userID, name string) (*models.Recipient, error)
	GetRecipients(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Recipient], error)
	UpdateRecipient(userID, recipientID, name string) (*models.Recipient, error)
	DeleteRecipient(userID, recipientID string) error
}

// TagServicer defines the contract for tags.
type TagServicer interface {
	CreateTag(userID, name, color string) (*models.Tag, error)
	GetTags(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Tag], error)
	UpdateTag(userID, tagID string, name, color *string) (*models.Tag, error)
	DeleteTag(userID, tagID string) error
}

// RuleServicer defines the contract for auto-categorization rules.
type RuleServicer interface {
	CreateRule(userID string, input RuleInput) (*models.Rule, error)
	GetRules(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Rule], error)
	UpdateRule(userID, ruleID string, input RuleInput) (*models.Rule, error)
	DeleteRule(userID, ruleID string) error
}

// RuleInput is the payload for creating or updating a rule.
type RuleInput struct {
	Name        string
	MatchField  models.RuleField
	Pattern     string
	Priority    int
	CategoryID  *string
	RecipientID *string
	IsActive    bool
}

// Occurrence is one concrete dated instance generated from a planning
// transaction.
type Occurrence struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Amount      int64     `json:"amount"`
	PlanningID  string    `json:"planning_id"`
}

// PlanningServicer defines the contract for recurring planning transactions.
type PlanningServicer interface {
	CreatePlanning(userID string, input PlanningInput) (*models.PlanningTransaction, error)
	GetPlannings(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PlanningTransaction], error)
	GetPlanningByID(userID, planningID string) (*models.PlanningTransaction, error)
	UpdatePlanning(userID, planningID string, input PlanningInput) (*models.PlanningTransaction, error)
	DeletePlanning(userID, planningID string) error

	CalculateNextOccurrences(userID, planningID string, from, to time.Time) ([]Occurrence, error)
	ExecutePlanning(userID, planningID string, date time.Time) (*models.Transaction, error)
	SkipPlanning(userID, planningID string) (*models.PlanningTransaction, error)
}

// PlanningInput is the payload for creating or updating a planning transaction.
type PlanningInput struct {
	Name             string
	AccountID        string
	CategoryID       *string
	Type             models.TransactionType
	Amount           int64
	Recurrence       models.Recurrence
	StartDate        time.Time
	EndDate          *time.Time
	CounterAccountID *string
	RecipientID      *string
	Note             string
	IsActive         bool
}

// BalanceKind selects the aggregation subject.
type BalanceKind string

const (
	BalanceKindAccount  BalanceKind = "account"
	BalanceKindCategory BalanceKind = "category"
)

// MonthlyPoint is one month of the balance series.
type MonthlyPoint struct {
	Year      int          `json:"year"`
	Month     int          `json:"month"`
	Actual    int64        `json:"actual"`
	Projected int64        `json:"projected"`
	Forecasts []Occurrence `json:"forecasts"`
}

// StatsServicer defines the contract for balance and forecast aggregation.
type StatsServicer interface {
	ActualBalance(userID string, kind BalanceKind, id string, date time.Time) (int64, error)
	ProjectedBalance(userID string, kind BalanceKind, id string, date time.Time) (int64, error)
	MonthlySeries(userID string, kind BalanceKind, id string, from, to time.Time) ([]MonthlyPoint, error)
}

// SyncServicer defines the contract for the LWW merge and the sync queue.
type SyncServicer interface {
	ApplyChanges(userID string, records []models.ChangeRecord) (*SyncResult, error)
	PendingQueue(userID string) ([]models.SyncQueueEntry, error)
	DrainOnce(ctx context.Context, userID string) (int, error)
	Snapshot(tenantID string) (json.RawMessage, error)
}

// SyncResult summarizes one ApplyChanges batch.
type SyncResult struct {
	Applied   int `json:"applied"`
	Discarded int `json:"discarded"`
}

// SettingsServicer defines the contract for user settings.
type SettingsServicer interface {
	GetSettings(userID string) (*models.UserSettings, error)
	UpdateSettings(userID string, update SettingsUpdate) (*models.UserSettings, error)
	ResetSettings(userID string) (*models.UserSettings, error)
	AddSearchTerm(userID, term string) (*models.UserSettings, error)
}

// SettingsUpdate carries the optional fields of a settings update.
type SettingsUpdate struct {
	LogLevel             *string
	LogCategories        *[]string
	HistoryRetentionDays *int
	Preferences          *string
}

// BudgetServicer defines the contract for envelope budget allocations.
type BudgetServicer interface {
	Allocate(userID, categoryID string, year, month int, amount int64) (*models.BudgetAllocation, error)
	GetAllocations(userID string, year, month int) ([]models.BudgetAllocation, error)
	// RefreshEnvelopes recomputes Budgeted/Activity/Available on every
	// category for the given month and persists the projection.
	RefreshEnvelopes(userID string, year, month int) ([]models.Category, error)
}

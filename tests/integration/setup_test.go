package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"finwave/internal/handlers"
	"finwave/internal/logger"
	"finwave/internal/middleware"
	"finwave/internal/models"
	"finwave/internal/realtime"
	"finwave/internal/services"
	"finwave/internal/tenant"
	"finwave/internal/validator"
)

const testSyncKey = "integration-sync-key"

// testApp holds the full application stack for integration tests. The
// registry runs on an isolated in-memory SQLite; tenant databases live in a
// per-test temp directory.
type testApp struct {
	DB      *gorm.DB
	Tenants *tenant.Manager
	Router  *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupRegistryDB creates an isolated in-memory SQLite registry for a single
// test.
func setupRegistryDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	registryModels := []interface{}{
		&models.User{},
		&models.Tenant{},
		&models.UserSettings{},
	}
	if err := db.AutoMigrate(registryModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupRegistryDB(t)

	tenants, err := tenant.NewManager(t.TempDir(), services.MigrateIncomeFlags)
	if err != nil {
		t.Fatalf("failed to create tenant manager: %v", err)
	}
	t.Cleanup(tenants.CloseAll)

	var syncService services.SyncServicer
	hub := realtime.NewHub(func(tenantID string) (json.RawMessage, error) {
		return syncService.Snapshot(tenantID)
	})

	userService := services.NewUserService(db)
	tenantService := services.NewTenantService(db, tenants, hub)
	settingsService := services.NewSettingsService(db)
	accountService := services.NewAccountService(tenants)
	categoryService := services.NewCategoryService(tenants)
	transactionService := services.NewTransactionService(tenants)
	recipientService := services.NewRecipientService(tenants)
	budgetService := services.NewBudgetService(tenants)
	statsService := services.NewStatsService(tenants)
	syncService = services.NewSyncService(tenants, nil, hub)

	auth := middleware.NewAuth("test-secret")

	authHandler := handlers.NewAuthHandler(userService, auth)
	tenantHandler := handlers.NewTenantHandler(tenantService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	accountHandler := handlers.NewAccountHandler(accountService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	recipientHandler := handlers.NewRecipientHandler(recipientService)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	statsHandler := handlers.NewStatsHandler(statsService)
	syncHandler := handlers.NewSyncHandler(syncService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.POST("/register", authHandler.Register)
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/refresh", authHandler.Refresh)

	protected := v1.Group("/")
	protected.Use(auth.Middleware())

	protected.GET("/profile", authHandler.GetProfile)

	tenantRoutes := protected.Group("/tenants")
	tenantRoutes.POST("", tenantHandler.CreateTenant)
	tenantRoutes.GET("", tenantHandler.GetTenants)
	tenantRoutes.POST("/:id/activate", tenantHandler.ActivateTenant)
	tenantRoutes.DELETE("/:id", tenantHandler.DeleteTenant)

	settingsRoutes := protected.Group("/settings")
	settingsRoutes.GET("", settingsHandler.GetSettings)
	settingsRoutes.PUT("", settingsHandler.UpdateSettings)
	settingsRoutes.POST("/reset", settingsHandler.ResetSettings)
	settingsRoutes.GET("/search-history", settingsHandler.GetSearchHistory)
	settingsRoutes.POST("/search-history", settingsHandler.AddSearchTerm)

	accountGroupRoutes := protected.Group("/account-groups")
	accountGroupRoutes.POST("", accountHandler.CreateAccountGroup)
	accountGroupRoutes.GET("", accountHandler.GetAccountGroups)

	accountRoutes := protected.Group("/accounts")
	accountRoutes.POST("", accountHandler.CreateAccount)
	accountRoutes.GET("", accountHandler.GetAccounts)
	accountRoutes.GET("/:id", accountHandler.GetAccount)
	accountRoutes.DELETE("/:id", accountHandler.DeleteAccount)

	categoryGroupRoutes := protected.Group("/category-groups")
	categoryGroupRoutes.POST("", categoryHandler.CreateCategoryGroup)

	categoryRoutes := protected.Group("/categories")
	categoryRoutes.POST("", categoryHandler.CreateCategory)
	categoryRoutes.GET("", categoryHandler.GetCategories)
	categoryRoutes.GET("/available-funds", categoryHandler.GetAvailableFundsCategory)

	transactionRoutes := protected.Group("/transactions")
	transactionRoutes.POST("", transactionHandler.CreateTransaction)
	transactionRoutes.POST("/account-transfer", transactionHandler.CreateAccountTransfer)
	transactionRoutes.GET("", transactionHandler.ListTransactions)
	transactionRoutes.GET("/:id", transactionHandler.GetTransaction)
	transactionRoutes.DELETE("/:id", transactionHandler.DeleteTransaction)

	recipientRoutes := protected.Group("/recipients")
	recipientRoutes.POST("", recipientHandler.CreateRecipient)

	statsRoutes := protected.Group("/stats")
	statsRoutes.GET("/balance", statsHandler.GetActualBalance)
	statsRoutes.GET("/projected-balance", statsHandler.GetProjectedBalance)

	budgetRoutes := protected.Group("/budget")
	budgetRoutes.POST("/allocations", budgetHandler.Allocate)
	budgetRoutes.GET("/allocations", budgetHandler.GetAllocations)
	budgetRoutes.POST("/refresh", budgetHandler.RefreshEnvelopes)

	syncRoutes := protected.Group("/sync")
	syncRoutes.POST("/changes", middleware.SyncKeyMiddleware(testSyncKey), syncHandler.ApplyChanges)
	syncRoutes.GET("/queue", syncHandler.GetQueue)

	return &testApp{DB: db, Tenants: tenants, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// syncRequest is request plus the X-Sync-Key header.
func (app *testApp) syncRequest(path, body, token, syncKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Sync-Key", syncKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the access token, refresh
// token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// setupWorkspace registers a user, creates a tenant and activates it.
// Returns the access token and tenant ID.
func (app *testApp) setupWorkspace(t *testing.T, email string) (token, tenantID string) {
	t.Helper()
	token, _, _ = app.registerUser(t, email, "password123")

	rec := app.request("POST", "/api/v1/tenants", `{"name":"Haushalt"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tenant failed: %d %s", rec.Code, rec.Body.String())
	}
	ten := parseJSON(t, rec)["tenant"].(map[string]interface{})
	tenantID = ten["id"].(string)

	rec = app.request("POST", "/api/v1/tenants/"+tenantID+"/activate", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate tenant failed: %d %s", rec.Code, rec.Body.String())
	}
	return token, tenantID
}

// createAccount creates an account group plus an account and returns the
// account ID.
func (app *testApp) createAccount(t *testing.T, token, name string) string {
	t.Helper()
	rec := app.request("POST", "/api/v1/account-groups", `{"name":"Konten"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account group failed: %d %s", rec.Code, rec.Body.String())
	}
	group := parseJSON(t, rec)["account_group"].(map[string]interface{})

	body := fmt.Sprintf(`{"name":%q,"group_id":%q}`, name, group["id"].(string))
	rec = app.request("POST", "/api/v1/accounts", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["account"].(map[string]interface{})["id"].(string)
}

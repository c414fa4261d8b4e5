package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"finwave/internal/amqp"
	"finwave/internal/config"
	"finwave/internal/database"
	"finwave/internal/handlers"
	"finwave/internal/logger"
	"finwave/internal/middleware"
	"finwave/internal/realtime"
	"finwave/internal/services"
	"finwave/internal/tenant"
	"finwave/internal/validator"
)

const drainInterval = 15 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	tenants, err := tenant.NewManager(appConfig.TenantDataDir, services.MigrateIncomeFlags)
	if err != nil {
		return fmt.Errorf("failed to create tenant manager: %w", err)
	}
	defer tenants.CloseAll()

	var publisher *amqp.Publisher
	if appConfig.AMQPURL != "" {
		publisher, err = amqp.NewPublisher(appConfig.AMQPURL, appConfig.SyncExchange)
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP broker: %w", err)
		}
		defer publisher.Close()
	} else {
		log.Warn("AMQP_URL not set; sync queue entries will not be published")
	}

	// The hub needs the sync service's snapshot and the sync service needs
	// the hub, so the hub is created first with a late-bound snapshot func.
	var syncService services.SyncServicer
	hub := realtime.NewHub(func(tenantID string) (json.RawMessage, error) {
		return syncService.Snapshot(tenantID)
	})

	db := dbManager.DB()
	userService := services.NewUserService(db)
	tenantService := services.NewTenantService(db, tenants, hub)
	settingsService := services.NewSettingsService(db)
	accountService := services.NewAccountService(tenants)
	categoryService := services.NewCategoryService(tenants)
	transactionService := services.NewTransactionService(tenants)
	recipientService := services.NewRecipientService(tenants)
	tagService := services.NewTagService(tenants)
	ruleService := services.NewRuleService(tenants)
	planningService := services.NewPlanningService(tenants)
	statsService := services.NewStatsService(tenants)
	budgetService := services.NewBudgetService(tenants)
	syncService = services.NewSyncService(tenants, publisher, hub)

	auth := middleware.NewAuth(appConfig.JWTSecret)

	authHandler := handlers.NewAuthHandler(userService, auth)
	tenantHandler := handlers.NewTenantHandler(tenantService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	accountHandler := handlers.NewAccountHandler(accountService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	recipientHandler := handlers.NewRecipientHandler(recipientService)
	tagHandler := handlers.NewTagHandler(tagService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	planningHandler := handlers.NewPlanningHandler(planningService)
	statsHandler := handlers.NewStatsHandler(statsService)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	syncHandler := handlers.NewSyncHandler(syncService)
	wsHandler := handlers.NewWSHandler(hub, tenantService)

	validator.Register()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Sync-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	authRoutes := v1.Group("/auth")
	authRoutes.POST("/register", authHandler.Register)
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(auth.Middleware())

	protected.GET("/profile", authHandler.GetProfile)
	protected.POST("/auth/logout", authHandler.Logout)

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
	accountGroupRoutes.PUT("/:id", accountHandler.UpdateAccountGroup)
	accountGroupRoutes.DELETE("/:id", accountHandler.DeleteAccountGroup)

	accountRoutes := protected.Group("/accounts")
	accountRoutes.POST("", accountHandler.CreateAccount)
	accountRoutes.GET("", accountHandler.GetAccounts)
	accountRoutes.GET("/:id", accountHandler.GetAccount)
	accountRoutes.PUT("/:id", accountHandler.UpdateAccount)
	accountRoutes.DELETE("/:id", accountHandler.DeleteAccount)

	categoryGroupRoutes := protected.Group("/category-groups")
	categoryGroupRoutes.POST("", categoryHandler.CreateCategoryGroup)
	categoryGroupRoutes.GET("", categoryHandler.GetCategoryGroups)
	categoryGroupRoutes.PUT("/:id", categoryHandler.UpdateCategoryGroup)
	categoryGroupRoutes.DELETE("/:id", categoryHandler.DeleteCategoryGroup)

	categoryRoutes := protected.Group("/categories")
	categoryRoutes.POST("", categoryHandler.CreateCategory)
	categoryRoutes.GET("", categoryHandler.GetCategories)
	categoryRoutes.GET("/available-funds", categoryHandler.GetAvailableFundsCategory)
	categoryRoutes.GET("/:id", categoryHandler.GetCategory)
	categoryRoutes.PUT("/:id", categoryHandler.UpdateCategory)
	categoryRoutes.DELETE("/:id", categoryHandler.DeleteCategory)

	transactionRoutes := protected.Group("/transactions")
	transactionRoutes.POST("", transactionHandler.CreateTransaction)
	transactionRoutes.POST("/account-transfer", transactionHandler.CreateAccountTransfer)
	transactionRoutes.POST("/category-transfer", transactionHandler.CreateCategoryTransfer)
	transactionRoutes.GET("", transactionHandler.ListTransactions)
	transactionRoutes.GET("/:id", transactionHandler.GetTransaction)
	transactionRoutes.PUT("/:id", transactionHandler.UpdateTransaction)
	transactionRoutes.DELETE("/:id", transactionHandler.DeleteTransaction)
	transactionRoutes.PUT("/batch-mode", transactionHandler.SetBatchMode)

	recipientRoutes := protected.Group("/recipients")
	recipientRoutes.POST("", recipientHandler.CreateRecipient)
	recipientRoutes.GET("", recipientHandler.GetRecipients)
	recipientRoutes.PUT("/:id", recipientHandler.UpdateRecipient)
	recipientRoutes.DELETE("/:id", recipientHandler.DeleteRecipient)

	tagRoutes := protected.Group("/tags")
	tagRoutes.POST("", tagHandler.CreateTag)
	tagRoutes.GET("", tagHandler.GetTags)
	tagRoutes.PUT("/:id", tagHandler.UpdateTag)
	tagRoutes.DELETE("/:id", tagHandler.DeleteTag)

	ruleRoutes := protected.Group("/rules")
	ruleRoutes.POST("", ruleHandler.CreateRule)
	ruleRoutes.GET("", ruleHandler.GetRules)
	ruleRoutes.PUT("/:id", ruleHandler.UpdateRule)
	ruleRoutes.DELETE("/:id", ruleHandler.DeleteRule)

	planningRoutes := protected.Group("/plannings")
	planningRoutes.POST("", planningHandler.CreatePlanning)
	planningRoutes.GET("", planningHandler.GetPlannings)
	planningRoutes.GET("/:id", planningHandler.GetPlanning)
	planningRoutes.PUT("/:id", planningHandler.UpdatePlanning)
	planningRoutes.DELETE("/:id", planningHandler.DeletePlanning)
	planningRoutes.GET("/:id/occurrences", planningHandler.GetOccurrences)
	planningRoutes.POST("/:id/execute", planningHandler.ExecutePlanning)
	planningRoutes.POST("/:id/skip", planningHandler.SkipPlanning)

	statsRoutes := protected.Group("/stats")
	statsRoutes.GET("/balance", statsHandler.GetActualBalance)
	statsRoutes.GET("/projected-balance", statsHandler.GetProjectedBalance)
	statsRoutes.GET("/monthly-series", statsHandler.GetMonthlySeries)

	budgetRoutes := protected.Group("/budget")
	budgetRoutes.POST("/allocations", budgetHandler.Allocate)
	budgetRoutes.GET("/allocations", budgetHandler.GetAllocations)
	budgetRoutes.POST("/refresh", budgetHandler.RefreshEnvelopes)

	syncRoutes := protected.Group("/sync")
	syncRoutes.POST("/changes", middleware.SyncKeyMiddleware(appConfig.SyncKey), syncHandler.ApplyChanges)
	syncRoutes.GET("/queue", syncHandler.GetQueue)
	syncRoutes.POST("/queue/drain", syncHandler.DrainQueue)

	protected.GET("/ws", wsHandler.Serve)

	srv := &http.Server{
		Addr:    ":" + appConfig.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Starting finwave API server on port %s", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Background sync drainer: periodically publishes pending queue entries
	// for every active session.
	g.Go(func() error {
		ticker := time.NewTicker(drainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, userID := range tenants.ActiveUsers() {
					if published, err := syncService.DrainOnce(ctx, userID); err != nil {
						log.Warnw("sync drain failed", "user_id", userID, "error", err)
					} else if published > 0 {
						log.Debugw("sync drain", "user_id", userID, "published", published)
					}
				}
			}
		}
	})

	return g.Wait()
}

// main.go
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/analysis"
	"github.com/logcentral/platform/config"
	"github.com/logcentral/platform/endpoint"
	"github.com/logcentral/platform/middleware"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/notification"
	"github.com/logcentral/platform/repository"
	"github.com/logcentral/platform/util"
)

func main() {
	// Load the configuration
	cfg := config.LoadConfig()

	db, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Client{},
		&model.ContactPerson{},
		&model.RegisteredService{},
		&model.LogEntry{},
		&model.User{},
		&model.UserRole{},
		&model.UserClientAccess{},
		&model.Session{},
		&model.SecurityLog{},
	); err != nil {
		log.Fatalf("Error migrating schema: %v", err)
	}

	util.SetSecurityLoggerDB(db)

	if email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"); email != "" && password != "" {
		salt, err := util.GenerateSalt()
		if err != nil {
			log.Fatalf("Error generating admin salt: %v", err)
		}
		hash, err := util.HashPasswordArgon2(password, salt)
		if err != nil {
			log.Fatalf("Error hashing admin password: %v", err)
		}
		if err := model.SeedAdminUser(db, model.User{
			Username:     envOr("ADMIN_USERNAME", "admin"),
			Email:        email,
			PasswordHash: hash,
			PasswordSalt: salt,
			IsActive:     true,
		}); err != nil {
			log.Printf("admin seed skipped: %v", err)
		}
	}

	if _, err := config.ConnectRedis(); err != nil {
		// The rate limiter fails open without Redis; the API stays up.
		log.Printf("redis unavailable, rate limiting disabled: %v", err)
	}

	logs := repository.NewLogRepository(db)
	services := repository.NewServiceRepository(db)
	clients := repository.NewClientRepository(db)

	analyzer := analysis.NewAnalyzer(cfg, logs)
	notifier := notification.NewDispatcher(clients)
	worker := analysis.NewWorker(analyzer, logs, services, notifier,
		cfg.AnalysisWorkers, cfg.AnalysisQueueSize)
	defer worker.Stop()

	// Set Gin mode from config
	gin.SetMode(cfg.GinMode)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DatabaseMiddleware(db))
	router.Use(middleware.AnalyzerMiddleware(worker))
	router.Use(middleware.AnalysisServiceMiddleware(analyzer))
	router.Use(middleware.EndpointCallLogger())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", cfg.AppName),
		})
	})

	// Log ingestion authenticates by API key, not by user token. The
	// fixed-window limiter keys on the submitted key so one noisy service
	// cannot starve the others behind the same NAT.
	router.POST("/api/logs", middleware.RateLimiter(middleware.RateLimitConfig{
		Limit:  600,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.GetHeader("X-API-Key")
		},
	}), endpoint.IngestLog)

	auth := router.Group("/api/auth")
	{
		auth.POST("/login", middleware.RateLimiter(middleware.RateLimitConfig{
			Limit:  5,
			Window: 15 * time.Minute,
		}), endpoint.Login)
		auth.POST("/password-reset/request", middleware.RateLimiter(middleware.RateLimitConfig{
			Limit:  3,
			Window: time.Hour,
		}), endpoint.RequestPasswordReset)
		auth.POST("/password-reset", endpoint.ResetPassword)

		auth.POST("/logout", middleware.JWTAuth(), endpoint.Logout)
		auth.GET("/validate", middleware.JWTAuth(), endpoint.ValidateToken)
		auth.POST("/change-password", middleware.JWTAuth(), endpoint.ChangePassword)
	}

	api := router.Group("/api", middleware.JWTAuth())
	{
		api.GET("/logs/:id", endpoint.GetLog)
		api.POST("/logs/search", endpoint.SearchLogs)
		api.POST("/logs/:id/analyze",
			middleware.RequireRoles(model.RoleAdmin, model.RoleSupport), endpoint.AnalyzeLog)

		api.GET("/services",
			middleware.RequireRoles(model.RoleAdmin, model.RoleSupport), endpoint.ListServices)
		api.GET("/services/search",
			middleware.RequireRoles(model.RoleAdmin, model.RoleSupport), endpoint.SearchServices)
		api.GET("/services/offline",
			middleware.RequireRoles(model.RoleAdmin, model.RoleSupport), endpoint.OfflineServices)
		api.GET("/services/:id", endpoint.GetService)

		admin := api.Group("", middleware.RequireRoles(model.RoleAdmin))
		{
			admin.POST("/services", endpoint.CreateService)
			admin.PUT("/services/:id", endpoint.UpdateService)
			admin.POST("/services/:id/activate", endpoint.ActivateService)
			admin.POST("/services/:id/deactivate", endpoint.DeactivateService)
			admin.POST("/services/:id/regenerate-key", endpoint.RegenerateServiceAPIKey)

			admin.POST("/clients", endpoint.CreateClient)
			admin.PUT("/clients/:id", endpoint.UpdateClient)
			admin.POST("/clients/:id/activate", endpoint.ActivateClient)
			admin.POST("/clients/:id/deactivate", endpoint.DeactivateClient)
			admin.POST("/clients/:id/contacts", endpoint.AddClientContact)
			admin.PUT("/clients/:id/contacts/:contactId", endpoint.UpdateClientContact)
			admin.DELETE("/clients/:id/contacts/:contactId", endpoint.RemoveClientContact)
			admin.PUT("/clients/:id/notification-settings", endpoint.UpdateClientNotificationSettings)
		}

		api.GET("/clients",
			middleware.RequireRoles(model.RoleAdmin, model.RoleSupport), endpoint.ListClients)
		api.GET("/clients/search",
			middleware.RequireRoles(model.RoleAdmin, model.RoleSupport), endpoint.SearchClients)
		api.GET("/clients/by-number/:number", endpoint.GetClientByNumber)
		api.GET("/clients/:id", endpoint.GetClient)
	}

	// Stop the worker pool before exiting so queued analyses finish.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		worker.Stop()
		os.Exit(0)
	}()

	// Start server on specified port
	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package endpoint_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
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
	"gorm.io/gorm"
)

// SetupTestServer initializes the test DB, migrates models and wires a Gin
// router mirroring the production route layout. It returns the router, DB
// and a cleanup function that drops tables and stops the analysis worker.
func SetupTestServer(t *testing.T) (*gin.Engine, *gorm.DB, func()) {
	t.Helper()

	db, err := config.ConnectDB()
	if err != nil {
		t.Fatalf("failed to connect test DB: %v", err)
	}

	testModels := []interface{}{
		&model.Client{}, &model.ContactPerson{}, &model.RegisteredService{},
		&model.LogEntry{}, &model.User{}, &model.UserRole{},
		&model.UserClientAccess{}, &model.Session{}, &model.SecurityLog{},
	}
	if err := db.AutoMigrate(testModels...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	logs := repository.NewLogRepository(db)
	services := repository.NewServiceRepository(db)
	clients := repository.NewClientRepository(db)

	analyzer := analysis.NewAnalyzer(config.LoadConfig(), logs)
	notifier := notification.NewDispatcher(clients)
	worker := analysis.NewWorker(analyzer, logs, services, notifier, 1, 16)

	r := gin.New()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.AnalyzerMiddleware(worker))
	r.Use(middleware.AnalysisServiceMiddleware(analyzer))

	// The limiter fails open without Redis; wiring it here keeps the
	// ingestion middleware chain identical to the production router.
	r.POST("/api/logs", middleware.RateLimiter(middleware.RateLimitConfig{
		Limit:  600,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.GetHeader("X-API-Key")
		},
	}), endpoint.IngestLog)

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", endpoint.Login)
		auth.POST("/password-reset/request", endpoint.RequestPasswordReset)
		auth.POST("/password-reset", endpoint.ResetPassword)
		auth.POST("/logout", middleware.JWTAuth(), endpoint.Logout)
		auth.GET("/validate", middleware.JWTAuth(), endpoint.ValidateToken)
		auth.POST("/change-password", middleware.JWTAuth(), endpoint.ChangePassword)
	}

	api := r.Group("/api", middleware.JWTAuth())
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

	cleanup := func() {
		worker.Stop()
		if err := db.Migrator().DropTable(testModels...); err != nil {
			t.Errorf("failed to drop tables during cleanup: %v", err)
		}
	}

	return r, db, cleanup
}

// doRequest performs an HTTP request against the router and returns the
// recorder plus the decoded JSON body (nil when the body is empty or not
// JSON).
func doRequest(t *testing.T, r http.Handler, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			return w, nil
		}
	}
	return w, response
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// mustCreateUser inserts a user with the given role and password directly.
func mustCreateUser(t *testing.T, db *gorm.DB, email, password, role string) model.User {
	t.Helper()

	salt, err := util.GenerateSalt()
	if err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}
	hash, err := util.HashPasswordArgon2(password, salt)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := model.User{
		Username:     email,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		IsActive:     true,
	}
	if role != "" {
		user.Roles = []model.UserRole{{RoleName: role}}
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}

// loginUser logs the user in through the API and returns the session token.
func loginUser(t *testing.T, r http.Handler, email, password string) string {
	t.Helper()

	w, resp := doRequest(t, r, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s returned %d: %s", email, w.Code, w.Body.String())
	}

	data, _ := resp["data"].(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("login %s returned no token: %s", email, w.Body.String())
	}
	return token
}

// mustCreateClientAndService seeds a tenant with one active service.
func mustCreateClientAndService(t *testing.T, db *gorm.DB) (model.Client, model.RegisteredService) {
	t.Helper()

	client := model.Client{
		Name:         "Acme",
		ClientNumber: fmt.Sprintf("C-%d", time.Now().UnixNano()),
		IsActive:     true,
	}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	service := model.RegisteredService{
		Name:           "billing-api",
		APIKey:         util.GenerateAPIKey(),
		ClientID:       client.ID,
		ClientName:     client.Name,
		IsActive:       true,
		AlertsEnabled:  true,
		AlertThreshold: model.LevelError,
	}
	if err := db.Create(&service).Error; err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return client, service
}

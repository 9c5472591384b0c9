package endpoint

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/auth"
	"github.com/logcentral/platform/config"
	"github.com/logcentral/platform/middleware"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/repository"
	"github.com/logcentral/platform/util"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type createServiceRequest struct {
	Name                     string                 `json:"name"`
	Description              string                 `json:"description"`
	Version                  string                 `json:"version"`
	ServiceType              string                 `json:"service_type"`
	ClientID                 string                 `json:"client_id"`
	Environment              string                 `json:"environment"`
	ReportingIntervalMinutes int                    `json:"reporting_interval_minutes"`
	AlertsEnabled            *bool                  `json:"alerts_enabled"`
	AlertThreshold           *model.LogLevel        `json:"alert_threshold"`
	AlertEmailRecipients     []string               `json:"alert_email_recipients"`
	WebhookURL               string                 `json:"webhook_url"`
	SourceCodePath           string                 `json:"source_code_path"`
	Metadata                 map[string]interface{} `json:"metadata"`
}

// ListServices returns all services, active only unless include_inactive=true.
func ListServices(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))

	var services []model.RegisteredService
	var err error
	if clientID := c.Query("client_id"); clientID != "" {
		services, err = repository.NewServiceRepository(db).GetByClientID(clientID)
	} else {
		services, err = repository.NewServiceRepository(db).GetAll(includeInactive)
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to list services", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Services retrieved", Data: services})
}

// GetService returns one service by id. The caller must hold access to the
// owning client; the payload includes the service's API key.
func GetService(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	service, err := repository.NewServiceRepository(db).GetByID(id)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Service not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve service", Err: err})
		return
	}

	userID := middleware.GetUserID(c)
	hasAccess, err := auth.New(db).HasClientAccess(userID, service.ClientID, model.AccessRead)
	if err != nil || !hasAccess {
		util.CallUserForbidden(c, util.APIErrorParams{
			Msg: "No access to this service",
			Err: fmt.Errorf("access denied"),
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Service retrieved", Data: service})
}

// CreateService registers a service under a client and issues its API key.
// The key is only returned in full from this call and from an explicit
// regeneration.
func CreateService(c *gin.Context) {
	var req createServiceRequest
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}
	req.Name = util.NormalizeName(req.Name)
	if req.Name == "" || req.ClientID == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Service name and client_id are required",
			Err: fmt.Errorf("missing required fields"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	client, err := repository.NewClientRepository(db).GetByID(req.ClientID)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Client not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to verify client", Err: err})
		return
	}

	service := model.RegisteredService{
		Name:                     req.Name,
		Description:              req.Description,
		Version:                  req.Version,
		ServiceType:              req.ServiceType,
		APIKey:                   util.GenerateAPIKey(),
		ClientID:                 client.ID,
		ClientName:               client.Name,
		Environment:              req.Environment,
		ReportingIntervalMinutes: req.ReportingIntervalMinutes,
		IsActive:                 true,
		AlertsEnabled:            true,
		AlertThreshold:           model.LevelError,
		WebhookURL:               req.WebhookURL,
		SourceCodePath:           req.SourceCodePath,
		Metadata:                 datatypes.JSONMap(req.Metadata),
	}
	if req.AlertsEnabled != nil {
		service.AlertsEnabled = *req.AlertsEnabled
	}
	if req.AlertThreshold != nil {
		service.AlertThreshold = *req.AlertThreshold
	}
	if len(req.AlertEmailRecipients) > 0 {
		service.AlertEmailRecipients = datatypes.NewJSONSlice(req.AlertEmailRecipients)
	}
	if service.ReportingIntervalMinutes <= 0 {
		service.ReportingIntervalMinutes = 60
	}

	if err := repository.NewServiceRepository(db).Add(&service); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to register service", Err: err})
		return
	}
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Service registered", Data: service})
}

// UpdateService applies a partial update. Only fields present in the body
// change; the API key, client binding and online status are never writable
// here.
func UpdateService(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Name                     *string                `json:"name"`
		Description              *string                `json:"description"`
		Version                  *string                `json:"version"`
		ServiceType              *string                `json:"service_type"`
		Environment              *string                `json:"environment"`
		ReportingIntervalMinutes *int                   `json:"reporting_interval_minutes"`
		AlertsEnabled            *bool                  `json:"alerts_enabled"`
		AlertThreshold           *model.LogLevel        `json:"alert_threshold"`
		AlertEmailRecipients     []string               `json:"alert_email_recipients"`
		WebhookURL               *string                `json:"webhook_url"`
		SourceCodePath           *string                `json:"source_code_path"`
		Metadata                 map[string]interface{} `json:"metadata"`
	}
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	services := repository.NewServiceRepository(db)

	service, err := services.GetByID(id)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Service not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve service", Err: err})
		return
	}

	if req.Name != nil {
		name := util.NormalizeName(*req.Name)
		if name == "" {
			util.CallUserError(c, util.APIErrorParams{
				Msg: "Service name cannot be empty",
				Err: fmt.Errorf("empty name"),
			})
			return
		}
		service.Name = name
	}
	if req.Description != nil {
		service.Description = *req.Description
	}
	if req.Version != nil {
		service.Version = *req.Version
	}
	if req.ServiceType != nil {
		service.ServiceType = *req.ServiceType
	}
	if req.Environment != nil {
		service.Environment = *req.Environment
	}
	if req.ReportingIntervalMinutes != nil && *req.ReportingIntervalMinutes > 0 {
		service.ReportingIntervalMinutes = *req.ReportingIntervalMinutes
	}
	if req.AlertsEnabled != nil {
		service.AlertsEnabled = *req.AlertsEnabled
	}
	if req.AlertThreshold != nil {
		service.AlertThreshold = *req.AlertThreshold
	}
	if req.AlertEmailRecipients != nil {
		service.AlertEmailRecipients = datatypes.NewJSONSlice(req.AlertEmailRecipients)
	}
	if req.WebhookURL != nil {
		service.WebhookURL = *req.WebhookURL
	}
	if req.SourceCodePath != nil {
		service.SourceCodePath = *req.SourceCodePath
	}
	if req.Metadata != nil {
		service.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if _, err := services.Update(service); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update service", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Service updated", Data: service})
}

// ActivateService re-enables log acceptance for a service.
func ActivateService(c *gin.Context) {
	setServiceActive(c, true)
}

// DeactivateService stops a service from accepting logs without deleting
// its history.
func DeactivateService(c *gin.Context) {
	setServiceActive(c, false)
}

func setServiceActive(c *gin.Context, active bool) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	services := repository.NewServiceRepository(db)
	var changed bool
	var err error
	if active {
		changed, err = services.Activate(id)
	} else {
		changed, err = services.Deactivate(id)
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to change service state", Err: err})
		return
	}
	if !changed {
		exists, exErr := services.Exists(id)
		if exErr == nil && !exists {
			util.CallErrorNotFound(c, util.APIErrorParams{
				Msg: "Service not found",
				Err: gorm.ErrRecordNotFound,
			})
			return
		}
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Service state was not updated",
			Err: fmt.Errorf("no rows affected for service %s", id),
		})
		return
	}

	msg := "Service deactivated"
	if active {
		msg = "Service activated"
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  msg,
		Data: map[string]interface{}{"id": id, "is_active": active},
	})
}

// RegenerateServiceAPIKey replaces the service's credential. Every copy of
// the old key stops working immediately.
func RegenerateServiceAPIKey(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	newKey, err := repository.NewServiceRepository(db).RegenerateAPIKey(id)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Service not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to regenerate API key", Err: err})
		return
	}

	util.LogAPIKeyRegenerated(middleware.GetUserEmail(c), id, c.ClientIP())
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "API key regenerated",
		Data: map[string]interface{}{"id": id, "api_key": newKey},
	})
}

// SearchServices matches name, description or service type, optionally
// scoped to one client.
func SearchServices(c *gin.Context) {
	term := c.Query("q")
	if term == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Search term is required",
			Err: fmt.Errorf("missing q parameter"),
		})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	services, err := repository.NewServiceRepository(db).Search(term, c.Query("client_id"))
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Service search failed", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Services retrieved", Data: services})
}

// OfflineServices lists active services that have gone quiet for longer
// than their reporting interval allows.
func OfflineServices(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	stale, err := repository.NewServiceRepository(db).
		GetWithoutRecentLogs(time.Now().UTC(), config.LoadConfig().OfflineGraceFactor)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to list offline services", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Offline services retrieved", Data: stale})
}

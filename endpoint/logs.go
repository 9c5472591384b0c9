package endpoint

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/auth"
	"github.com/logcentral/platform/middleware"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/repository"
	"github.com/logcentral/platform/util"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type createLogRequest struct {
	Timestamp             time.Time              `json:"timestamp"`
	Level                 model.LogLevel         `json:"level"`
	Message               string                 `json:"message"`
	Category              string                 `json:"category"`
	CorrelationID         string                 `json:"correlation_id"`
	ContextData           string                 `json:"context_data"`
	ExceptionDetails      string                 `json:"exception_details"`
	StackTrace            string                 `json:"stack_trace"`
	ContainsSensitiveData bool                   `json:"contains_sensitive_data"`
	Metadata              map[string]interface{} `json:"metadata"`
}

type createLogResponse struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
	Success    bool      `json:"success"`
}

// IngestLog accepts a log submission authenticated by the X-API-Key header.
// The service's online status is refreshed on every accepted submission, and
// error-level entries are queued for background analysis after the response
// is sent.
func IngestLog(c *gin.Context) {
	var req createLogRequest
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}
	if req.Message == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Log payload is missing required fields",
			Err: fmt.Errorf("message is required"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	apiKey := c.GetHeader("X-API-Key")
	service, err := auth.New(db).AuthenticateService(apiKey)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidAPIKey) {
			util.LogAPIKeyRejected(c.ClientIP(), c.Request.UserAgent())
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Invalid or unauthorized API key",
				Err: err,
			})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Service authentication failed", Err: err})
		return
	}

	now := time.Now().UTC()

	// Online-status refresh is best effort and deliberately not part of the
	// log write; a failure here must not reject the submission.
	services := repository.NewServiceRepository(db)
	if _, err := services.UpdateOnlineStatus(service.ID, true, now); err != nil {
		log.Printf("ingest: online-status update failed for service %s: %v", service.ID, err)
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}

	entry := model.LogEntry{
		Timestamp:             timestamp,
		Level:                 req.Level,
		Message:               req.Message,
		ServiceID:             service.ID,
		ServiceName:           service.Name,
		ServiceVersion:        service.Version,
		Environment:           service.Environment,
		ClientID:              service.ClientID,
		ClientName:            service.ClientName,
		Category:              req.Category,
		CorrelationID:         req.CorrelationID,
		ContextData:           req.ContextData,
		ExceptionDetails:      req.ExceptionDetails,
		StackTrace:            req.StackTrace,
		ContainsSensitiveData: req.ContainsSensitiveData,
		IPAddress:             c.ClientIP(),
		AnalyzedByAI:          false,
		ReceivedAt:            now,
		Metadata:              datatypes.JSONMap(req.Metadata),
	}

	if err := repository.NewLogRepository(db).Add(&entry); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to store log entry", Err: err})
		return
	}

	if entry.Level >= model.LevelError {
		if worker := middleware.GetAnalyzer(c); worker != nil {
			worker.Submit(&entry)
		}
	}

	c.JSON(http.StatusCreated, createLogResponse{
		ID:         entry.ID,
		ReceivedAt: entry.ReceivedAt,
		Success:    true,
	})
}

// GetLog returns one entry. The caller must hold access to the entry's
// owning service.
func GetLog(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	entry, err := repository.NewLogRepository(db).GetByID(id)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Log not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve log", Err: err})
		return
	}

	userID := middleware.GetUserID(c)
	hasAccess, err := auth.New(db).HasServiceAccess(userID, entry.ServiceID, model.AccessRead)
	if err != nil || !hasAccess {
		util.CallUserForbidden(c, util.APIErrorParams{
			Msg: "No access to this log entry",
			Err: fmt.Errorf("access denied"),
		})
		return
	}

	c.JSON(http.StatusOK, entry)
}

type searchLogsRequest struct {
	StartDate     *time.Time      `json:"startDate"`
	EndDate       *time.Time      `json:"endDate"`
	ServiceID     string          `json:"serviceId"`
	ClientID      string          `json:"clientId"`
	MinLevel      *model.LogLevel `json:"minLevel"`
	Category      string          `json:"category"`
	CorrelationID string          `json:"correlationId"`
	SearchText    string          `json:"searchText"`
	Skip          int             `json:"skip"`
	Take          int             `json:"take"`
}

type searchLogsResponse struct {
	Logs       []model.LogEntry `json:"logs"`
	TotalCount int64            `json:"totalCount"`
	Success    bool             `json:"success"`
}

// SearchLogs filters entries by date range, service, client, level,
// category, correlation id and free text. The date range defaults to the
// last seven days.
//
// TotalCount is only populated from the service, client or (without search
// text) exact-level counters; a text-only search reports zero even when
// logs are returned. Callers tolerate this today, so the behavior is kept.
func SearchLogs(c *gin.Context) {
	var req searchLogsRequest
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -7)
	end := now
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if start.After(end) {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Start date must be before end date",
			Err: fmt.Errorf("invalid date range"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	logs := repository.NewLogRepository(db)

	params := repository.LogSearchParams{
		Start:         start,
		End:           end,
		ServiceID:     req.ServiceID,
		ClientID:      req.ClientID,
		MinLevel:      req.MinLevel,
		Category:      req.Category,
		CorrelationID: req.CorrelationID,
		Skip:          req.Skip,
		Take:          req.Take,
	}

	var entries []model.LogEntry
	var totalCount int64
	var err error

	if req.SearchText != "" {
		entries, err = logs.SearchByText(req.SearchText, params)
		if err == nil && len(entries) > 0 {
			switch {
			case req.ServiceID != "":
				totalCount, err = logs.CountByServiceID(req.ServiceID)
			case req.ClientID != "":
				totalCount, err = logs.CountByClientID(req.ClientID)
			}
		}
	} else {
		entries, err = logs.Search(params)
		if err == nil {
			switch {
			case req.MinLevel != nil:
				totalCount, err = logs.CountByLevel(*req.MinLevel)
			case req.ServiceID != "":
				totalCount, err = logs.CountByServiceID(req.ServiceID)
			case req.ClientID != "":
				totalCount, err = logs.CountByClientID(req.ClientID)
			}
		}
	}

	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Log search failed", Err: err})
		return
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}

	c.JSON(http.StatusOK, searchLogsResponse{
		Logs:       entries,
		TotalCount: totalCount,
		Success:    true,
	})
}

// AnalyzeLog runs the analysis collaborator synchronously for one entry and
// persists the summary before responding. Reserved for Admin and Support.
func AnalyzeLog(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	logs := repository.NewLogRepository(db)
	entry, err := logs.GetByID(id)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Log not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve log", Err: err})
		return
	}

	svc := middleware.GetAnalysisService(c)
	if svc == nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Analysis service not available",
			Err: fmt.Errorf("analysis service is nil"),
		})
		return
	}

	result, err := svc.AnalyzeLog(c.Request.Context(), entry)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Log analysis failed", Err: err})
		return
	}

	if _, err := logs.UpdateAIAnalysis(id, result.Summary); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to persist analysis result", Err: err})
		return
	}

	c.JSON(http.StatusOK, result)
}

package repository

import (
	"strings"
	"time"

	"github.com/logcentral/platform/model"
	"gorm.io/gorm"
)

// LogSearchParams narrows a log search. Zero values mean "no filter" except
// the date range, which callers must always resolve before querying.
type LogSearchParams struct {
	Start         time.Time
	End           time.Time
	ServiceID     string
	ClientID      string
	MinLevel      *model.LogLevel
	Category      string
	CorrelationID string
	Skip          int
	Take          int
}

// LogRepository is the persistence contract for log entries.
type LogRepository interface {
	Add(entry *model.LogEntry) error
	GetByID(id string) (*model.LogEntry, error)
	GetByServiceID(serviceID string, skip, take int) ([]model.LogEntry, error)
	GetByClientID(clientID string, skip, take int) ([]model.LogEntry, error)
	GetByLevel(level model.LogLevel, skip, take int) ([]model.LogEntry, error)
	Search(params LogSearchParams) ([]model.LogEntry, error)
	SearchByText(text string, params LogSearchParams) ([]model.LogEntry, error)
	UpdateAIAnalysis(id, summary string) (bool, error)
	CountByServiceID(serviceID string) (int64, error)
	CountByClientID(clientID string) (int64, error)
	CountByLevel(level model.LogLevel) (int64, error)
}

type logRepository struct {
	db *gorm.DB
}

// NewLogRepository returns a GORM-backed LogRepository.
func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Add(entry *model.LogEntry) error {
	return r.db.Create(entry).Error
}

func (r *logRepository) GetByID(id string) (*model.LogEntry, error) {
	var entry model.LogEntry
	if err := r.db.Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *logRepository) GetByServiceID(serviceID string, skip, take int) ([]model.LogEntry, error) {
	return r.listBy("service_id = ?", serviceID, skip, take)
}

func (r *logRepository) GetByClientID(clientID string, skip, take int) ([]model.LogEntry, error) {
	return r.listBy("client_id = ?", clientID, skip, take)
}

func (r *logRepository) GetByLevel(level model.LogLevel, skip, take int) ([]model.LogEntry, error) {
	return r.listBy("level = ?", level, skip, take)
}

func (r *logRepository) listBy(cond string, arg interface{}, skip, take int) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	err := r.db.Where(cond, arg).
		Order("timestamp DESC").
		Offset(skip).
		Limit(normalizeTake(take)).
		Find(&entries).Error
	return entries, err
}

func (r *logRepository) Search(params LogSearchParams) ([]model.LogEntry, error) {
	query := r.db.Where("timestamp >= ? AND timestamp <= ?", params.Start, params.End)

	if params.ServiceID != "" {
		query = query.Where("service_id = ?", params.ServiceID)
	}
	if params.ClientID != "" {
		query = query.Where("client_id = ?", params.ClientID)
	}
	if params.MinLevel != nil {
		query = query.Where("level >= ?", *params.MinLevel)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.CorrelationID != "" {
		query = query.Where("correlation_id = ?", params.CorrelationID)
	}

	var entries []model.LogEntry
	err := query.
		Order("timestamp DESC").
		Offset(params.Skip).
		Limit(normalizeTake(params.Take)).
		Find(&entries).Error
	return entries, err
}

func (r *logRepository) SearchByText(text string, params LogSearchParams) ([]model.LogEntry, error) {
	needle := "%" + strings.ToLower(text) + "%"
	query := r.db.
		Where("timestamp >= ? AND timestamp <= ?", params.Start, params.End).
		Where("LOWER(message) LIKE ? OR LOWER(category) LIKE ? OR LOWER(exception_details) LIKE ? OR LOWER(stack_trace) LIKE ?",
			needle, needle, needle, needle)

	if params.ServiceID != "" {
		query = query.Where("service_id = ?", params.ServiceID)
	}
	if params.ClientID != "" {
		query = query.Where("client_id = ?", params.ClientID)
	}

	var entries []model.LogEntry
	err := query.
		Order("timestamp DESC").
		Offset(params.Skip).
		Limit(normalizeTake(params.Take)).
		Find(&entries).Error
	return entries, err
}

// UpdateAIAnalysis marks the entry analyzed and records the summary. The
// analysis fields are the only mutable part of a log entry.
func (r *logRepository) UpdateAIAnalysis(id, summary string) (bool, error) {
	res := r.db.Model(&model.LogEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"analyzed_by_ai":     true,
			"ai_analysis_result": summary,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *logRepository) CountByServiceID(serviceID string) (int64, error) {
	return r.countBy("service_id = ?", serviceID)
}

func (r *logRepository) CountByClientID(clientID string) (int64, error) {
	return r.countBy("client_id = ?", clientID)
}

func (r *logRepository) CountByLevel(level model.LogLevel) (int64, error) {
	return r.countBy("level = ?", level)
}

func (r *logRepository) countBy(cond string, arg interface{}) (int64, error) {
	var count int64
	err := r.db.Model(&model.LogEntry{}).Where(cond, arg).Count(&count).Error
	return count, err
}

func normalizeTake(take int) int {
	if take <= 0 {
		return 100
	}
	return take
}

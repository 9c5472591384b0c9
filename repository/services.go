package repository

import (
	"time"

	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/util"
	"gorm.io/gorm"
)

// ServiceRepository is the persistence contract for registered services.
type ServiceRepository interface {
	Add(service *model.RegisteredService) error
	Update(service *model.RegisteredService) (bool, error)
	GetByID(id string) (*model.RegisteredService, error)
	GetByAPIKey(apiKey string) (*model.RegisteredService, error)
	GetByClientID(clientID string) ([]model.RegisteredService, error)
	GetAll(includeInactive bool) ([]model.RegisteredService, error)
	UpdateOnlineStatus(id string, online bool, lastLogReceivedAt time.Time) (bool, error)
	Activate(id string) (bool, error)
	Deactivate(id string) (bool, error)
	RegenerateAPIKey(id string) (string, error)
	Search(term, clientID string) ([]model.RegisteredService, error)
	Exists(id string) (bool, error)
	GetWithoutRecentLogs(now time.Time, graceFactor int) ([]model.RegisteredService, error)
}

type serviceRepository struct {
	db *gorm.DB
}

// NewServiceRepository returns a GORM-backed ServiceRepository.
func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) Add(service *model.RegisteredService) error {
	return r.db.Create(service).Error
}

func (r *serviceRepository) Update(service *model.RegisteredService) (bool, error) {
	res := r.db.Save(service)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *serviceRepository) GetByID(id string) (*model.RegisteredService, error) {
	var service model.RegisteredService
	if err := r.db.Where("id = ?", id).First(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func (r *serviceRepository) GetByAPIKey(apiKey string) (*model.RegisteredService, error) {
	var service model.RegisteredService
	if err := r.db.Where("api_key = ?", apiKey).First(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func (r *serviceRepository) GetByClientID(clientID string) ([]model.RegisteredService, error) {
	var services []model.RegisteredService
	err := r.db.Where("client_id = ?", clientID).Order("name ASC").Find(&services).Error
	return services, err
}

func (r *serviceRepository) GetAll(includeInactive bool) ([]model.RegisteredService, error) {
	query := r.db
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var services []model.RegisteredService
	err := query.Order("name ASC").Find(&services).Error
	return services, err
}

func (r *serviceRepository) UpdateOnlineStatus(id string, online bool, lastLogReceivedAt time.Time) (bool, error) {
	res := r.db.Model(&model.RegisteredService{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online":            online,
			"last_log_received_at": lastLogReceivedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *serviceRepository) Activate(id string) (bool, error) {
	return r.setActive(id, true)
}

func (r *serviceRepository) Deactivate(id string) (bool, error) {
	return r.setActive(id, false)
}

func (r *serviceRepository) setActive(id string, active bool) (bool, error) {
	res := r.db.Model(&model.RegisteredService{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RegenerateAPIKey replaces the service credential. The old key stops
// authenticating as soon as the update commits.
func (r *serviceRepository) RegenerateAPIKey(id string) (string, error) {
	newKey := util.GenerateAPIKey()
	res := r.db.Model(&model.RegisteredService{}).
		Where("id = ?", id).
		Update("api_key", newKey)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return newKey, nil
}

func (r *serviceRepository) Search(term, clientID string) ([]model.RegisteredService, error) {
	needle := "%" + term + "%"
	query := r.db.Where("name LIKE ? OR description LIKE ? OR service_type LIKE ?", needle, needle, needle)
	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	var services []model.RegisteredService
	err := query.Order("name ASC").Find(&services).Error
	return services, err
}

func (r *serviceRepository) Exists(id string) (bool, error) {
	var count int64
	err := r.db.Model(&model.RegisteredService{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// GetWithoutRecentLogs lists active services whose last log is older than
// graceFactor times their reporting interval. Services that never reported
// are included. The comparison happens here rather than in SQL so the same
// query works on MySQL and SQLite.
func (r *serviceRepository) GetWithoutRecentLogs(now time.Time, graceFactor int) ([]model.RegisteredService, error) {
	if graceFactor <= 0 {
		graceFactor = 1
	}
	var services []model.RegisteredService
	if err := r.db.Where("is_active = ?", true).Find(&services).Error; err != nil {
		return nil, err
	}

	stale := make([]model.RegisteredService, 0, len(services))
	for _, s := range services {
		interval := s.ReportingIntervalMinutes
		if interval <= 0 {
			interval = 60
		}
		deadline := now.Add(-time.Duration(interval*graceFactor) * time.Minute)
		if s.LastLogReceivedAt == nil || s.LastLogReceivedAt.Before(deadline) {
			stale = append(stale, s)
		}
	}
	return stale, nil
}

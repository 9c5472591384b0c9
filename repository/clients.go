package repository

import (
	"github.com/logcentral/platform/model"
	"gorm.io/gorm"
)

// ClientRepository is the persistence contract for tenant clients.
type ClientRepository interface {
	Add(client *model.Client) error
	Update(client *model.Client) (bool, error)
	GetByID(id string) (*model.Client, error)
	GetByClientNumber(clientNumber string) (*model.Client, error)
	GetAll(includeInactive bool) ([]model.Client, error)
	Search(term string) ([]model.Client, error)
	Activate(id string) (bool, error)
	Deactivate(id string) (bool, error)
	AddContact(clientID string, contact *model.ContactPerson) error
	UpdateContact(clientID string, contact *model.ContactPerson) (bool, error)
	RemoveContact(clientID, contactID string) (bool, error)
	UpdateNotificationSettings(clientID string, settings model.NotificationSettings) (bool, error)
	Exists(id string) (bool, error)
	IsClientNumberUsed(clientNumber, excludeClientID string) (bool, error)
}

type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository returns a GORM-backed ClientRepository.
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Add(client *model.Client) error {
	return r.db.Create(client).Error
}

func (r *clientRepository) Update(client *model.Client) (bool, error) {
	res := r.db.Save(client)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *clientRepository) GetByID(id string) (*model.Client, error) {
	var client model.Client
	if err := r.db.Preload("Contacts").Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) GetByClientNumber(clientNumber string) (*model.Client, error) {
	var client model.Client
	if err := r.db.Preload("Contacts").Where("client_number = ?", clientNumber).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) GetAll(includeInactive bool) ([]model.Client, error) {
	query := r.db.Preload("Contacts")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var clients []model.Client
	err := query.Order("name ASC").Find(&clients).Error
	return clients, err
}

func (r *clientRepository) Search(term string) ([]model.Client, error) {
	needle := "%" + term + "%"
	var clients []model.Client
	err := r.db.Preload("Contacts").
		Where("name LIKE ? OR client_number LIKE ? OR email LIKE ?", needle, needle, needle).
		Order("name ASC").
		Find(&clients).Error
	return clients, err
}

func (r *clientRepository) Activate(id string) (bool, error) {
	return r.setActive(id, true)
}

func (r *clientRepository) Deactivate(id string) (bool, error) {
	return r.setActive(id, false)
}

func (r *clientRepository) setActive(id string, active bool) (bool, error) {
	res := r.db.Model(&model.Client{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *clientRepository) AddContact(clientID string, contact *model.ContactPerson) error {
	contact.ClientID = clientID
	return r.db.Create(contact).Error
}

func (r *clientRepository) UpdateContact(clientID string, contact *model.ContactPerson) (bool, error) {
	res := r.db.Model(&model.ContactPerson{}).
		Where("id = ? AND client_id = ?", contact.ID, clientID).
		Updates(map[string]interface{}{
			"name":           contact.Name,
			"role":           contact.Role,
			"email":          contact.Email,
			"phone":          contact.Phone,
			"receive_alerts": contact.ReceiveAlerts,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *clientRepository) RemoveContact(clientID, contactID string) (bool, error) {
	res := r.db.Where("id = ? AND client_id = ?", contactID, clientID).Delete(&model.ContactPerson{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *clientRepository) UpdateNotificationSettings(clientID string, settings model.NotificationSettings) (bool, error) {
	res := r.db.Model(&model.Client{}).
		Where("id = ?", clientID).
		Updates(map[string]interface{}{
			"notify_email_enabled":   settings.EmailEnabled,
			"notify_sms_enabled":     settings.SMSEnabled,
			"notify_webhook_enabled": settings.WebhookEnabled,
			"notify_webhook_url":     settings.WebhookURL,
			"notify_threshold":       settings.Threshold,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *clientRepository) Exists(id string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Client{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *clientRepository) IsClientNumberUsed(clientNumber, excludeClientID string) (bool, error) {
	query := r.db.Model(&model.Client{}).Where("client_number = ?", clientNumber)
	if excludeClientID != "" {
		query = query.Where("id <> ?", excludeClientID)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

package notification_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/notification"
	"github.com/logcentral/platform/repository"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupNotificationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_notify_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(&model.Client{}, &model.ContactPerson{}, &model.RegisteredService{})
	assert.NoError(t, err)

	return db
}

func TestRecipientsForClientFiltersByAlertFlag(t *testing.T) {
	db := setupNotificationTestDB(t)
	clients := repository.NewClientRepository(db)
	dispatcher := notification.NewDispatcher(clients)

	client := model.Client{Name: "Acme", ClientNumber: "C-1001", IsActive: true}
	assert.NoError(t, clients.Add(&client))
	assert.NoError(t, clients.AddContact(client.ID, &model.ContactPerson{
		Name: "Alerted", Email: "oncall@acme.example", ReceiveAlerts: true,
	}))
	assert.NoError(t, clients.AddContact(client.ID, &model.ContactPerson{
		Name: "Quiet", Email: "quiet@acme.example", ReceiveAlerts: false,
	}))
	assert.NoError(t, clients.AddContact(client.ID, &model.ContactPerson{
		Name: "No Email", ReceiveAlerts: true,
	}))

	recipients, err := dispatcher.RecipientsForClient(client.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"oncall@acme.example"}, recipients)
}

func TestRecipientsForServiceMergesAndDeduplicates(t *testing.T) {
	db := setupNotificationTestDB(t)
	clients := repository.NewClientRepository(db)
	dispatcher := notification.NewDispatcher(clients)

	client := model.Client{Name: "Acme", ClientNumber: "C-1001", IsActive: true}
	assert.NoError(t, clients.Add(&client))
	assert.NoError(t, clients.AddContact(client.ID, &model.ContactPerson{
		Name: "Shared", Email: "oncall@acme.example", ReceiveAlerts: true,
	}))

	service := model.RegisteredService{
		Name:                 "billing-api",
		ClientID:             client.ID,
		AlertEmailRecipients: datatypes.NewJSONSlice([]string{"team@acme.example", "oncall@acme.example"}),
	}

	recipients, err := dispatcher.RecipientsForService(&service)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"team@acme.example", "oncall@acme.example"}, recipients)
}

func TestSendWebhookPostsJSON(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db := setupNotificationTestDB(t)
	dispatcher := notification.NewDispatcher(repository.NewClientRepository(db))

	err := dispatcher.SendWebhook(context.Background(), server.URL, map[string]string{"message": "down"})
	assert.NoError(t, err)
	assert.Equal(t, "down", received["message"])
}

func TestSendWebhookErrors(t *testing.T) {
	db := setupNotificationTestDB(t)
	dispatcher := notification.NewDispatcher(repository.NewClientRepository(db))

	err := dispatcher.SendWebhook(context.Background(), "", nil)
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err = dispatcher.SendWebhook(context.Background(), server.URL, map[string]string{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNotifyLogAlertDeliversWebhook(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db := setupNotificationTestDB(t)
	clients := repository.NewClientRepository(db)
	dispatcher := notification.NewDispatcher(clients)

	client := model.Client{Name: "Acme", ClientNumber: "C-1001", IsActive: true}
	assert.NoError(t, clients.Add(&client))

	service := model.RegisteredService{
		ID:         "svc-1",
		Name:       "billing-api",
		ClientID:   client.ID,
		WebhookURL: server.URL,
	}
	entry := model.LogEntry{
		ID:      "log-1",
		Level:   model.LevelCritical,
		Message: "service down",
	}

	err := dispatcher.NotifyLogAlert(context.Background(), &service, &entry, "crashed on startup")
	assert.NoError(t, err)
	assert.Equal(t, "log-1", payload["log_id"])
	assert.Equal(t, "Critical", payload["level"])
	assert.Equal(t, "crashed on startup", payload["summary"])
}

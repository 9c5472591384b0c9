package repository_test

import (
	"testing"

	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/repository"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func seedClient(t *testing.T, repo repository.ClientRepository, name, number string) model.Client {
	t.Helper()
	client := model.Client{Name: name, ClientNumber: number, IsActive: true}
	assert.NoError(t, repo.Add(&client))
	return client
}

func TestClientRepositoryGetByIDPreloadsContacts(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewClientRepository(db)
	client := seedClient(t, repo, "Acme", "C-1001")

	assert.NoError(t, repo.AddContact(client.ID, &model.ContactPerson{
		Name:          "Jamie",
		Email:         "jamie@acme.example",
		ReceiveAlerts: true,
	}))

	loaded, err := repo.GetByID(client.ID)
	assert.NoError(t, err)
	assert.Len(t, loaded.Contacts, 1)
	assert.Equal(t, "Jamie", loaded.Contacts[0].Name)

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestClientRepositoryGetByClientNumber(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewClientRepository(db)
	seedClient(t, repo, "Acme", "C-1001")

	loaded, err := repo.GetByClientNumber("C-1001")
	assert.NoError(t, err)
	assert.Equal(t, "Acme", loaded.Name)

	_, err = repo.GetByClientNumber("C-9999")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestClientRepositoryIsClientNumberUsed(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewClientRepository(db)
	client := seedClient(t, repo, "Acme", "C-1001")

	used, err := repo.IsClientNumberUsed("C-1001", "")
	assert.NoError(t, err)
	assert.True(t, used)

	// A client keeping its own number is not a conflict.
	used, err = repo.IsClientNumberUsed("C-1001", client.ID)
	assert.NoError(t, err)
	assert.False(t, used)

	used, err = repo.IsClientNumberUsed("C-2000", "")
	assert.NoError(t, err)
	assert.False(t, used)
}

func TestClientRepositoryContactLifecycle(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewClientRepository(db)
	client := seedClient(t, repo, "Acme", "C-1001")

	contact := model.ContactPerson{Name: "Jamie", Email: "jamie@acme.example"}
	assert.NoError(t, repo.AddContact(client.ID, &contact))
	assert.Equal(t, client.ID, contact.ClientID)

	contact.Role = "On-call"
	contact.ReceiveAlerts = true
	updated, err := repo.UpdateContact(client.ID, &contact)
	assert.NoError(t, err)
	assert.True(t, updated)

	loaded, err := repo.GetByID(client.ID)
	assert.NoError(t, err)
	assert.Equal(t, "On-call", loaded.Contacts[0].Role)
	assert.True(t, loaded.Contacts[0].ReceiveAlerts)

	// Updating through the wrong client changes nothing.
	updated, err = repo.UpdateContact("other-client", &contact)
	assert.NoError(t, err)
	assert.False(t, updated)

	removed, err := repo.RemoveContact(client.ID, contact.ID)
	assert.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveContact(client.ID, contact.ID)
	assert.NoError(t, err)
	assert.False(t, removed)
}

func TestClientRepositoryUpdateNotificationSettings(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewClientRepository(db)
	client := seedClient(t, repo, "Acme", "C-1001")

	settings := model.NotificationSettings{
		EmailEnabled:   false,
		WebhookEnabled: true,
		WebhookURL:     "https://hooks.acme.example/logs",
		Threshold:      model.LevelCritical,
	}
	updated, err := repo.UpdateNotificationSettings(client.ID, settings)
	assert.NoError(t, err)
	assert.True(t, updated)

	loaded, err := repo.GetByID(client.ID)
	assert.NoError(t, err)
	assert.False(t, loaded.NotificationSettings.EmailEnabled)
	assert.True(t, loaded.NotificationSettings.WebhookEnabled)
	assert.Equal(t, "https://hooks.acme.example/logs", loaded.NotificationSettings.WebhookURL)
	assert.Equal(t, model.LevelCritical, loaded.NotificationSettings.Threshold)

	updated, err = repo.UpdateNotificationSettings("missing", settings)
	assert.NoError(t, err)
	assert.False(t, updated)
}

func TestClientRepositoryActivateDeactivate(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewClientRepository(db)
	client := seedClient(t, repo, "Acme", "C-1001")

	changed, err := repo.Deactivate(client.ID)
	assert.NoError(t, err)
	assert.True(t, changed)

	active, err := repo.GetAll(false)
	assert.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.GetAll(true)
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	changed, err = repo.Activate(client.ID)
	assert.NoError(t, err)
	assert.True(t, changed)
}

func TestClientRepositorySearch(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewClientRepository(db)
	seedClient(t, repo, "Acme Industries", "C-1001")
	seedClient(t, repo, "Globex", "C-2002")

	hits, err := repo.Search("Acme")
	assert.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = repo.Search("C-2002")
	assert.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, "Globex", hits[0].Name)

	hits, err = repo.Search("Initech")
	assert.NoError(t, err)
	assert.Empty(t, hits)
}

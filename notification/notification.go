// Package notification dispatches alerts over email, SMS and webhooks.
// Email and SMS are logged stubs until a provider is wired in; webhooks are
// delivered for real.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/repository"
)

// Service is the notification contract consumed by the analysis worker.
type Service interface {
	SendEmail(ctx context.Context, recipients []string, subject, body string) error
	SendSMS(ctx context.Context, recipients []string, message string) error
	SendWebhook(ctx context.Context, url string, payload interface{}) error
	RecipientsForService(service *model.RegisteredService) ([]string, error)
	RecipientsForClient(clientID string) ([]string, error)
	NotifyLogAlert(ctx context.Context, service *model.RegisteredService, entry *model.LogEntry, summary string) error
}

// Dispatcher implements Service.
type Dispatcher struct {
	clients    repository.ClientRepository
	httpClient *http.Client
}

// NewDispatcher builds a Dispatcher resolving client contacts through the
// given repository.
func NewDispatcher(clients repository.ClientRepository) *Dispatcher {
	return &Dispatcher{
		clients:    clients,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendEmail logs the outgoing mail. No SMTP provider is configured yet.
func (d *Dispatcher) SendEmail(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}
	log.Printf("[NOTIFY] email to %v subject=%q", recipients, subject)
	return nil
}

// SendSMS logs the outgoing message. No SMS provider is configured yet.
func (d *Dispatcher) SendSMS(ctx context.Context, recipients []string, message string) error {
	if len(recipients) == 0 {
		return nil
	}
	log.Printf("[NOTIFY] sms to %v", recipients)
	return nil
}

// SendWebhook posts the payload as JSON to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload interface{}) error {
	if url == "" {
		return fmt.Errorf("webhook url is empty")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// RecipientsForService merges the service's own alert list with the owning
// client's alert contacts.
func (d *Dispatcher) RecipientsForService(service *model.RegisteredService) ([]string, error) {
	recipients := append([]string(nil), service.AlertEmailRecipients...)
	fromClient, err := d.RecipientsForClient(service.ClientID)
	if err != nil {
		return recipients, err
	}
	for _, addr := range fromClient {
		if !contains(recipients, addr) {
			recipients = append(recipients, addr)
		}
	}
	return recipients, nil
}

// RecipientsForClient lists the client contacts flagged for alerts.
func (d *Dispatcher) RecipientsForClient(clientID string) ([]string, error) {
	client, err := d.clients.GetByID(clientID)
	if err != nil {
		return nil, err
	}
	recipients := []string{}
	for _, contact := range client.Contacts {
		if contact.ReceiveAlerts && contact.Email != "" {
			recipients = append(recipients, contact.Email)
		}
	}
	return recipients, nil
}

// NotifyLogAlert fans an alert out over every channel the service and its
// client have enabled. Channel failures are logged and do not stop the
// remaining channels.
func (d *Dispatcher) NotifyLogAlert(ctx context.Context, service *model.RegisteredService, entry *model.LogEntry, summary string) error {
	subject := fmt.Sprintf("[%s] %s: %s", entry.Level, service.Name, entry.Message)

	recipients, err := d.RecipientsForService(service)
	if err != nil {
		log.Printf("[NOTIFY] recipient resolution failed for service %s: %v", service.ID, err)
	}
	if err := d.SendEmail(ctx, recipients, subject, summary); err != nil {
		log.Printf("[NOTIFY] email dispatch failed for service %s: %v", service.ID, err)
	}

	if service.WebhookURL != "" {
		payload := map[string]interface{}{
			"service_id":   service.ID,
			"service_name": service.Name,
			"log_id":       entry.ID,
			"level":        entry.Level.String(),
			"message":      entry.Message,
			"summary":      summary,
			"received_at":  entry.ReceivedAt,
		}
		if err := d.SendWebhook(ctx, service.WebhookURL, payload); err != nil {
			log.Printf("[NOTIFY] webhook dispatch failed for service %s: %v", service.ID, err)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

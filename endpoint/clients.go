package endpoint

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/auth"
	"github.com/logcentral/platform/middleware"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/repository"
	"github.com/logcentral/platform/util"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type createClientRequest struct {
	Name         string                 `json:"name"`
	ClientNumber string                 `json:"client_number"`
	Description  string                 `json:"description"`
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	Address      string                 `json:"address"`
	Contacts     []model.ContactPerson  `json:"contacts"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// ListClients returns all clients, active only unless include_inactive=true.
func ListClients(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))

	clients, err := repository.NewClientRepository(db).GetAll(includeInactive)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to list clients", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Clients retrieved", Data: clients})
}

// clientAccessOrRespond answers whether the caller may read the client and
// writes the 403 if not.
func clientAccessOrRespond(c *gin.Context, db *gorm.DB, clientID string) bool {
	userID := middleware.GetUserID(c)
	hasAccess, err := auth.New(db).HasClientAccess(userID, clientID, model.AccessRead)
	if err != nil || !hasAccess {
		util.CallUserForbidden(c, util.APIErrorParams{
			Msg: "No access to this client",
			Err: fmt.Errorf("access denied"),
		})
		return false
	}
	return true
}

// GetClient returns one client with its contacts. The caller must hold
// read access to the client.
func GetClient(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	client, err := repository.NewClientRepository(db).GetByID(id)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Client not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve client", Err: err})
		return
	}
	if !clientAccessOrRespond(c, db, client.ID) {
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Client retrieved", Data: client})
}

// GetClientByNumber looks a client up by its business-facing number.
func GetClientByNumber(c *gin.Context) {
	number, ok := requireIDParam(c, "number")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	client, err := repository.NewClientRepository(db).GetByClientNumber(number)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Client not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve client", Err: err})
		return
	}
	if !clientAccessOrRespond(c, db, client.ID) {
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Client retrieved", Data: client})
}

// CreateClient registers a tenant. The client number must be unique.
func CreateClient(c *gin.Context) {
	var req createClientRequest
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}
	req.Name = util.NormalizeName(req.Name)
	if req.Name == "" || req.ClientNumber == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Client name and client_number are required",
			Err: fmt.Errorf("missing required fields"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	clients := repository.NewClientRepository(db)

	used, err := clients.IsClientNumberUsed(req.ClientNumber, "")
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to verify client number", Err: err})
		return
	}
	if used {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Client number is already in use",
			Err: fmt.Errorf("duplicate client number %s", req.ClientNumber),
		})
		return
	}

	client := model.Client{
		Name:         req.Name,
		ClientNumber: req.ClientNumber,
		Description:  req.Description,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		IsActive:     true,
		Contacts:     req.Contacts,
		Metadata:     datatypes.JSONMap(req.Metadata),
		NotificationSettings: model.NotificationSettings{
			EmailEnabled: true,
			Threshold:    model.LevelError,
		},
	}
	if err := clients.Add(&client); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to register client", Err: err})
		return
	}
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Client registered", Data: client})
}

// UpdateClient applies a partial update. Changing the client number is
// allowed only if the new number is unused.
func UpdateClient(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Name         *string                `json:"name"`
		ClientNumber *string                `json:"client_number"`
		Description  *string                `json:"description"`
		Email        *string                `json:"email"`
		Phone        *string                `json:"phone"`
		Address      *string                `json:"address"`
		Metadata     map[string]interface{} `json:"metadata"`
	}
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	clients := repository.NewClientRepository(db)

	client, err := clients.GetByID(id)
	if err == gorm.ErrRecordNotFound {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Client not found", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve client", Err: err})
		return
	}

	if req.Name != nil {
		name := util.NormalizeName(*req.Name)
		if name == "" {
			util.CallUserError(c, util.APIErrorParams{
				Msg: "Client name cannot be empty",
				Err: fmt.Errorf("empty name"),
			})
			return
		}
		client.Name = name
	}
	if req.ClientNumber != nil && *req.ClientNumber != client.ClientNumber {
		used, err := clients.IsClientNumberUsed(*req.ClientNumber, client.ID)
		if err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to verify client number", Err: err})
			return
		}
		if used {
			util.CallUserError(c, util.APIErrorParams{
				Msg: "Client number is already in use",
				Err: fmt.Errorf("duplicate client number %s", *req.ClientNumber),
			})
			return
		}
		client.ClientNumber = *req.ClientNumber
	}
	if req.Description != nil {
		client.Description = *req.Description
	}
	if req.Email != nil {
		client.Email = *req.Email
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.Address != nil {
		client.Address = *req.Address
	}
	if req.Metadata != nil {
		client.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if _, err := clients.Update(client); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update client", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Client updated", Data: client})
}

// ActivateClient re-enables a tenant.
func ActivateClient(c *gin.Context) {
	setClientActive(c, true)
}

// DeactivateClient disables a tenant without touching its services or logs.
func DeactivateClient(c *gin.Context) {
	setClientActive(c, false)
}

func setClientActive(c *gin.Context, active bool) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	clients := repository.NewClientRepository(db)
	var changed bool
	var err error
	if active {
		changed, err = clients.Activate(id)
	} else {
		changed, err = clients.Deactivate(id)
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to change client state", Err: err})
		return
	}
	if !changed {
		exists, exErr := clients.Exists(id)
		if exErr == nil && !exists {
			util.CallErrorNotFound(c, util.APIErrorParams{
				Msg: "Client not found",
				Err: gorm.ErrRecordNotFound,
			})
			return
		}
	}

	msg := "Client deactivated"
	if active {
		msg = "Client activated"
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  msg,
		Data: map[string]interface{}{"id": id, "is_active": active},
	})
}

// SearchClients matches name, client number or email.
func SearchClients(c *gin.Context) {
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

	clients, err := repository.NewClientRepository(db).Search(term)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Client search failed", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Clients retrieved", Data: clients})
}

// AddClientContact attaches a contact person to a client.
func AddClientContact(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}

	var contact model.ContactPerson
	if !bindJSONOrRespond(c, &contact, "Invalid or empty request body") {
		return
	}
	if contact.Name == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Contact name is required",
			Err: fmt.Errorf("name is required"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	clients := repository.NewClientRepository(db)

	exists, err := clients.Exists(id)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to verify client", Err: err})
		return
	}
	if !exists {
		util.CallErrorNotFound(c, util.APIErrorParams{
			Msg: "Client not found",
			Err: gorm.ErrRecordNotFound,
		})
		return
	}

	if err := clients.AddContact(id, &contact); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to add contact", Err: err})
		return
	}
	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Contact added", Data: contact})
}

// UpdateClientContact updates a contact in place.
func UpdateClientContact(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	contactID, ok := requireIDParam(c, "contactId")
	if !ok {
		return
	}

	var contact model.ContactPerson
	if !bindJSONOrRespond(c, &contact, "Invalid or empty request body") {
		return
	}
	contact.ID = contactID

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	updated, err := repository.NewClientRepository(db).UpdateContact(id, &contact)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update contact", Err: err})
		return
	}
	if !updated {
		util.CallErrorNotFound(c, util.APIErrorParams{
			Msg: "Contact not found",
			Err: gorm.ErrRecordNotFound,
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Contact updated", Data: contact})
}

// RemoveClientContact detaches a contact from its client.
func RemoveClientContact(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}
	contactID, ok := requireIDParam(c, "contactId")
	if !ok {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	removed, err := repository.NewClientRepository(db).RemoveContact(id, contactID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to remove contact", Err: err})
		return
	}
	if !removed {
		util.CallErrorNotFound(c, util.APIErrorParams{
			Msg: "Contact not found",
			Err: gorm.ErrRecordNotFound,
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Contact removed",
		Data: map[string]interface{}{"id": contactID},
	})
}

// UpdateClientNotificationSettings replaces the client's channel config.
func UpdateClientNotificationSettings(c *gin.Context) {
	id, ok := requireIDParam(c, "id")
	if !ok {
		return
	}

	var settings model.NotificationSettings
	if !bindJSONOrRespond(c, &settings, "Invalid or empty request body") {
		return
	}
	if !settings.Threshold.Valid() {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid notification threshold",
			Err: fmt.Errorf("unknown log level %d", settings.Threshold),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	updated, err := repository.NewClientRepository(db).UpdateNotificationSettings(id, settings)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update notification settings", Err: err})
		return
	}
	if !updated {
		util.CallErrorNotFound(c, util.APIErrorParams{
			Msg: "Client not found",
			Err: gorm.ErrRecordNotFound,
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Notification settings updated", Data: settings})
}

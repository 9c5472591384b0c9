package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role names recognized by the authorization checks.
const (
	RoleAdmin   = "Admin"
	RoleSupport = "Support"
	RoleUser    = "User"
)

// AccessLevel orders a user's rights on a client: Read < Write < Admin.
type AccessLevel int

const (
	AccessRead AccessLevel = iota
	AccessWrite
	AccessAdmin
)

// User is an operator account. Services authenticate with API keys instead
// and never have user records.
type User struct {
	ID           string `gorm:"type:char(36);primaryKey" json:"id"`
	Username     string `gorm:"type:varchar(128);uniqueIndex" json:"username"`
	Email        string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	FirstName    string `gorm:"type:varchar(128)" json:"first_name"`
	LastName     string `gorm:"type:varchar(128)" json:"last_name"`
	PasswordHash string `gorm:"type:varchar(255)" json:"-"`
	PasswordSalt string `gorm:"type:varchar(64)" json:"-"`

	IsActive         bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt      *time.Time `json:"last_login_at"`
	IsEmailConfirmed bool       `json:"is_email_confirmed"`

	EmailConfirmationToken          string     `gorm:"type:varchar(128)" json:"-"`
	EmailConfirmationTokenExpiresAt *time.Time `json:"-"`
	PasswordResetToken              string     `gorm:"type:varchar(128);index" json:"-"`
	PasswordResetTokenExpiresAt     *time.Time `json:"-"`

	FailedLoginAttempts int        `json:"-"`
	LockoutEndAt        *time.Time `json:"-"`

	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	TwoFactorSecret  string `gorm:"type:varchar(128)" json:"-"`

	PhoneNumber            string `gorm:"type:varchar(32)" json:"phone_number"`
	IsPhoneNumberConfirmed bool   `json:"is_phone_number_confirmed"`

	Roles        []UserRole         `gorm:"foreignKey:UserID" json:"roles"`
	ClientAccess []UserClientAccess `gorm:"foreignKey:UserID" json:"client_access"`
	Preferences  datatypes.JSONMap  `json:"preferences"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// FullName joins the user's first and last names.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r.RoleName == role {
			return true
		}
	}
	return false
}

// UserRole assigns a named role to a user.
type UserRole struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:char(36);index;not null" json:"user_id"`
	RoleName   string    `gorm:"type:varchar(64);not null" json:"role_name"`
	AssignedAt time.Time `json:"assigned_at"`
}

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.AssignedAt.IsZero() {
		r.AssignedAt = time.Now().UTC()
	}
	return nil
}

// UserClientAccess grants a user an access level on one client.
type UserClientAccess struct {
	ID          string      `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      string      `gorm:"type:char(36);index;not null" json:"user_id"`
	ClientID    string      `gorm:"type:char(36);index;not null" json:"client_id"`
	ClientName  string      `gorm:"type:varchar(255)" json:"client_name"`
	AccessLevel AccessLevel `gorm:"default:0" json:"access_level"`
	AssignedAt  time.Time   `json:"assigned_at"`
}

func (a *UserClientAccess) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	return nil
}

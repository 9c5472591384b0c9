// Package auth resolves credentials to identities and answers the
// authorization questions the handlers ask: role membership, per-client
// grants, and the derived per-service access check.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/logcentral/platform/config"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/util"
	"gorm.io/gorm"
)

var (
	// ErrInvalidAPIKey is returned when no active service matches a key.
	ErrInvalidAPIKey = errors.New("invalid or revoked API key")
	// ErrInvalidToken is returned when a JWT fails validation.
	ErrInvalidToken = errors.New("invalid or expired token")
)

const tokenTTL = time.Hour

// Claims is the JWT payload issued on login.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Service answers authentication and authorization questions. The handlers
// treat these as black-box predicates.
type Service interface {
	AuthenticateService(apiKey string) (*model.RegisteredService, error)
	GenerateToken(user *model.User) (string, time.Time, error)
	ValidateToken(token string) (*Claims, error)
	IsInRole(userID, role string) (bool, error)
	HasClientAccess(userID, clientID string, level model.AccessLevel) (bool, error)
	HasServiceAccess(userID, serviceID string, level model.AccessLevel) (bool, error)
}

type service struct {
	db  *gorm.DB
	cfg *config.Config
}

// New returns a GORM-backed auth service.
func New(db *gorm.DB) Service {
	return &service{db: db, cfg: config.LoadConfig()}
}

// AuthenticateService resolves an API key to its registered service.
// Inactive services are rejected the same way as unknown keys.
func (s *service) AuthenticateService(apiKey string) (*model.RegisteredService, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}
	var svc model.RegisteredService
	err := s.db.Where("api_key = ? AND is_active = ?", apiKey, true).First(&svc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInvalidAPIKey
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *service) GenerateToken(user *model.User) (string, time.Time, error) {
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.RoleName)
	}

	expiresAt := time.Now().Add(tokenTTL)
	claims := Claims{
		Email: user.Email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.JWTIssuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWTAudience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(util.GetJWTSecretByte())
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// clockSkew is the tolerance applied to time-based claims so tokens do not
// flap across hosts with slightly drifting clocks.
const clockSkew = 30 * time.Second

// ValidateToken checks signature, issuer, audience and expiry with a small
// clock-skew tolerance. Claims are verified here rather than by the parser
// so the skew applies to the time checks.
func (s *service) ValidateToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return util.GetJWTSecretByte(), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	now := time.Now()
	if !claims.VerifyExpiresAt(now.Add(-clockSkew), true) {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuedAt(now.Add(clockSkew), false) {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuer(s.cfg.JWTIssuer, true) {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyAudience(s.cfg.JWTAudience, true) {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *service) IsInRole(userID, role string) (bool, error) {
	var count int64
	err := s.db.Model(&model.UserRole{}).
		Where("user_id = ? AND role_name = ?", userID, role).
		Count(&count).Error
	return count > 0, err
}

// HasClientAccess applies the platform access policy: Admin sees everything,
// Support reads everything, everyone else needs a grant on the client at or
// above the requested level.
func (s *service) HasClientAccess(userID, clientID string, level model.AccessLevel) (bool, error) {
	if admin, err := s.IsInRole(userID, model.RoleAdmin); err != nil {
		return false, err
	} else if admin {
		return true, nil
	}

	if level <= model.AccessRead {
		if support, err := s.IsInRole(userID, model.RoleSupport); err != nil {
			return false, err
		} else if support {
			return true, nil
		}
	}

	var count int64
	err := s.db.Model(&model.UserClientAccess{}).
		Where("user_id = ? AND client_id = ? AND access_level >= ?", userID, clientID, level).
		Count(&count).Error
	return count > 0, err
}

// HasServiceAccess delegates to the grant on the service's owning client.
func (s *service) HasServiceAccess(userID, serviceID string, level model.AccessLevel) (bool, error) {
	var svc model.RegisteredService
	err := s.db.Select("client_id").Where("id = ?", serviceID).First(&svc).Error
	if err == gorm.ErrRecordNotFound {
		return false, fmt.Errorf("service %s not found", serviceID)
	}
	if err != nil {
		return false, err
	}
	return s.HasClientAccess(userID, svc.ClientID, level)
}

package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/auth"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/util"
)

const (
	userIDContextKey = "user_id"
	emailContextKey  = "user_email"
	rolesContextKey  = "user_roles"
	tokenContextKey  = "session_token"
)

// JWTAuth validates the bearer token, confirms the session has not been
// revoked, and stores the caller's identity in the request context.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Missing bearer token",
				Err: fmt.Errorf("authorization header is required"),
			})
			c.Abort()
			return
		}

		db := GetDB(c)
		if db == nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Database connection not available",
				Err: fmt.Errorf("db is nil"),
			})
			c.Abort()
			return
		}

		claims, err := auth.New(db).ValidateToken(token)
		if err != nil {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Invalid or expired token",
				Err: err,
			})
			c.Abort()
			return
		}

		// A token is only good while its session row survives; logout
		// deletes the row and revokes the token before expiry.
		var session model.Session
		err = db.Where("session_token = ? AND expires_at > ?", token, time.Now()).First(&session).Error
		if err != nil {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Session expired or revoked",
				Err: fmt.Errorf("session not found"),
			})
			c.Abort()
			return
		}

		c.Set(userIDContextKey, claims.Subject)
		c.Set(emailContextKey, claims.Email)
		c.Set(rolesContextKey, claims.Roles)
		c.Set(tokenContextKey, token)
		c.Next()
	}
}

// RequireRoles rejects callers that hold none of the given roles. It must
// run after JWTAuth.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		held := GetUserRoles(c)
		for _, want := range roles {
			if util.Contains(want, held) {
				c.Next()
				return
			}
		}

		util.LogSecurityEvent(util.SecurityEvent{
			EventType: util.EventUnauthorizedAccess,
			UserID:    GetUserID(c),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Message:   fmt.Sprintf("missing required role for %s %s", c.Request.Method, c.Request.URL.Path),
		})
		util.CallUserForbidden(c, util.APIErrorParams{
			Msg: "Insufficient role",
			Err: fmt.Errorf("requires one of: %s", strings.Join(roles, ", ")),
		})
		c.Abort()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetUserID returns the authenticated caller's user id, or "".
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}

// GetUserEmail returns the authenticated caller's email, or "".
func GetUserEmail(c *gin.Context) string {
	return c.GetString(emailContextKey)
}

// GetSessionToken returns the raw bearer token of the current request, or "".
func GetSessionToken(c *gin.Context) string {
	return c.GetString(tokenContextKey)
}

// GetUserRoles returns the role names carried by the caller's token.
func GetUserRoles(c *gin.Context) []string {
	value, exists := c.Get(rolesContextKey)
	if !exists {
		return nil
	}
	roles, ok := value.([]string)
	if !ok {
		return nil
	}
	return roles
}

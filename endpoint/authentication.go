package endpoint

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/auth"
	"github.com/logcentral/platform/middleware"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/util"
	"gorm.io/gorm"
)

const (
	maxFailedLoginAttempts = 5
	lockoutDuration        = 15 * time.Minute
	passwordResetTTL       = time.Hour
	minPasswordLength      = 8
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates by email and password, issues a JWT and records the
// session. Five straight failures lock the account for fifteen minutes; no
// failure path ever creates a session row.
func Login(c *gin.Context) {
	var req loginRequest
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Email and password are required",
			Err: fmt.Errorf("missing credentials"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	err := db.Preload("Roles").Where("email = ?", req.Email).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		util.LogLoginFailure(req.Email, c.ClientIP(), c.Request.UserAgent(), "unknown email")
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Invalid email or password",
			Err: fmt.Errorf("authentication failed"),
		})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Login failed", Err: err})
		return
	}

	now := time.Now().UTC()
	if user.LockoutEndAt != nil && user.LockoutEndAt.After(now) {
		util.LogLoginFailure(req.Email, c.ClientIP(), c.Request.UserAgent(), "account locked")
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Account is temporarily locked, try again later",
			Err: fmt.Errorf("account locked until %s", user.LockoutEndAt.Format(time.RFC3339)),
		})
		return
	}
	if !user.IsActive {
		util.LogLoginFailure(req.Email, c.ClientIP(), c.Request.UserAgent(), "account disabled")
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Invalid email or password",
			Err: fmt.Errorf("authentication failed"),
		})
		return
	}

	match, err := util.VerifyPassword(req.Password, user.PasswordHash, user.PasswordSalt)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Login failed", Err: err})
		return
	}
	if !match {
		user.FailedLoginAttempts++
		updates := map[string]interface{}{"failed_login_attempts": user.FailedLoginAttempts}
		if user.FailedLoginAttempts >= maxFailedLoginAttempts {
			lockUntil := now.Add(lockoutDuration)
			updates["lockout_end_at"] = lockUntil
			util.LogAccountLocked(user.ID, user.Email, c.ClientIP(),
				fmt.Sprintf("locked after %d failed attempts", user.FailedLoginAttempts))
		}
		if err := db.Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Login failed", Err: err})
			return
		}
		util.LogLoginFailure(req.Email, c.ClientIP(), c.Request.UserAgent(), "wrong password")
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Invalid email or password",
			Err: fmt.Errorf("authentication failed"),
		})
		return
	}

	token, expiresAt, err := auth.New(db).GenerateToken(&user)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to issue token", Err: err})
		return
	}

	session := model.Session{
		UserID:       user.ID,
		SessionToken: token,
		ExpiresAt:    expiresAt,
		ClientIP:     c.ClientIP(),
		Browser:      c.Request.UserAgent(),
	}
	if err := db.Create(&session).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to record session", Err: err})
		return
	}

	// Counter reset and last-login stamp happen after the session commit so
	// a storage failure above leaves the account state untouched.
	db.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"lockout_end_at":        nil,
		"last_login_at":         now,
	})

	util.LogLoginSuccess(user.ID, user.Email, c.ClientIP(), c.Request.UserAgent())
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Login successful",
		Data: map[string]interface{}{
			"token":      token,
			"expires_at": expiresAt,
			"user": map[string]interface{}{
				"id":        user.ID,
				"email":     user.Email,
				"full_name": user.FullName(),
				"roles":     middlewareRoleNames(user),
			},
		},
	})
}

func middlewareRoleNames(user model.User) []string {
	names := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		names = append(names, r.RoleName)
	}
	return names
}

// Logout revokes the presented session. The token stops validating even
// though its JWT expiry has not passed.
func Logout(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	token := middleware.GetSessionToken(c)
	if token == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "No session token presented",
			Err: fmt.Errorf("missing bearer token"),
		})
		return
	}

	if err := db.Where("session_token = ?", token).Delete(&model.Session{}).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Logout failed", Err: err})
		return
	}

	util.LogLogout(middleware.GetUserID(c), middleware.GetUserEmail(c), c.ClientIP(), c.Request.UserAgent())
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Logged out",
		Data: map[string]interface{}{},
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword verifies the current password, stores a fresh Argon2id
// hash and revokes every other session of the user.
func ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		util.CallUserError(c, util.APIErrorParams{
			Msg: fmt.Sprintf("Password must be at least %d characters", minPasswordLength),
			Err: fmt.Errorf("password too short"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)

	var user model.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load account", Err: err})
		return
	}

	match, err := util.VerifyPassword(req.CurrentPassword, user.PasswordHash, user.PasswordSalt)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password change failed", Err: err})
		return
	}
	if !match {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Current password is incorrect",
			Err: fmt.Errorf("authentication failed"),
		})
		return
	}

	salt, err := util.GenerateSalt()
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password change failed", Err: err})
		return
	}
	hash, err := util.HashPasswordArgon2(req.NewPassword, salt)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password change failed", Err: err})
		return
	}

	if err := db.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"password_hash": hash,
		"password_salt": salt,
	}).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password change failed", Err: err})
		return
	}

	// Other sessions die with the old password; the current one stays valid.
	current := middleware.GetSessionToken(c)
	db.Where("user_id = ? AND session_token <> ?", user.ID, current).Delete(&model.Session{})

	util.LogSecurityEvent(util.SecurityEvent{
		EventType: util.EventPasswordChanged,
		UserID:    user.ID,
		Email:     user.Email,
		IP:        c.ClientIP(),
		Message:   "password changed",
	})
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Password changed",
		Data: map[string]interface{}{},
	})
}

type requestPasswordResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset issues a one-hour reset token. The response is the
// same whether or not the email exists.
func RequestPasswordReset(c *gin.Context) {
	var req requestPasswordResetRequest
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Email is required",
			Err: fmt.Errorf("email is required"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	err := db.Where("email = ?", req.Email).First(&user).Error
	if err == nil {
		token := util.GenerateAPIKey()
		expiresAt := time.Now().UTC().Add(passwordResetTTL)
		db.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"password_reset_token":            token,
			"password_reset_token_expires_at": expiresAt,
		})
	} else if err != gorm.ErrRecordNotFound {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password reset request failed", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "If the email is registered, a reset link has been sent",
		Data: map[string]interface{}{},
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword redeems a reset token, stores the new hash, clears the
// token and lockout state and revokes every session of the user.
func ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSONOrRespond(c, &req, "Invalid or empty request body") {
		return
	}
	if req.Token == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Reset token is required",
			Err: fmt.Errorf("token is required"),
		})
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		util.CallUserError(c, util.APIErrorParams{
			Msg: fmt.Sprintf("Password must be at least %d characters", minPasswordLength),
			Err: fmt.Errorf("password too short"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	err := db.Where("password_reset_token = ?", req.Token).First(&user).Error
	if err == gorm.ErrRecordNotFound ||
		(err == nil && (user.PasswordResetTokenExpiresAt == nil || user.PasswordResetTokenExpiresAt.Before(time.Now().UTC()))) {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Reset token is invalid or expired",
			Err: fmt.Errorf("invalid reset token"),
		})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password reset failed", Err: err})
		return
	}

	salt, err := util.GenerateSalt()
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password reset failed", Err: err})
		return
	}
	hash, err := util.HashPasswordArgon2(req.NewPassword, salt)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password reset failed", Err: err})
		return
	}

	if err := db.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"password_hash":                   hash,
		"password_salt":                   salt,
		"password_reset_token":            "",
		"password_reset_token_expires_at": nil,
		"failed_login_attempts":           0,
		"lockout_end_at":                  nil,
	}).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Password reset failed", Err: err})
		return
	}

	db.Where("user_id = ?", user.ID).Delete(&model.Session{})

	util.LogSecurityEvent(util.SecurityEvent{
		EventType: util.EventPasswordChanged,
		UserID:    user.ID,
		Email:     user.Email,
		IP:        c.ClientIP(),
		Message:   "password reset via token",
	})
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Password has been reset",
		Data: map[string]interface{}{},
	})
}

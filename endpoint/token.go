package endpoint

import (
	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/middleware"
	"github.com/logcentral/platform/util"
)

// ValidateToken confirms the presented bearer token is valid and its
// session unrevoked. JWTAuth has already done the work; reaching the
// handler means the token is good.
func ValidateToken(c *gin.Context) {
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Token is valid",
		Data: map[string]interface{}{
			"user_id": middleware.GetUserID(c),
			"email":   middleware.GetUserEmail(c),
			"roles":   middleware.GetUserRoles(c),
		},
	})
}

package endpoint

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/middleware"
	"github.com/logcentral/platform/util"
	"gorm.io/gorm"
)

func bindJSONOrRespond(c *gin.Context, dst interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: msg, Err: err})
		return false
	}
	return true
}

func getDBOrRespond(c *gin.Context) (*gorm.DB, bool) {
	db := middleware.GetDB(c)
	if db == nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database connection not available", Err: fmt.Errorf("db is nil")})
		return nil, false
	}
	return db, true
}

func requireIDParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if id == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: fmt.Sprintf("Missing %s", name),
			Err: fmt.Errorf("%s is required", name),
		})
		return "", false
	}
	return id, true
}

package admin

import (
	handlershared "github.com/parcel-relay/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

const (
	adminIDContextKey      = "admin_id"
	adminIsSuperContextKey = "admin_is_super"
	adminRolesContextKey   = "admin_roles"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUintWithKeys(c, adminIDContextKey, "error.admin_id_invalid", "error.admin_id_type_invalid")
}

func currentAdminIsSuper(c *gin.Context) bool {
	if value, ok := c.Get(adminIsSuperContextKey); ok {
		if flag, typeOK := value.(bool); typeOK {
			return flag
		}
	}
	return false
}

func currentAdminRoles(c *gin.Context) []string {
	if value, ok := c.Get(adminRolesContextKey); ok {
		if roles, typeOK := value.([]string); typeOK {
			return roles
		}
	}
	return nil
}

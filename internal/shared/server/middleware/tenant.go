package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"digest-backend/internal/shared/server/respond"
)

const (
	tenantIDKey    = "tenantId"
	TenantIDHeader = "X-Tenant-Id"
)

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Tenant reads the tenant id from the X-Tenant-Id header (or the tenant
// query parameter) and stores it in context. Requests without a usable id
// are rejected.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		id := strings.TrimSpace(c.GetHeader(TenantIDHeader))
		if id == "" {
			id = strings.TrimSpace(c.Query("tenant"))
		}
		if id == "" {
			respond.Error(c, http.StatusBadRequest, "invalid_input", "missing tenant id", nil)
			return
		}
		if !tenantIDPattern.MatchString(id) {
			respond.Error(c, http.StatusBadRequest, "invalid_input", "malformed tenant id", nil)
			return
		}

		c.Set(tenantIDKey, id)
		c.Next()
	}
}

// TenantIDFromContext fetches the tenant ID set by the tenant middleware.
func TenantIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(tenantIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

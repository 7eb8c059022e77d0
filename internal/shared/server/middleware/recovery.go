package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/server/respond"
	"digest-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. The stack goes to the
// log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			err := faults.FromPanic(rec)
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      err,
				"stack":      string(debug.Stack()),
				"method":     c.Request.Method,
				"route":      c.FullPath(),
			}
			if tenantID := TenantIDFromContext(c); tenantID != "" {
				fields["tenant_id"] = tenantID
			}
			telemetry.Error("http.panic", fields)
			respond.Error(c, http.StatusInternalServerError, faults.Kind(err), "Unexpected server error", nil)
		}()
		c.Next()
	}
}

package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if tenantID := c.GetString("tenantId"); tenantID != "" {
		fields["tenant_id"] = tenantID
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Fault maps a faults kind to an HTTP status and sends it as an error response.
func Fault(c *gin.Context, err error) {
	kind := faults.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "invalid_input":
		status = http.StatusBadRequest
	case "transfer":
		status = http.StatusBadGateway
	case "configuration":
		status = http.StatusServiceUnavailable
	case "scheduler":
		status = http.StatusNotFound
	}
	Error(c, status, kind, err.Error(), nil)
}

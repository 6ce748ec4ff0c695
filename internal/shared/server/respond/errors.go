package respond

import (
	"github.com/gin-gonic/gin"

	"dqsurvey/internal/shared/telemetry"
)

// ErrorBody is the error payload returned by every route.
type ErrorBody struct {
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// Error logs the failure and aborts with a standardized error body.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if section, ok := c.Get("section"); ok {
		fields["section"] = section
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorBody{
		Message: message,
		Code:    code,
		Details: details,
	})
}

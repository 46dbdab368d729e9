package respond

import (
	"github.com/gin-gonic/gin"

	"sorot-backend/internal/shared/telemetry"
)

// ErrorResponse is the wire shape for failures: a flat error string plus
// optional details (details are only populated in dev environments).
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Error sends a standardized error response and logs it.
func Error(c *gin.Context, status int, message string) {
	ErrorWithDetails(c, status, message, "")
}

// ErrorWithDetails sends an error response carrying extra diagnostic text.
func ErrorWithDetails(c *gin.Context, status int, message, details string) {
	telemetry.Error("http.error", map[string]any{
		"status":     status,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	})

	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Details: details})
}

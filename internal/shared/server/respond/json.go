package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the success wrapper every data-bearing response uses.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 response with the standard {success, data} envelope.
func OK(c *gin.Context, data any) {
	JSON(c, http.StatusOK, Envelope{Success: true, Data: data})
}

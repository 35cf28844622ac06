package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key the access logger reads.
const RequestIDKey = "request_id"

// RequestID tags every request with a stable ID for log correlation. An
// ID supplied by the front end or a proxy is kept, so a browser-side
// error report can be matched to the server log line.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			generated, _ := uuid.NewV7()
			id = generated.String()
		}

		c.Set(RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

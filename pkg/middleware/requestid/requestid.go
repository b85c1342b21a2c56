// Package requestid tags every request with an id echoed in X-Request-ID.
package requestid

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerKey  = "X-Request-ID"
	contextKey = "request_id"
	maxLength  = 128
)

type ctxKey struct{}

// Middleware keeps a well-formed incoming X-Request-ID and otherwise issues a
// UUID. The id is stored on the gin context and the request context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerKey)
		if !valid(id) {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, id))
		c.Writer.Header().Set(headerKey, id)
		c.Next()
	}
}

// Value returns the id stored by Middleware, or "".
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}

// FromContext returns the id carried by a request context, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func valid(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/pkg/middleware/requestid"
)

// Audit records one audit line for every successful mutation on the route.
func Audit(logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		actor := "anonymous"
		if claims, ok := c.Get(ContextUserKey); ok {
			if user, ok := claims.(*models.JWTClaims); ok && user.Subject != "" {
				actor = user.Subject
			}
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("actor", actor),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestid.Value(c)),
		}
		for _, param := range c.Params {
			fields = append(fields, zap.String("param_"+param.Key, param.Value))
		}
		logger.Info("audit", fields...)
	}
}

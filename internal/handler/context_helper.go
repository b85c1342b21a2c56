package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration/internal/middleware"
	"github.com/noah-isme/course-registration/internal/models"
	appErrors "github.com/noah-isme/course-registration/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// pathID parses a non-negative integer path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}

func queryFlag(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(c.Query(name))
	return err == nil && value
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}

package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration/internal/models"
	appErrors "github.com/noah-isme/course-registration/pkg/errors"
	"github.com/noah-isme/course-registration/pkg/response"
)

// Self grants access to a TEACHER token whose teacher_id claim matches the
// teacher id in the route.
const Self = "SELF"

// TeacherParam is the path parameter compared against the teacher_id claim.
const TeacherParam = "id"

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == Self {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf && ownsTeacherRoute(c, claims) {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

func ownsTeacherRoute(c *gin.Context, claims *models.JWTClaims) bool {
	if claims.Role != models.RoleTeacher || claims.TeacherID == nil {
		return false
	}
	target, err := strconv.ParseInt(c.Param(TeacherParam), 10, 64)
	return err == nil && target == *claims.TeacherID
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/internal/service"
)

func newAuthService() *service.AuthService {
	return service.NewAuthService(nil, nil, service.AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour})
}

func issue(t *testing.T, auth *service.AuthService, role models.UserRole, teacherID *int64) string {
	t.Helper()
	token, err := auth.IssueToken(models.TokenRequest{Subject: "tester", Role: role, TeacherID: teacherID})
	require.NoError(t, err)
	return token.AccessToken
}

func newProtectedRouter(auth *service.AuthService, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.DELETE("/teachers/:id/courses/:courseId", JWT(auth), RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doDelete(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := newProtectedRouter(newAuthService(), string(models.RoleAdmin))

	rec := doDelete(r, "/teachers/1/courses/2", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/teachers/1/courses/2", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doDelete(r, "/teachers/1/courses/2", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsTokenSignedWithAnotherSecret(t *testing.T) {
	other := service.NewAuthService(nil, nil, service.AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	r := newProtectedRouter(newAuthService(), string(models.RoleAdmin))

	rec := doDelete(r, "/teachers/1/courses/2", issue(t, other, models.RoleAdmin, nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRBACAdminAllowedEverywhere(t *testing.T) {
	auth := newAuthService()
	r := newProtectedRouter(auth, string(models.RoleAdmin), Self)

	rec := doDelete(r, "/teachers/7/courses/2", issue(t, auth, models.RoleAdmin, nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRBACTeacherLimitedToOwnRoute(t *testing.T) {
	auth := newAuthService()
	r := newProtectedRouter(auth, string(models.RoleAdmin), Self)
	own := int64(2)
	token := issue(t, auth, models.RoleTeacher, &own)

	assert.Equal(t, http.StatusNoContent, doDelete(r, "/teachers/2/courses/1", token).Code)
	assert.Equal(t, http.StatusForbidden, doDelete(r, "/teachers/1/courses/1", token).Code)
}

func TestRBACTeacherRejectedWithoutSelf(t *testing.T) {
	auth := newAuthService()
	r := newProtectedRouter(auth, string(models.RoleAdmin))
	own := int64(2)

	rec := doDelete(r, "/teachers/2/courses/1", issue(t, auth, models.RoleTeacher, &own))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalJWTAttachesClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newAuthService()
	r := gin.New()
	var seen *models.JWTClaims
	r.GET("/x", OptionalJWT(auth), func(c *gin.Context) {
		if v, ok := c.Get(ContextUserKey); ok {
			seen = v.(*models.JWTClaims)
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, auth, models.RoleAdmin, nil))
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, models.RoleAdmin, seen.Role)
}

func TestAuditLogsSuccessfulMutationsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.POST("/courses/:id/registrations", Audit(zap.New(core), "register", "course"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusUnprocessableEntity)
			return
		}
		c.Status(http.StatusCreated)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/courses/3/registrations", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/courses/3/registrations?fail=1", nil))

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "register", fields["action"])
	assert.Equal(t, "anonymous", fields["actor"])
	assert.Equal(t, "3", fields["param_id"])
}

func TestMetricsRecordsRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/metrics"))
	r.GET("/courses/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/courses/4", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/courses/5", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	count, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

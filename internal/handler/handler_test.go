package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration/internal/middleware"
	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/internal/repository"
	"github.com/noah-isme/course-registration/internal/service"
	appErrors "github.com/noah-isme/course-registration/pkg/errors"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newRegistrationRouter(t *testing.T) (*gin.Engine, *service.RegistrationService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.NewRegistrationService(
		repository.NewMemoryRepository[models.Student]("student"),
		repository.NewMemoryRepository[models.Teacher]("teacher"),
		repository.NewMemoryRepository[models.Course]("course"),
		nil, nil,
	)
	students := NewStudentHandler(svc)
	teachers := NewTeacherHandler(svc)
	courses := NewCourseHandler(svc, service.NewExportService(svc, nil))

	r := gin.New()
	r.GET("/students", students.List)
	r.POST("/students", students.Create)
	r.GET("/students/:id", students.Get)
	r.GET("/students/:id/credits", students.Credits)
	r.GET("/teachers", teachers.List)
	r.POST("/teachers", teachers.Create)
	r.GET("/teachers/:id", teachers.Get)
	r.DELETE("/teachers/:id", teachers.Delete)
	r.DELETE("/teachers/:id/courses/:courseId", teachers.DeleteCourse)
	r.GET("/courses", courses.List)
	r.POST("/courses", courses.Create)
	r.GET("/courses/:id", courses.Get)
	r.POST("/courses/:id/registrations", courses.Register)
	r.GET("/courses/:id/students", courses.Students)
	r.GET("/courses/:id/roster.csv", courses.RosterCSV)
	r.GET("/courses/:id/roster.pdf", courses.RosterPDF)
	return r, svc
}

func perform(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, r http.Handler) {
	t.Helper()
	require.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/teachers", gin.H{"firstName": "Radu", "lastName": "Dragan", "teacherId": 1}).Code)
	require.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/teachers", gin.H{"firstName": "Florin", "lastName": "Dragomirescu", "teacherId": 2}).Code)
	for i, name := range []string{"Alin", "Mihai", "Flavius"} {
		rec := perform(r, http.MethodPost, "/students", gin.H{"firstName": name, "lastName": "X", "studentId": i + 1})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/courses", gin.H{"name": "Baze de date", "teacher": 2, "maxEnrollment": 2, "credits": 5, "courseId": 1}).Code)
	require.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/courses", gin.H{"name": "Analiza", "teacher": 1, "maxEnrollment": 5, "credits": 31, "courseId": 2}).Code)
}

func TestRegistrationFlowOverHTTP(t *testing.T) {
	r, _ := newRegistrationRouter(t)
	seed(t, r)

	rec := perform(r, http.MethodPost, "/courses/1/registrations", gin.H{"student_id": 1})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = perform(r, http.MethodPost, "/courses/1/registrations", gin.H{"student_id": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, decode(t, rec).Error.Code)

	rec = perform(r, http.MethodPost, "/courses/2/registrations", gin.H{"student_id": 2})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, appErrors.ErrCreditLimitExceeded.Code, decode(t, rec).Error.Code)

	require.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/courses/1/registrations", gin.H{"student_id": 2}).Code)
	rec = perform(r, http.MethodPost, "/courses/1/registrations", gin.H{"student_id": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, appErrors.ErrCourseFull.Code, decode(t, rec).Error.Code)

	rec = perform(r, http.MethodPost, "/courses/10/registrations", gin.H{"student_id": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = perform(r, http.MethodGet, "/courses/1/students", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.EqualValues(t, 2, env.Meta["count"])

	rec = perform(r, http.MethodGet, "/students/1/credits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"studentId":1,"credits":5,"maxCredits":30}`, string(decode(t, rec).Data))

	rec = perform(r, http.MethodGet, "/courses?free=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var free []models.Course
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &free))
	require.Len(t, free, 1)
	assert.Equal(t, int64(2), free[0].CourseID)
}

func TestRegisterRequiresStudentID(t *testing.T) {
	r, _ := newRegistrationRouter(t)
	seed(t, r)

	rec := perform(r, http.MethodPost, "/courses/1/registrations", gin.H{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, rec).Error.Code)
}

func TestInvalidPathIDs(t *testing.T) {
	r, _ := newRegistrationRouter(t)

	for _, path := range []string{"/students/abc", "/courses/-1", "/teachers/1.5"} {
		rec := perform(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestCreateConflictsAndValidation(t *testing.T) {
	r, _ := newRegistrationRouter(t)
	seed(t, r)

	rec := perform(r, http.MethodPost, "/students", gin.H{"firstName": "Dup", "lastName": "Dup", "studentId": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = perform(r, http.MethodPost, "/courses", gin.H{"name": "Orphan", "teacher": 9, "maxEnrollment": 1, "credits": 1, "courseId": 7})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, appErrors.ErrTeacherNotFound.Code, decode(t, rec).Error.Code)

	rec = perform(r, http.MethodPost, "/students", gin.H{"lastName": "NoFirst", "studentId": 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/teachers", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	out := httptest.NewRecorder()
	r.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestStudentListVariants(t *testing.T) {
	r, _ := newRegistrationRouter(t)
	perform(r, http.MethodPost, "/teachers", gin.H{"firstName": "A", "lastName": "B", "teacherId": 1})
	perform(r, http.MethodPost, "/students", gin.H{"firstName": "C", "lastName": "C", "studentId": 3})
	perform(r, http.MethodPost, "/students", gin.H{"firstName": "A", "lastName": "A", "studentId": 1})
	perform(r, http.MethodPost, "/courses", gin.H{"name": "Z", "teacher": 1, "maxEnrollment": 3, "credits": 1, "courseId": 1})
	perform(r, http.MethodPost, "/courses/1/registrations", gin.H{"student_id": 3})

	ids := func(path string) []int64 {
		rec := perform(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var students []models.Student
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &students))
		out := make([]int64, 0, len(students))
		for _, s := range students {
			out = append(out, s.StudentID)
		}
		return out
	}

	assert.Equal(t, []int64{3, 1}, ids("/students"))
	assert.Equal(t, []int64{1, 3}, ids("/students?sort=id"))
	assert.Equal(t, []int64{3}, ids("/students?enrolled=true"))
}

func TestDeleteTeacherCourseOverHTTP(t *testing.T) {
	r, svc := newRegistrationRouter(t)
	seed(t, r)
	require.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/courses/1/registrations", gin.H{"student_id": 1}).Code)

	rec := perform(r, http.MethodDelete, "/teachers/1/courses/1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, appErrors.ErrNotTeachingThisCourse.Code, decode(t, rec).Error.Code)

	rec = perform(r, http.MethodDelete, "/teachers/2/courses/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	student, err := svc.GetStudent(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, student.EnrolledCourses)
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/courses/1", nil).Code)
}

func TestDeleteTeacherOverHTTP(t *testing.T) {
	r, _ := newRegistrationRouter(t)
	seed(t, r)

	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodDelete, "/teachers/2", nil).Code)
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/teachers/2", nil).Code)
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/courses/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodDelete, "/teachers/2", nil).Code)
}

func TestRosterExports(t *testing.T) {
	r, _ := newRegistrationRouter(t)
	seed(t, r)
	require.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/courses/1/registrations", gin.H{"student_id": 2}).Code)

	rec := perform(r, http.MethodGet, "/courses/1/roster.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "course-1-roster.csv")
	assert.Contains(t, rec.Body.String(), "Mihai")

	rec = perform(r, http.MethodGet, "/courses/1/roster.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/courses/9/roster.csv", nil).Code)
}

type failingCourses struct {
	courseService
	err error
}

func (f failingCourses) ListCourses(context.Context) ([]models.Course, error) {
	return nil, f.err
}

func TestInternalErrorsAreRecordedOnContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewCourseHandler(failingCourses{err: errors.New("connection reset")}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/courses", nil)
	h.List(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, appErrors.ErrInternal.Code, decode(t, rec).Error.Code)
	require.Len(t, c.Errors, 1)
}

type stubLogin struct {
	token *models.TokenResponse
	err   error
	req   models.LoginRequest
}

func (s *stubLogin) Login(_ context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	s.req = req
	return s.token, s.err
}

func TestAuthTokenHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &stubLogin{token: &models.TokenResponse{AccessToken: "abc", TokenType: "Bearer", ExpiresIn: 60}}
	h := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(`{"username":"admin","password":"pw"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Token(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", stub.req.Username)
	assert.JSONEq(t, `{"access_token":"abc","token_type":"Bearer","expires_in":60}`, string(decode(t, rec).Data))

	stub.err = appErrors.ErrInvalidCredentials
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(`{"username":"admin","password":"bad"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Token(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMeReadsClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&stubLogin{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	teacherID := int64(2)
	claims := &models.JWTClaims{Role: models.RoleTeacher, TeacherID: &teacherID}
	claims.Subject = "florin"
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, claims)
	h.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subject":"florin","role":"TEACHER","teacher_id":2}`, string(decode(t, rec).Data))
}

func TestReadinessChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := ReadinessCheck{Name: "store", Check: func(context.Context) error { return nil }}
	down := ReadinessCheck{Name: "cache", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	NewMetricsHandler(nil, ok).Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	NewMetricsHandler(nil, ok, down).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dial tcp: refused")

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	NewMetricsHandler(nil).Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

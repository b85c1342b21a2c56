package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/pkg/response"
)

type studentService interface {
	AddStudent(ctx context.Context, student models.Student) (models.Student, error)
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	ListStudents(ctx context.Context) ([]models.Student, error)
	SortStudentsByID(ctx context.Context) ([]models.Student, error)
	FilterStudentsEnrolled(ctx context.Context) ([]models.Student, error)
	StudentCredits(ctx context.Context, studentID int64) (int, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param sort query string false "Sort order, only \"id\" is supported"
// @Param enrolled query bool false "Only students registered to at least one course"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var (
		students []models.Student
		err      error
	)
	switch {
	case queryFlag(c, "enrolled"):
		students, err = h.students.FilterStudentsEnrolled(c.Request.Context())
	case c.Query("sort") == "id":
		students, err = h.students.SortStudentsByID(c.Request.Context())
	default:
		students, err = h.students.ListStudents(c.Request.Context())
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, students, len(students))
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.students.GetStudent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.Student true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.Student
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	student, err := h.students.AddStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Credits godoc
// @Summary Credits carried by a student
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/credits [get]
func (h *StudentHandler) Credits(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	credits, err := h.students.StudentCredits(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"studentId":  id,
		"credits":    credits,
		"maxCredits": models.MaxCredits,
	})
}

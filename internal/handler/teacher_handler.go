package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/pkg/response"
)

type teacherService interface {
	AddTeacher(ctx context.Context, teacher models.Teacher) (models.Teacher, error)
	GetTeacher(ctx context.Context, id int64) (*models.Teacher, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	DeleteTeacher(ctx context.Context, teacherID int64) error
	DeleteTeacherCourse(ctx context.Context, courseID, teacherID int64) error
}

// TeacherHandler exposes teacher endpoints.
type TeacherHandler struct {
	teachers teacherService
}

// NewTeacherHandler constructs TeacherHandler.
func NewTeacherHandler(teachers teacherService) *TeacherHandler {
	return &TeacherHandler{teachers: teachers}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	teachers, err := h.teachers.ListTeachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, teachers, len(teachers))
}

// Get godoc
// @Summary Get teacher detail
// @Tags Teachers
// @Produce json
// @Param id path int true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	teacher, err := h.teachers.GetTeacher(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher)
}

// Create godoc
// @Summary Create teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body models.Teacher true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req models.Teacher
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	teacher, err := h.teachers.AddTeacher(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Delete godoc
// @Summary Delete teacher with every course they teach
// @Tags Teachers
// @Param id path int true "Teacher ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.teachers.DeleteTeacher(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteCourse godoc
// @Summary Delete a course taught by the teacher
// @Description Withdraws every enrolled student and removes the course.
// @Tags Teachers
// @Param id path int true "Teacher ID"
// @Param courseId path int true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /teachers/{id}/courses/{courseId} [delete]
func (h *TeacherHandler) DeleteCourse(c *gin.Context) {
	teacherID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	courseID, err := pathID(c, "courseId")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.teachers.DeleteTeacherCourse(c.Request.Context(), courseID, teacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

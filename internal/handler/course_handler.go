package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/internal/service"
	"github.com/noah-isme/course-registration/pkg/response"
)

type courseService interface {
	AddCourse(ctx context.Context, course models.Course) (models.Course, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	SortCoursesByName(ctx context.Context) ([]models.Course, error)
	RetrieveCoursesWithFreePlaces(ctx context.Context) ([]models.Course, error)
	FilterCoursesWithStudents(ctx context.Context) ([]models.Course, error)
	Register(ctx context.Context, courseID, studentID int64) error
	RetrieveStudentsEnrolledForCourse(ctx context.Context, courseID int64) ([]models.Student, error)
}

type rosterExporter interface {
	CourseRoster(ctx context.Context, courseID int64, format string) (*service.ExportFile, error)
}

// RegistrationRequest enrolls a student to the course in the path.
type RegistrationRequest struct {
	StudentID *int64 `json:"student_id" binding:"required"`
}

// CourseHandler exposes course, registration and roster endpoints.
type CourseHandler struct {
	courses courseService
	export  rosterExporter
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseService, export rosterExporter) *CourseHandler {
	return &CourseHandler{courses: courses, export: export}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param sort query string false "Sort order, only \"name\" is supported"
// @Param free query bool false "Only courses with free places"
// @Param with_students query bool false "Only courses with at least one student"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		courses []models.Course
		err     error
	)
	switch {
	case queryFlag(c, "free"):
		courses, err = h.courses.RetrieveCoursesWithFreePlaces(ctx)
	case queryFlag(c, "with_students"):
		courses, err = h.courses.FilterCoursesWithStudents(ctx)
	case c.Query("sort") == "name":
		courses, err = h.courses.SortCoursesByName(ctx)
	default:
		courses, err = h.courses.ListCourses(ctx)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, courses, len(courses))
}

// Get godoc
// @Summary Get course detail
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.GetCourse(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body models.Course true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req models.Course
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	course, err := h.courses.AddCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Register godoc
// @Summary Register a student to the course
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param payload body RegistrationRequest true "Student to register"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/registrations [post]
func (h *CourseHandler) Register(c *gin.Context) {
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	if err := h.courses.Register(c.Request.Context(), courseID, *req.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"courseId": courseID, "studentId": *req.StudentID})
}

// Students godoc
// @Summary Students enrolled in the course
// @Tags Registrations
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students [get]
func (h *CourseHandler) Students(c *gin.Context) {
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.courses.RetrieveStudentsEnrolledForCourse(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, students, len(students))
}

// RosterCSV godoc
// @Summary Export the course roster as CSV
// @Tags Exports
// @Produce text/csv
// @Param id path int true "Course ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/roster.csv [get]
func (h *CourseHandler) RosterCSV(c *gin.Context) {
	h.roster(c, service.FormatCSV)
}

// RosterPDF godoc
// @Summary Export the course roster as PDF
// @Tags Exports
// @Produce application/pdf
// @Param id path int true "Course ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/roster.pdf [get]
func (h *CourseHandler) RosterPDF(c *gin.Context) {
	h.roster(c, service.FormatPDF)
}

func (h *CourseHandler) roster(c *gin.Context, format string) {
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.export.CourseRoster(c.Request.Context(), courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-registration/internal/models"
	appErrors "github.com/noah-isme/course-registration/pkg/errors"
	"github.com/noah-isme/course-registration/pkg/export"
	applog "github.com/noah-isme/course-registration/pkg/logger"
)

// Roster export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type rosterSource interface {
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	GetTeacher(ctx context.Context, id int64) (*models.Teacher, error)
	RetrieveStudentsEnrolledForCourse(ctx context.Context, courseID int64) ([]models.Student, error)
}

type documentRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportFile is a rendered document ready to be sent to a client.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders course rosters as CSV or PDF.
type ExportService struct {
	source    rosterSource
	renderers map[string]documentRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(source rosterSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		source: source,
		renderers: map[string]documentRenderer{
			FormatCSV: export.NewCSVExporter(),
			FormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
	}
}

// CourseRoster renders the list of students enrolled in the course.
func (s *ExportService) CourseRoster(ctx context.Context, courseID int64, format string) (*ExportFile, error) {
	format = strings.ToLower(format)
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	course, err := s.source.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	students, err := s.source.RetrieveStudentsEnrolledForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	notes := []string{
		fmt.Sprintf("Course ID: %d", course.CourseID),
		fmt.Sprintf("Credits: %d", course.Credits),
		fmt.Sprintf("Enrolled: %d / %d", course.NumberOfStudents(), course.MaxEnrollment),
	}
	if teacher, err := s.source.GetTeacher(ctx, course.TeacherID); err == nil {
		notes = append(notes, fmt.Sprintf("Teacher: %s %s", teacher.FirstName, teacher.LastName))
	} else {
		s.logger.Warn("roster export without teacher", zap.Int64("course_id", courseID), zap.Error(err))
	}

	payload, err := renderer.Render(rosterDataset(*course, students, notes))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render roster")
	}

	applog.For(ctx, s.logger).Info("roster exported", zap.Int64("course_id", courseID), zap.String("format", format), zap.Int("students", len(students)))
	return &ExportFile{
		Filename:    fmt.Sprintf("course-%d-roster.%s", courseID, format),
		ContentType: renderer.ContentType(),
		Content:     payload,
	}, nil
}

func rosterDataset(course models.Course, students []models.Student, notes []string) export.Dataset {
	headers := []string{"Student ID", "First name", "Last name", "Courses"}
	rows := make([][]string, 0, len(students))
	for _, student := range students {
		rows = append(rows, []string{
			strconv.FormatInt(student.StudentID, 10),
			student.FirstName,
			student.LastName,
			strconv.Itoa(student.NumberOfCourses()),
		})
	}
	return export.Dataset{Title: course.Name, Notes: notes, Headers: headers, Rows: rows}
}

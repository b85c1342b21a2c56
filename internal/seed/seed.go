// Package seed loads YAML fixtures into the registration service.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/course-registration/internal/models"
	appErrors "github.com/noah-isme/course-registration/pkg/errors"
)

// Registration pairs a course with a student to enroll.
type Registration struct {
	CourseID  int64 `yaml:"course"`
	StudentID int64 `yaml:"student"`
}

// Fixture is the document read from a seed file.
type Fixture struct {
	Teachers      []models.Teacher `yaml:"teachers"`
	Students      []models.Student `yaml:"students"`
	Courses       []models.Course  `yaml:"courses"`
	Registrations []Registration   `yaml:"registrations"`
}

// Result summarises what a seed run changed.
type Result struct {
	Teachers      int
	Students      int
	Courses       int
	Registrations int
	Skipped       int
	Rejected      []string
}

type registrationService interface {
	AddTeacher(ctx context.Context, teacher models.Teacher) (models.Teacher, error)
	AddStudent(ctx context.Context, student models.Student) (models.Student, error)
	AddCourse(ctx context.Context, course models.Course) (models.Course, error)
	Register(ctx context.Context, courseID, studentID int64) error
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(data []byte) (*Fixture, error) {
	var fixture Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fixture); err != nil {
		if errors.Is(err, io.EOF) {
			return &fixture, nil
		}
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fixture, nil
}

// LoadFile reads and parses a fixture file.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return Parse(data)
}

// Seeder applies fixtures through the service so every registration rule holds.
type Seeder struct {
	svc    registrationService
	logger *zap.Logger
}

// NewSeeder constructs a Seeder.
func NewSeeder(svc registrationService, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{svc: svc, logger: logger}
}

// Apply inserts teachers, then students, then courses, then registrations.
// Entries that already exist are skipped, entries refused by a domain rule are
// listed in Result.Rejected, and infrastructure failures are joined into the
// returned error without stopping the run.
func (s *Seeder) Apply(ctx context.Context, fixture *Fixture) (Result, error) {
	var (
		result   Result
		finalErr error
	)
	if fixture == nil {
		return result, nil
	}

	for _, teacher := range fixture.Teachers {
		_, err := s.svc.AddTeacher(ctx, teacher)
		finalErr = errors.Join(finalErr, s.classify(&result, &result.Teachers, fmt.Sprintf("teacher %d", teacher.TeacherID), err))
	}
	for _, student := range fixture.Students {
		_, err := s.svc.AddStudent(ctx, student)
		finalErr = errors.Join(finalErr, s.classify(&result, &result.Students, fmt.Sprintf("student %d", student.StudentID), err))
	}
	for _, course := range fixture.Courses {
		_, err := s.svc.AddCourse(ctx, course)
		finalErr = errors.Join(finalErr, s.classify(&result, &result.Courses, fmt.Sprintf("course %d", course.CourseID), err))
	}
	for _, reg := range fixture.Registrations {
		err := s.svc.Register(ctx, reg.CourseID, reg.StudentID)
		label := fmt.Sprintf("registration of student %d to course %d", reg.StudentID, reg.CourseID)
		finalErr = errors.Join(finalErr, s.classify(&result, &result.Registrations, label, err))
	}

	s.logger.Info("fixture applied",
		zap.Int("teachers", result.Teachers),
		zap.Int("students", result.Students),
		zap.Int("courses", result.Courses),
		zap.Int("registrations", result.Registrations),
		zap.Int("skipped", result.Skipped),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, finalErr
}

func (s *Seeder) classify(result *Result, counter *int, label string, err error) error {
	switch {
	case err == nil:
		*counter++
		return nil
	case errors.Is(err, appErrors.ErrAlreadyExists), errors.Is(err, appErrors.ErrAlreadyRegistered):
		result.Skipped++
		s.logger.Debug("seed entry already present", zap.String("entry", label))
		return nil
	case appErrors.FromError(err).Code == appErrors.ErrInternal.Code:
		s.logger.Error("seed entry failed", zap.String("entry", label), zap.Error(err))
		return fmt.Errorf("%s: %w", label, err)
	default:
		result.Rejected = append(result.Rejected, fmt.Sprintf("%s: %s", label, appErrors.FromError(err).Message))
		s.logger.Warn("seed entry rejected", zap.String("entry", label), zap.Error(err))
		return nil
	}
}

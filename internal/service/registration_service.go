package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration/internal/models"
	appErrors "github.com/noah-isme/course-registration/pkg/errors"
	applog "github.com/noah-isme/course-registration/pkg/logger"
)

type studentRepository interface {
	Create(ctx context.Context, student models.Student) error
	FindByID(ctx context.Context, id int64) (models.Student, error)
	List(ctx context.Context) ([]models.Student, error)
	Update(ctx context.Context, student models.Student) error
	Delete(ctx context.Context, id int64) error
}

type teacherRepository interface {
	Create(ctx context.Context, teacher models.Teacher) error
	FindByID(ctx context.Context, id int64) (models.Teacher, error)
	List(ctx context.Context) ([]models.Teacher, error)
	Update(ctx context.Context, teacher models.Teacher) error
	Delete(ctx context.Context, id int64) error
}

type courseRepository interface {
	Create(ctx context.Context, course models.Course) error
	FindByID(ctx context.Context, id int64) (models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Update(ctx context.Context, course models.Course) error
	Delete(ctx context.Context, id int64) error
}

// Snapshotter loads and stores a whole repository at once (the JSON files).
type Snapshotter interface {
	Name() string
	Load(ctx context.Context) error
	Save(ctx context.Context) error
}

// RegistrationServiceOption configures the service.
type RegistrationServiceOption func(*RegistrationService)

// WithReportCache caches list and report queries.
func WithReportCache(cache *CacheService) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.cache = cache
	}
}

// WithRegistrationMetrics records operation outcomes and store timings.
func WithRegistrationMetrics(metrics *MetricsService) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.metrics = metrics
	}
}

// WithSnapshots sets the stores loaded by LoadAll and written by SaveAll, in order.
func WithSnapshots(snapshots ...Snapshotter) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.snapshots = append(s.snapshots, snapshots...)
	}
}

// RegistrationService applies the enrollment rules over the student, teacher
// and course repositories. It holds no entity state of its own. Mutations are
// serialized from their first lookup through the last write and the cache
// invalidation; reads and snapshot writes share the lock.
type RegistrationService struct {
	mu sync.RWMutex

	students  studentRepository
	teachers  teacherRepository
	courses   courseRepository
	validator *validator.Validate
	logger    *zap.Logger
	cache     *CacheService
	metrics   *MetricsService
	snapshots []Snapshotter
	autosave  *autosaver
}

// NewRegistrationService constructs the registration controller.
func NewRegistrationService(students studentRepository, teachers teacherRepository, courses courseRepository, validate *validator.Validate, logger *zap.Logger, opts ...RegistrationServiceOption) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RegistrationService{
		students:  students,
		teachers:  teachers,
		courses:   courses,
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.autosave != nil {
		svc.autosave.bind(svc)
	}
	return svc
}

// Register enrolls the student into the course. Checks run in a fixed order
// (existence, duplicate, credit limit, capacity) and nothing is written until
// all of them pass.
func (s *RegistrationService) Register(ctx context.Context, courseID, studentID int64) (err error) {
	defer func() { s.record("register", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	course, courseErr := s.courses.FindByID(ctx, courseID)
	student, studentErr := s.students.FindByID(ctx, studentID)
	if err := firstLookupError(courseErr, studentErr); err != nil {
		return lookupError(err, appErrors.ErrNotFound, "the course or the student could not be found", "failed to load course or student")
	}

	if course.HasStudent(studentID) || student.IsEnrolledIn(courseID) {
		return appErrors.Clone(appErrors.ErrAlreadyRegistered, fmt.Sprintf("student %d is already registered to course %d", studentID, courseID))
	}

	credits, err := s.studentCredits(ctx, student)
	if err != nil {
		return err
	}
	if credits+course.Credits > models.MaxCredits {
		return appErrors.Clone(appErrors.ErrCreditLimitExceeded, fmt.Sprintf("the credits would be %d by adding this course, the limit is %d", credits+course.Credits, models.MaxCredits))
	}

	if !course.HasFreePlaces() {
		return appErrors.Clone(appErrors.ErrCourseFull, fmt.Sprintf("course %d is full (%d places)", courseID, course.MaxEnrollment))
	}

	models.Enroll(&student, &course)
	if err := s.courses.Update(ctx, course); err != nil {
		return appErrors.Internal(err, "failed to update course")
	}
	if err := s.students.Update(ctx, student); err != nil {
		return appErrors.Internal(err, "failed to update student")
	}

	s.changed(ctx)
	applog.For(ctx, s.logger).Info("student registered", zap.Int64("course_id", courseID), zap.Int64("student_id", studentID), zap.Int("credits", credits+course.Credits))
	return nil
}

// DeleteTeacherCourse removes a course on behalf of the teacher who teaches
// it. Every enrolled student is withdrawn first, then the course leaves the
// teacher's list and the course itself is deleted.
func (s *RegistrationService) DeleteTeacherCourse(ctx context.Context, courseID, teacherID int64) (err error) {
	defer func() { s.record("delete_teacher_course", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	course, courseErr := s.courses.FindByID(ctx, courseID)
	teacher, teacherErr := s.teachers.FindByID(ctx, teacherID)
	if err := firstLookupError(courseErr, teacherErr); err != nil {
		return lookupError(err, appErrors.ErrNotFound, "the course or the teacher could not be found", "failed to load course or teacher")
	}

	if course.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrNotTeachingThisCourse, fmt.Sprintf("course %d is not taught by teacher %d", courseID, teacherID))
	}

	if err := s.removeCourse(ctx, course, &teacher); err != nil {
		return err
	}

	s.changed(ctx)
	applog.For(ctx, s.logger).Info("course deleted by teacher", zap.Int64("course_id", courseID), zap.Int64("teacher_id", teacherID))
	return nil
}

// DeleteTeacher removes the teacher after deleting every course it teaches
// through the same path as DeleteTeacherCourse.
func (s *RegistrationService) DeleteTeacher(ctx context.Context, teacherID int64) (err error) {
	defer func() { s.record("delete_teacher", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		return lookupError(err, appErrors.ErrNotFound, "teacher not found", "failed to load teacher")
	}

	courses, err := s.courses.List(ctx)
	if err != nil {
		return appErrors.Internal(err, "failed to list courses")
	}
	for _, course := range courses {
		if course.TeacherID != teacherID {
			continue
		}
		if err := s.removeCourse(ctx, course, &teacher); err != nil {
			return err
		}
	}

	if err := s.teachers.Delete(ctx, teacherID); err != nil {
		return appErrors.Internal(err, "failed to delete teacher")
	}

	s.changed(ctx)
	applog.For(ctx, s.logger).Info("teacher deleted", zap.Int64("teacher_id", teacherID))
	return nil
}

func (s *RegistrationService) removeCourse(ctx context.Context, course models.Course, teacher *models.Teacher) error {
	for _, studentID := range course.StudentsEnrolled {
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("enrolled student missing", zap.Int64("course_id", course.CourseID), zap.Int64("student_id", studentID))
				continue
			}
			return appErrors.Internal(err, "failed to load enrolled student")
		}
		models.Withdraw(&student, &course)
		if err := s.students.Update(ctx, student); err != nil {
			return appErrors.Internal(err, "failed to update student")
		}
	}

	teacher.ReleaseCourse(course.CourseID)
	if err := s.teachers.Update(ctx, *teacher); err != nil {
		return appErrors.Internal(err, "failed to update teacher")
	}

	if err := s.courses.Delete(ctx, course.CourseID); err != nil {
		return appErrors.Internal(err, "failed to delete course")
	}
	return nil
}

// AddStudent stores a new student with an empty course list.
func (s *RegistrationService) AddStudent(ctx context.Context, student models.Student) (_ models.Student, err error) {
	defer func() { s.record("add_student", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validator.Struct(student); err != nil {
		return models.Student{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.ensureAbsent(s.students.FindByID(ctx, student.StudentID)); err != nil {
		return models.Student{}, withMessage(err, "student already exists")
	}

	student.EnrolledCourses = []int64{}
	if err := s.students.Create(ctx, student); err != nil {
		return models.Student{}, appErrors.Internal(err, "failed to create student")
	}

	s.changed(ctx)
	applog.For(ctx, s.logger).Info("student added", zap.Int64("student_id", student.StudentID))
	return student, nil
}

// AddTeacher stores a new teacher with an empty course list.
func (s *RegistrationService) AddTeacher(ctx context.Context, teacher models.Teacher) (_ models.Teacher, err error) {
	defer func() { s.record("add_teacher", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validator.Struct(teacher); err != nil {
		return models.Teacher{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	if err := s.ensureAbsent(s.teachers.FindByID(ctx, teacher.TeacherID)); err != nil {
		return models.Teacher{}, withMessage(err, "teacher already exists")
	}

	teacher.Courses = []int64{}
	if err := s.teachers.Create(ctx, teacher); err != nil {
		return models.Teacher{}, appErrors.Internal(err, "failed to create teacher")
	}

	s.changed(ctx)
	applog.For(ctx, s.logger).Info("teacher added", zap.Int64("teacher_id", teacher.TeacherID))
	return teacher, nil
}

// AddCourse stores a new course with an empty roster and appends it to its
// teacher's course list.
func (s *RegistrationService) AddCourse(ctx context.Context, course models.Course) (_ models.Course, err error) {
	defer func() { s.record("add_course", err) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validator.Struct(course); err != nil {
		return models.Course{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if err := s.ensureAbsent(s.courses.FindByID(ctx, course.CourseID)); err != nil {
		return models.Course{}, withMessage(err, "course already exists")
	}

	teacher, err := s.teachers.FindByID(ctx, course.TeacherID)
	if err != nil {
		return models.Course{}, lookupError(err, appErrors.ErrTeacherNotFound, "the specified teacher does not exist", "failed to load teacher")
	}

	course.StudentsEnrolled = []int64{}
	if err := s.courses.Create(ctx, course); err != nil {
		return models.Course{}, appErrors.Internal(err, "failed to create course")
	}
	teacher.AssignCourse(course.CourseID)
	if err := s.teachers.Update(ctx, teacher); err != nil {
		return models.Course{}, appErrors.Internal(err, "failed to update teacher")
	}

	s.changed(ctx)
	applog.For(ctx, s.logger).Info("course added", zap.Int64("course_id", course.CourseID), zap.Int64("teacher_id", course.TeacherID))
	return course, nil
}

// CalculateStudentCredits sums the credits of the student's enrolled courses.
// Ids without a matching course are skipped.
func (s *RegistrationService) CalculateStudentCredits(ctx context.Context, student models.Student) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.studentCredits(ctx, student)
}

func (s *RegistrationService) studentCredits(ctx context.Context, student models.Student) (int, error) {
	total := 0
	for _, courseID := range student.EnrolledCourses {
		course, err := s.courses.FindByID(ctx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return 0, appErrors.Internal(err, "failed to load enrolled course")
		}
		total += course.Credits
	}
	return total, nil
}

// StudentCredits looks the student up and returns its credit total.
func (s *RegistrationService) StudentCredits(ctx context.Context, studentID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return 0, lookupError(err, appErrors.ErrNotFound, "student not found", "failed to load student")
	}
	return s.studentCredits(ctx, student)
}

// GetStudent returns a single student.
func (s *RegistrationService) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, appErrors.ErrNotFound, "student not found", "failed to load student")
	}
	return &student, nil
}

// GetTeacher returns a single teacher.
func (s *RegistrationService) GetTeacher(ctx context.Context, id int64) (*models.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, appErrors.ErrNotFound, "teacher not found", "failed to load teacher")
	}
	return &teacher, nil
}

// GetCourse returns a single course.
func (s *RegistrationService) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, appErrors.ErrNotFound, "course not found", "failed to load course")
	}
	return &course, nil
}

// ListStudents returns every student in repository order.
func (s *RegistrationService) ListStudents(ctx context.Context) ([]models.Student, error) {
	return cachedReport(ctx, s, ReportKey("students"), s.loadStudents)
}

// ListTeachers returns every teacher in repository order.
func (s *RegistrationService) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	return cachedReport(ctx, s, ReportKey("teachers"), func(ctx context.Context) ([]models.Teacher, error) {
		start := time.Now()
		teachers, err := s.teachers.List(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list teachers")
		}
		s.metrics.ObserveStoreQuery("list_teachers", time.Since(start))
		return teachers, nil
	})
}

// ListCourses returns every course in repository order.
func (s *RegistrationService) ListCourses(ctx context.Context) ([]models.Course, error) {
	return cachedReport(ctx, s, ReportKey("courses"), s.loadCourses)
}

// RetrieveCoursesWithFreePlaces returns courses whose roster is below the seat cap.
func (s *RegistrationService) RetrieveCoursesWithFreePlaces(ctx context.Context) ([]models.Course, error) {
	return cachedReport(ctx, s, ReportKey("courses", "free"), func(ctx context.Context) ([]models.Course, error) {
		courses, err := s.loadCourses(ctx)
		if err != nil {
			return nil, err
		}
		return filterCourses(courses, models.Course.HasFreePlaces), nil
	})
}

// RetrieveStudentsEnrolledForCourse returns, in repository order, the students
// whose course list contains the course. An unknown course yields an empty list.
func (s *RegistrationService) RetrieveStudentsEnrolledForCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	key := ReportKey("courses", strconv.FormatInt(courseID, 10), "students")
	return cachedReport(ctx, s, key, func(ctx context.Context) ([]models.Student, error) {
		students, err := s.loadStudents(ctx)
		if err != nil {
			return nil, err
		}
		return filterStudents(students, func(st models.Student) bool { return st.IsEnrolledIn(courseID) }), nil
	})
}

// SortStudentsByID returns students ascending by id.
func (s *RegistrationService) SortStudentsByID(ctx context.Context) ([]models.Student, error) {
	return cachedReport(ctx, s, ReportKey("students", "sorted"), func(ctx context.Context) ([]models.Student, error) {
		students, err := s.loadStudents(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(students, func(i, j int) bool { return students[i].StudentID < students[j].StudentID })
		return students, nil
	})
}

// SortCoursesByName returns courses ordered by name; ties keep repository order.
func (s *RegistrationService) SortCoursesByName(ctx context.Context) ([]models.Course, error) {
	return cachedReport(ctx, s, ReportKey("courses", "sorted"), func(ctx context.Context) ([]models.Course, error) {
		courses, err := s.loadCourses(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
		return courses, nil
	})
}

// FilterStudentsEnrolled returns students registered to at least one course.
func (s *RegistrationService) FilterStudentsEnrolled(ctx context.Context) ([]models.Student, error) {
	return cachedReport(ctx, s, ReportKey("students", "enrolled"), func(ctx context.Context) ([]models.Student, error) {
		students, err := s.loadStudents(ctx)
		if err != nil {
			return nil, err
		}
		return filterStudents(students, func(st models.Student) bool { return st.NumberOfCourses() > 0 }), nil
	})
}

// FilterCoursesWithStudents returns courses with at least one student.
func (s *RegistrationService) FilterCoursesWithStudents(ctx context.Context) ([]models.Course, error) {
	return cachedReport(ctx, s, ReportKey("courses", "with-students"), func(ctx context.Context) ([]models.Course, error) {
		courses, err := s.loadCourses(ctx)
		if err != nil {
			return nil, err
		}
		return filterCourses(courses, func(c models.Course) bool { return c.NumberOfStudents() > 0 }), nil
	})
}

// LoadAll reads every snapshot. Failures are logged and the remaining
// snapshots are still loaded.
func (s *RegistrationService) LoadAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.snapshots {
		if err := snap.Load(ctx); err != nil {
			s.logger.Error("failed to load data", zap.String("source", snap.Name()), zap.Error(err))
			continue
		}
		s.logger.Debug("data loaded", zap.String("source", snap.Name()))
	}
	s.invalidateReports(ctx)
}

// SaveAll writes every snapshot. Failures are logged and the remaining
// snapshots are still written.
func (s *RegistrationService) SaveAll(ctx context.Context) {
	_ = s.saveSnapshots(ctx)
}

func (s *RegistrationService) saveSnapshots(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var errs error
	for _, snap := range s.snapshots {
		err := snap.Save(ctx)
		s.metrics.RecordSnapshotWrite(snap.Name(), err)
		if err != nil {
			s.logger.Error("failed to save data", zap.String("target", snap.Name()), zap.Error(err))
			errs = errors.Join(errs, fmt.Errorf("save %s: %w", snap.Name(), err))
			continue
		}
		s.logger.Debug("data saved", zap.String("target", snap.Name()))
	}
	return errs
}

func (s *RegistrationService) loadStudents(ctx context.Context) ([]models.Student, error) {
	start := time.Now()
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list students")
	}
	s.metrics.ObserveStoreQuery("list_students", time.Since(start))
	return students, nil
}

func (s *RegistrationService) loadCourses(ctx context.Context) ([]models.Course, error) {
	start := time.Now()
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	s.metrics.ObserveStoreQuery("list_courses", time.Since(start))
	return courses, nil
}

// ensureAbsent turns a lookup result into ErrAlreadyExists when the entity is
// present, nil when it is absent.
func (s *RegistrationService) ensureAbsent(_ any, err error) error {
	if err == nil {
		return appErrors.ErrAlreadyExists
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return appErrors.Internal(err, "failed to check for an existing entity")
}

// changed runs after every successful mutation, with s.mu held.
func (s *RegistrationService) changed(ctx context.Context) {
	s.invalidateReports(ctx)
	s.autosave.notify()
}

func (s *RegistrationService) invalidateReports(ctx context.Context) {
	if err := s.cache.InvalidateReports(ctx); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}

func (s *RegistrationService) record(operation string, err error) {
	if err == nil {
		s.metrics.RecordOperation(operation, "ok")
		return
	}
	s.metrics.RecordOperation(operation, appErrors.FromError(err).Code)
}

// cachedReport holds the read lock from the lookup through the store so a
// report loaded before a mutation cannot be cached after its invalidation.
func cachedReport[T any](ctx context.Context, s *RegistrationService, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cached []T
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	result, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []T{}
	}
	_ = s.cache.Set(ctx, key, result, 0)
	return result, nil
}

func firstLookupError(errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func lookupError(err error, notFound *appErrors.Error, message, internalMessage string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(notFound, message)
	}
	return appErrors.Internal(err, internalMessage)
}

func withMessage(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code == appErrors.ErrAlreadyExists.Code {
		return appErrors.Clone(appErr, message)
	}
	return err
}

func filterCourses(courses []models.Course, keep func(models.Course) bool) []models.Course {
	out := make([]models.Course, 0, len(courses))
	for _, course := range courses {
		if keep(course) {
			out = append(out, course)
		}
	}
	return out
}

func filterStudents(students []models.Student, keep func(models.Student) bool) []models.Student {
	out := make([]models.Student, 0, len(students))
	for _, student := range students {
		if keep(student) {
			out = append(out, student)
		}
	}
	return out
}

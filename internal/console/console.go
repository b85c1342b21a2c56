// Package console implements the interactive numbered menu over any
// reader/writer pair.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-registration/internal/models"
	appErrors "github.com/noah-isme/course-registration/pkg/errors"
)

type registrationService interface {
	LoadAll(ctx context.Context)
	SaveAll(ctx context.Context)
	AddStudent(ctx context.Context, student models.Student) (models.Student, error)
	AddTeacher(ctx context.Context, teacher models.Teacher) (models.Teacher, error)
	AddCourse(ctx context.Context, course models.Course) (models.Course, error)
	Register(ctx context.Context, courseID, studentID int64) error
	DeleteTeacherCourse(ctx context.Context, courseID, teacherID int64) error
	RetrieveCoursesWithFreePlaces(ctx context.Context) ([]models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListStudents(ctx context.Context) ([]models.Student, error)
	SortStudentsByID(ctx context.Context) ([]models.Student, error)
	SortCoursesByName(ctx context.Context) ([]models.Course, error)
	FilterStudentsEnrolled(ctx context.Context) ([]models.Student, error)
	FilterCoursesWithStudents(ctx context.Context) ([]models.Course, error)
}

const menuText = `0. Exit
1. Add student
2. Add teacher
3. Add course
4. Register a student to a course
5. Retrieve courses with free places
6. Retrieve all available courses
7. Delete a teacher's course
8. Show all teachers
9. Show all students
10. Show students sorted by id
11. Show courses sorted by name
12. Filter students enrolled for at least a course
13. Filter courses with at least one student enrolled for
`

const (
	optionExit     = 0
	optionLastItem = 13
)

// errInputClosed is returned by prompts when the reader is exhausted.
var errInputClosed = errors.New("console input closed")

// Menu drives the registration service from line-based input.
type Menu struct {
	svc    registrationService
	in     *bufio.Scanner
	out    io.Writer
	logger *zap.Logger
}

// NewMenu constructs a Menu reading from in and writing to out.
func NewMenu(svc registrationService, in io.Reader, out io.Writer, logger *zap.Logger) *Menu {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Menu{svc: svc, in: bufio.NewScanner(in), out: out, logger: logger}
}

// Run loads every store, serves menu options until 0 is chosen or the input
// ends, then saves every store.
func (m *Menu) Run(ctx context.Context) error {
	m.svc.LoadAll(ctx)
	defer m.svc.SaveAll(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.print(menuText)
		raw, err := m.prompt("Please choose an option: ")
		if err != nil {
			break
		}
		option, err := strconv.Atoi(raw)
		if err != nil || option < optionExit || option > optionLastItem {
			m.println("This option does not exist, please try again!")
			continue
		}
		if option == optionExit {
			break
		}
		if err := m.dispatch(ctx, option); err != nil {
			if errors.Is(err, errInputClosed) {
				break
			}
			m.println(failureMessage(err))
		}
	}

	m.println("The application was closed!")
	return nil
}

func (m *Menu) dispatch(ctx context.Context, option int) error {
	switch option {
	case 1:
		return m.addStudent(ctx)
	case 2:
		return m.addTeacher(ctx)
	case 3:
		return m.addCourse(ctx)
	case 4:
		return m.register(ctx)
	case 5:
		return m.printLines(lines[models.Course](m.svc.RetrieveCoursesWithFreePlaces(ctx)))
	case 6:
		return m.printLines(lines[models.Course](m.svc.ListCourses(ctx)))
	case 7:
		return m.deleteTeacherCourse(ctx)
	case 8:
		return m.printLines(lines[models.Teacher](m.svc.ListTeachers(ctx)))
	case 9:
		return m.printLines(lines[models.Student](m.svc.ListStudents(ctx)))
	case 10:
		return m.printLines(lines[models.Student](m.svc.SortStudentsByID(ctx)))
	case 11:
		return m.printLines(lines[models.Course](m.svc.SortCoursesByName(ctx)))
	case 12:
		return m.printLines(lines[models.Student](m.svc.FilterStudentsEnrolled(ctx)))
	case 13:
		return m.printLines(lines[models.Course](m.svc.FilterCoursesWithStudents(ctx)))
	}
	return nil
}

func (m *Menu) addStudent(ctx context.Context) error {
	var student models.Student
	var err error
	if student.FirstName, err = m.prompt("Enter first name: "); err != nil {
		return err
	}
	if student.LastName, err = m.prompt("Enter last name: "); err != nil {
		return err
	}
	if student.StudentID, err = m.promptID("Enter id: "); err != nil {
		return err
	}
	if _, err := m.svc.AddStudent(ctx, student); err != nil {
		return err
	}
	m.println("Student added successfully!")
	return nil
}

func (m *Menu) addTeacher(ctx context.Context) error {
	var teacher models.Teacher
	var err error
	if teacher.FirstName, err = m.prompt("Enter first name: "); err != nil {
		return err
	}
	if teacher.LastName, err = m.prompt("Enter last name: "); err != nil {
		return err
	}
	if teacher.TeacherID, err = m.promptID("Enter id: "); err != nil {
		return err
	}
	if _, err := m.svc.AddTeacher(ctx, teacher); err != nil {
		return err
	}
	m.println("Teacher added successfully!")
	return nil
}

func (m *Menu) addCourse(ctx context.Context) error {
	var course models.Course
	var err error
	if course.Name, err = m.prompt("Enter course name: "); err != nil {
		return err
	}
	if course.TeacherID, err = m.promptID("Enter a teacher id (that actually exists): "); err != nil {
		return err
	}
	if course.MaxEnrollment, err = m.promptInt("Enter max enrollment: "); err != nil {
		return err
	}
	if course.Credits, err = m.promptInt("Enter number of credits: "); err != nil {
		return err
	}
	if course.CourseID, err = m.promptID("Enter course id: "); err != nil {
		return err
	}
	if _, err := m.svc.AddCourse(ctx, course); err != nil {
		return err
	}
	m.println("Course added successfully!")
	return nil
}

func (m *Menu) register(ctx context.Context) error {
	courseID, err := m.promptID("Enter course id: ")
	if err != nil {
		return err
	}
	studentID, err := m.promptID("Enter student id: ")
	if err != nil {
		return err
	}
	if err := m.svc.Register(ctx, courseID, studentID); err != nil {
		return err
	}
	m.println("Successfully registered to the course!")
	return nil
}

func (m *Menu) deleteTeacherCourse(ctx context.Context) error {
	teacherID, err := m.promptID("Enter teacher id: ")
	if err != nil {
		return err
	}
	courseID, err := m.promptID("Enter course id: ")
	if err != nil {
		return err
	}
	if err := m.svc.DeleteTeacherCourse(ctx, courseID, teacherID); err != nil {
		return err
	}
	m.println("Course successfully deleted!")
	return nil
}

func (m *Menu) prompt(label string) (string, error) {
	m.print(label)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			m.logger.Warn("console read failed", zap.Error(err))
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(m.in.Text()), nil
}

// promptInt re-asks until the answer parses as an integer.
func (m *Menu) promptInt(label string) (int, error) {
	for {
		raw, err := m.prompt(label)
		if err != nil {
			return 0, err
		}
		value, err := strconv.Atoi(raw)
		if err == nil {
			return value, nil
		}
		m.println("Please enter a whole number.")
	}
}

func (m *Menu) promptID(label string) (int64, error) {
	for {
		raw, err := m.prompt(label)
		if err != nil {
			return 0, err
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && value >= 0 {
			return value, nil
		}
		m.println("Please enter a non-negative id.")
	}
}

func (m *Menu) print(text string) {
	_, _ = io.WriteString(m.out, text)
}

func (m *Menu) println(text string) {
	_, _ = fmt.Fprintln(m.out, text)
}

func (m *Menu) printLines(rendered []string, err error) error {
	if err != nil {
		return err
	}
	if len(rendered) == 0 {
		m.println("Nothing to show.")
		return nil
	}
	for _, line := range rendered {
		m.println(line)
	}
	return nil
}

func lines[T fmt.Stringer](items []T, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out, nil
}

func failureMessage(err error) string {
	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.ErrInternal.Code {
		return "Something went wrong: " + appErr.Message
	}
	return appErr.Message
}

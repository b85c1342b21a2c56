package models

import "fmt"

// Course is a seat-capped, credit-weighted offering taught by one teacher.
type Course struct {
	Name             string  `db:"name" json:"name" yaml:"name" validate:"required,max=200"`
	TeacherID        int64   `db:"teacher_id" json:"teacher" yaml:"teacher" validate:"gte=0"`
	MaxEnrollment    int     `db:"max_enrollment" json:"maxEnrollment" yaml:"maxEnrollment" validate:"gte=0"`
	Credits          int     `db:"credits" json:"credits" yaml:"credits" validate:"gte=0"`
	CourseID         int64   `db:"course_id" json:"courseId" yaml:"courseId" validate:"gte=0"`
	StudentsEnrolled []int64 `db:"-" json:"studentsEnrolled" yaml:"studentsEnrolled"`
}

// Key returns the course identity.
func (c Course) Key() int64 {
	return c.CourseID
}

// Clone returns a deep copy of the course.
func (c Course) Clone() Course {
	c.StudentsEnrolled = cloneIDs(c.StudentsEnrolled)
	return c
}

// NumberOfStudents returns the roster size.
func (c Course) NumberOfStudents() int {
	return len(c.StudentsEnrolled)
}

// HasStudent reports whether the student is on the roster.
func (c Course) HasStudent(studentID int64) bool {
	return containsID(c.StudentsEnrolled, studentID)
}

// HasFreePlaces reports whether the roster is below the seat cap.
func (c Course) HasFreePlaces() bool {
	return c.NumberOfStudents() < c.MaxEnrollment
}

func (c Course) String() string {
	return fmt.Sprintf("Course{id=%d, name=%s, teacher=%d, seats=%d/%d, credits=%d, students=%v}",
		c.CourseID, c.Name, c.TeacherID, c.NumberOfStudents(), c.MaxEnrollment, c.Credits, c.StudentsEnrolled)
}

package models

import "fmt"

// Student is a learner who can register to courses.
type Student struct {
	FirstName       string  `db:"first_name" json:"firstName" yaml:"firstName" validate:"required,max=100"`
	LastName        string  `db:"last_name" json:"lastName" yaml:"lastName" validate:"required,max=100"`
	StudentID       int64   `db:"student_id" json:"studentId" yaml:"studentId" validate:"gte=0"`
	EnrolledCourses []int64 `db:"-" json:"enrolledCourses" yaml:"enrolledCourses"`
}

// Key returns the student identity.
func (s Student) Key() int64 {
	return s.StudentID
}

// Clone returns a deep copy so callers never share the enrollment slice.
func (s Student) Clone() Student {
	s.EnrolledCourses = cloneIDs(s.EnrolledCourses)
	return s
}

// IsEnrolledIn reports whether the student is registered to the course.
func (s Student) IsEnrolledIn(courseID int64) bool {
	return containsID(s.EnrolledCourses, courseID)
}

// NumberOfCourses returns how many courses the student is registered to.
func (s Student) NumberOfCourses() int {
	return len(s.EnrolledCourses)
}

func (s Student) String() string {
	return fmt.Sprintf("Student{id=%d, name=%s %s, courses=%v}", s.StudentID, s.FirstName, s.LastName, s.EnrolledCourses)
}

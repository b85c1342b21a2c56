package models

import "fmt"

// Teacher owns the courses listed in Courses.
type Teacher struct {
	FirstName string  `db:"first_name" json:"firstName" yaml:"firstName" validate:"required,max=100"`
	LastName  string  `db:"last_name" json:"lastName" yaml:"lastName" validate:"required,max=100"`
	TeacherID int64   `db:"teacher_id" json:"teacherId" yaml:"teacherId" validate:"gte=0"`
	Courses   []int64 `db:"-" json:"courses" yaml:"courses"`
}

// Key returns the teacher identity.
func (t Teacher) Key() int64 {
	return t.TeacherID
}

// Clone returns a deep copy of the teacher.
func (t Teacher) Clone() Teacher {
	t.Courses = cloneIDs(t.Courses)
	return t
}

// Teaches reports whether the course id is in the teacher's list.
func (t Teacher) Teaches(courseID int64) bool {
	return containsID(t.Courses, courseID)
}

// AssignCourse appends a course id to the teacher's list.
func (t *Teacher) AssignCourse(courseID int64) {
	t.Courses = append(t.Courses, courseID)
}

// ReleaseCourse removes a course id from the teacher's list.
func (t *Teacher) ReleaseCourse(courseID int64) {
	t.Courses = removeID(t.Courses, courseID)
}

func (t Teacher) String() string {
	return fmt.Sprintf("Teacher{id=%d, name=%s %s, courses=%v}", t.TeacherID, t.FirstName, t.LastName, t.Courses)
}

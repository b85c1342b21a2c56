package models

// MaxCredits is the credit cap a student may carry across all enrolled courses.
const MaxCredits = 30

// Enroll records an enrollment on both the course roster and the student's
// course list. Every code path that registers a student goes through here so
// the two sides cannot drift apart.
func Enroll(student *Student, course *Course) {
	course.StudentsEnrolled = append(course.StudentsEnrolled, student.StudentID)
	student.EnrolledCourses = append(student.EnrolledCourses, course.CourseID)
}

// Withdraw removes an enrollment from both sides.
func Withdraw(student *Student, course *Course) {
	course.StudentsEnrolled = removeID(course.StudentsEnrolled, student.StudentID)
	student.EnrolledCourses = removeID(student.EnrolledCourses, course.CourseID)
}

func cloneIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

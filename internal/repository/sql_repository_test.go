package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration/internal/models"
)

func newSQLRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestStudentRepositoryCreateWritesEnrollments(t *testing.T) {
	db, mock := newSQLRepoMock(t)
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (student_id, first_name, last_name)")).
		WithArgs(int64(7), "Ana", "Pop").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_id FROM enrollments WHERE student_id = ? ORDER BY seq")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments (student_id, course_id, seq)")).
		WithArgs(int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), models.Student{StudentID: 7, FirstName: "Ana", LastName: "Pop", EnrolledCourses: []int64{3}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newSQLRepoMock(t)
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, first_name, last_name FROM students WHERE student_id = ?")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "first_name", "last_name"}))

	_, err := repo.FindByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateMissingRollsBack(t *testing.T) {
	db, mock := newSQLRepoMock(t)
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET first_name = ?, last_name = ? WHERE student_id = ?")).
		WithArgs("Ana", "Pop", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), models.Student{StudentID: 9, FirstName: "Ana", LastName: "Pop"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateDiffsRoster(t *testing.T) {
	db, mock := newSQLRepoMock(t)
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET name = ?, teacher_id = ?, max_enrollment = ?, credits = ? WHERE course_id = ?")).
		WithArgs("Baze de date", int64(1), 10, 20, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id FROM enrollments WHERE course_id = ? ORDER BY seq")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow(int64(2)).AddRow(int64(3)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE course_id = ? AND student_id = ?")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments (course_id, student_id, seq)")).
		WithArgs(int64(1), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	course := models.Course{CourseID: 1, Name: "Baze de date", TeacherID: 1, MaxEnrollment: 10, Credits: 20, StudentsEnrolled: []int64{3, 4}}
	require.NoError(t, repo.Update(context.Background(), course))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryDeleteCascades(t *testing.T) {
	db, mock := newSQLRepoMock(t)
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE course_id IN (SELECT course_id FROM courses WHERE teacher_id = ?)")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE teacher_id = ?")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teachers WHERE teacher_id = ?")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryDeleteRollsBackOnFailure(t *testing.T) {
	db, mock := newSQLRepoMock(t)
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE teacher_id = ?")).
		WithArgs(int64(2)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete teacher courses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

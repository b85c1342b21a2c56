package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration/internal/models"
)

// StudentRepository manages persistence for student records. A student's
// course list lives in the enrollments table.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts the student together with its enrollment rows.
func (r *StudentRepository) Create(ctx context.Context, student models.Student) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO students (student_id, first_name, last_name) VALUES (:student_id, :first_name, :last_name)`
	if _, err = tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	if err = studentSide.sync(ctx, tx, student.StudentID, student.EnrolledCourses); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// FindByID fetches a student and its enrolled course ids.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (models.Student, error) {
	var student models.Student
	query := r.db.Rebind(`SELECT student_id, first_name, last_name FROM students WHERE student_id = ?`)
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Student{}, fmt.Errorf("find student %d: %w", id, ErrRecordNotFound)
		}
		return models.Student{}, fmt.Errorf("find student %d: %w", id, err)
	}
	courses, err := studentSide.idsFor(ctx, r.db, id)
	if err != nil {
		return models.Student{}, err
	}
	student.EnrolledCourses = courses
	return student, nil
}

// List returns every student ordered by id.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, `SELECT student_id, first_name, last_name FROM students ORDER BY student_id`); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	links, err := studentSide.all(ctx, r.db)
	if err != nil {
		return nil, err
	}
	for i := range students {
		students[i].EnrolledCourses = append([]int64{}, links[students[i].StudentID]...)
	}
	return students, nil
}

// Update rewrites the student's names and enrollment rows in one transaction.
func (r *StudentRepository) Update(ctx context.Context, student models.Student) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name WHERE student_id = :student_id`
	result, err := tx.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if err = checkAffected(result, "student", student.StudentID); err != nil {
		return err
	}
	if err = studentSide.sync(ctx, tx, student.StudentID, student.EnrolledCourses); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update student: %w", err)
	}
	return nil
}

// Delete removes the student and its enrollment rows.
func (r *StudentRepository) Delete(ctx context.Context, id int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = studentSide.clear(ctx, tx, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM students WHERE student_id = ?`), id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete student: %w", err)
	}
	return nil
}

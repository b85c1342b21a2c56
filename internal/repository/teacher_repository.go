package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration/internal/models"
)

// TeacherRepository manages persistence for teachers. The course list of a
// teacher is derived from courses.teacher_id, so Create and Update only write
// the name columns.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// Create inserts a teacher row.
func (r *TeacherRepository) Create(ctx context.Context, teacher models.Teacher) error {
	const query = `INSERT INTO teachers (teacher_id, first_name, last_name) VALUES (:teacher_id, :first_name, :last_name)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// FindByID fetches a teacher with the ids of the courses it teaches, in the
// order the courses were created.
func (r *TeacherRepository) FindByID(ctx context.Context, id int64) (models.Teacher, error) {
	var teacher models.Teacher
	query := r.db.Rebind(`SELECT teacher_id, first_name, last_name FROM teachers WHERE teacher_id = ?`)
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Teacher{}, fmt.Errorf("find teacher %d: %w", id, ErrRecordNotFound)
		}
		return models.Teacher{}, fmt.Errorf("find teacher %d: %w", id, err)
	}
	courses := []int64{}
	coursesQuery := r.db.Rebind(`SELECT course_id FROM courses WHERE teacher_id = ? ORDER BY seq`)
	if err := r.db.SelectContext(ctx, &courses, coursesQuery, id); err != nil {
		return models.Teacher{}, fmt.Errorf("list courses of teacher %d: %w", id, err)
	}
	teacher.Courses = courses
	return teacher, nil
}

// List returns every teacher ordered by id.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	teachers := []models.Teacher{}
	if err := r.db.SelectContext(ctx, &teachers, `SELECT teacher_id, first_name, last_name FROM teachers ORDER BY teacher_id`); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	var owned []struct {
		TeacherID int64 `db:"teacher_id"`
		CourseID  int64 `db:"course_id"`
	}
	if err := r.db.SelectContext(ctx, &owned, `SELECT teacher_id, course_id FROM courses ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("list teacher courses: %w", err)
	}
	grouped := make(map[int64][]int64, len(teachers))
	for _, row := range owned {
		grouped[row.TeacherID] = append(grouped[row.TeacherID], row.CourseID)
	}
	for i := range teachers {
		teachers[i].Courses = append([]int64{}, grouped[teachers[i].TeacherID]...)
	}
	return teachers, nil
}

// Update rewrites the teacher's name columns.
func (r *TeacherRepository) Update(ctx context.Context, teacher models.Teacher) error {
	const query = `UPDATE teachers SET first_name = :first_name, last_name = :last_name WHERE teacher_id = :teacher_id`
	result, err := r.db.NamedExecContext(ctx, query, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return checkAffected(result, "teacher", teacher.TeacherID)
}

// Delete removes the teacher together with every course it teaches and the
// enrollments of those courses, in a single transaction.
func (r *TeacherRepository) Delete(ctx context.Context, id int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete teacher: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM enrollments WHERE course_id IN (SELECT course_id FROM courses WHERE teacher_id = ?)`), id); err != nil {
		return fmt.Errorf("delete teacher enrollments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM courses WHERE teacher_id = ?`), id); err != nil {
		return fmt.Errorf("delete teacher courses: %w", err)
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM teachers WHERE teacher_id = ?`), id); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete teacher: %w", err)
	}
	return nil
}

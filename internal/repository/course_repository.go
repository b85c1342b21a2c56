package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration/internal/models"
)

const courseColumns = `course_id, name, teacher_id, max_enrollment, credits`

// CourseRepository manages persistence for courses and their rosters.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts the course together with its roster rows.
func (r *CourseRepository) Create(ctx context.Context, course models.Course) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// seq keeps the creation order that a teacher's course list replays.
	const query = `INSERT INTO courses (` + courseColumns + `, seq) VALUES (:course_id, :name, :teacher_id, :max_enrollment, :credits, (SELECT COALESCE(MAX(seq), 0) + 1 FROM courses))`
	if _, err = tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	if err = courseSide.sync(ctx, tx, course.CourseID, course.StudentsEnrolled); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create course: %w", err)
	}
	return nil
}

// FindByID fetches a course and its roster.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (models.Course, error) {
	var course models.Course
	query := r.db.Rebind(`SELECT ` + courseColumns + ` FROM courses WHERE course_id = ?`)
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Course{}, fmt.Errorf("find course %d: %w", id, ErrRecordNotFound)
		}
		return models.Course{}, fmt.Errorf("find course %d: %w", id, err)
	}
	students, err := courseSide.idsFor(ctx, r.db, id)
	if err != nil {
		return models.Course{}, err
	}
	course.StudentsEnrolled = students
	return course, nil
}

// List returns every course ordered by id.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	courses := []models.Course{}
	if err := r.db.SelectContext(ctx, &courses, `SELECT `+courseColumns+` FROM courses ORDER BY course_id`); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	links, err := courseSide.all(ctx, r.db)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i].StudentsEnrolled = append([]int64{}, links[courses[i].CourseID]...)
	}
	return courses, nil
}

// Update rewrites the course row and its roster in one transaction.
func (r *CourseRepository) Update(ctx context.Context, course models.Course) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update course: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE courses SET name = :name, teacher_id = :teacher_id, max_enrollment = :max_enrollment, credits = :credits WHERE course_id = :course_id`
	result, err := tx.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if err = checkAffected(result, "course", course.CourseID); err != nil {
		return err
	}
	if err = courseSide.sync(ctx, tx, course.CourseID, course.StudentsEnrolled); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update course: %w", err)
	}
	return nil
}

// Delete removes the course and its roster rows.
func (r *CourseRepository) Delete(ctx context.Context, id int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete course: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = courseSide.clear(ctx, tx, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM courses WHERE course_id = ?`), id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete course: %w", err)
	}
	return nil
}

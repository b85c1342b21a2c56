package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements bootstrap the relational backends. The DDL sticks to the
// subset shared by PostgreSQL and SQLite.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
    teacher_id BIGINT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS students (
    student_id BIGINT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS courses (
    course_id BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    teacher_id BIGINT NOT NULL REFERENCES teachers (teacher_id),
    max_enrollment INTEGER NOT NULL,
    credits INTEGER NOT NULL,
    seq BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
    course_id BIGINT NOT NULL REFERENCES courses (course_id),
    student_id BIGINT NOT NULL REFERENCES students (student_id),
    seq BIGINT NOT NULL,
    PRIMARY KEY (course_id, student_id)
)`,
}

// EnsureSchema creates the registration tables when they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

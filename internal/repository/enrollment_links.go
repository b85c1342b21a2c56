package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// enrollmentSide names the column that owns an association list: a student
// owns its course ids, a course owns its student ids. Rows in enrollments
// carry a global seq so both lists replay in registration order.
type enrollmentSide struct {
	owner string
	other string
}

var (
	studentSide = enrollmentSide{owner: "student_id", other: "course_id"}
	courseSide  = enrollmentSide{owner: "course_id", other: "student_id"}
)

type enrollmentLink struct {
	Owner int64 `db:"owner"`
	Other int64 `db:"other"`
}

func (s enrollmentSide) idsFor(ctx context.Context, q sqlx.ExtContext, ownerID int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE %s = ? ORDER BY seq`, s.other, s.owner)
	ids := []int64{}
	if err := sqlx.SelectContext(ctx, q, &ids, q.Rebind(query), ownerID); err != nil {
		return nil, fmt.Errorf("list enrollments by %s: %w", s.owner, err)
	}
	return ids, nil
}

func (s enrollmentSide) all(ctx context.Context, q sqlx.ExtContext) (map[int64][]int64, error) {
	query := fmt.Sprintf(`SELECT %s AS owner, %s AS other FROM enrollments ORDER BY seq`, s.owner, s.other)
	var links []enrollmentLink
	if err := sqlx.SelectContext(ctx, q, &links, query); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	grouped := make(map[int64][]int64)
	for _, link := range links {
		grouped[link.Owner] = append(grouped[link.Owner], link.Other)
	}
	return grouped, nil
}

// sync rewrites the owner's rows so they match want: rows no longer listed are
// deleted, new ids are appended after every existing row.
func (s enrollmentSide) sync(ctx context.Context, tx *sqlx.Tx, ownerID int64, want []int64) error {
	current, err := s.idsFor(ctx, tx, ownerID)
	if err != nil {
		return err
	}

	deleteQuery := tx.Rebind(fmt.Sprintf(`DELETE FROM enrollments WHERE %s = ? AND %s = ?`, s.owner, s.other))
	for _, id := range current {
		if containsInt64(want, id) {
			continue
		}
		if _, err := tx.ExecContext(ctx, deleteQuery, ownerID, id); err != nil {
			return fmt.Errorf("delete enrollment: %w", err)
		}
	}

	insertQuery := tx.Rebind(fmt.Sprintf(`INSERT INTO enrollments (%s, %s, seq) VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM enrollments))`, s.owner, s.other))
	for _, id := range want {
		if containsInt64(current, id) {
			continue
		}
		if _, err := tx.ExecContext(ctx, insertQuery, ownerID, id); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
	}
	return nil
}

func (s enrollmentSide) clear(ctx context.Context, tx *sqlx.Tx, ownerID int64) error {
	query := tx.Rebind(fmt.Sprintf(`DELETE FROM enrollments WHERE %s = ?`, s.owner))
	if _, err := tx.ExecContext(ctx, query, ownerID); err != nil {
		return fmt.Errorf("clear enrollments by %s: %w", s.owner, err)
	}
	return nil
}

func containsInt64(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func checkAffected(result interface{ RowsAffected() (int64, error) }, entity string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %d: %w", entity, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update %s %d: %w", entity, id, ErrRecordNotFound)
	}
	return nil
}

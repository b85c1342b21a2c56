package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration/internal/models"
)

func TestMemoryRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository[models.Student]("student")

	require.NoError(t, repo.Create(ctx, models.Student{StudentID: 2, FirstName: "Ana"}))
	require.NoError(t, repo.Create(ctx, models.Student{StudentID: 1, FirstName: "Dan"}))

	found, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Dan", found.FirstName)

	_, err = repo.FindByID(ctx, 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	found.FirstName = "Daniel"
	require.NoError(t, repo.Update(ctx, found))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].StudentID, "insertion order is kept")
	assert.Equal(t, "Daniel", all[1].FirstName)

	err = repo.Update(ctx, models.Student{StudentID: 42})
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, repo.Delete(ctx, 2))
	require.NoError(t, repo.Delete(ctx, 2), "deleting an absent id is a no-op")
	assert.Equal(t, 1, repo.Len())
}

func TestMemoryRepositoryCreateOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository[models.Teacher]("teacher")

	require.NoError(t, repo.Create(ctx, models.Teacher{TeacherID: 1, FirstName: "A"}))
	require.NoError(t, repo.Create(ctx, models.Teacher{TeacherID: 2, FirstName: "B"}))
	require.NoError(t, repo.Create(ctx, models.Teacher{TeacherID: 1, FirstName: "C"}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "C", all[0].FirstName)
}

func TestMemoryRepositoryDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository[models.Course]("course")

	course := models.Course{CourseID: 1, StudentsEnrolled: []int64{1}}
	require.NoError(t, repo.Create(ctx, course))
	course.StudentsEnrolled[0] = 99

	stored, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, stored.StudentsEnrolled)

	stored.StudentsEnrolled = append(stored.StudentsEnrolled, 2)
	again, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, again.StudentsEnrolled)
}

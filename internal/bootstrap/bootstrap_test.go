package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/pkg/config"
)

func testConfig(t *testing.T, backend, cacheDriver string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env: config.EnvDevelopment,
		Storage: config.StorageConfig{
			Backend:      backend,
			DataDir:      dir,
			StudentsFile: "student.json",
			TeachersFile: "teacher.json",
			CoursesFile:  "course.json",
			SQLitePath:   filepath.Join(dir, "registration.db"),
		},
		Cache: config.CacheConfig{Driver: cacheDriver, TTL: time.Minute},
		Auth:  config.AuthConfig{Secret: "secret", Expiration: time.Hour, AdminUsername: "admin"},
	}
}

func TestBuildJSONBackendPersistsAcrossRuns(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendJSON, config.CacheMemory)

	app, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, app.Cache)
	assert.True(t, app.Cache.Enabled())
	assert.Empty(t, app.Checks)

	app.Registration.LoadAll(ctx)
	_, err = app.Registration.AddTeacher(ctx, models.Teacher{FirstName: "Radu", LastName: "Dragan", TeacherID: 1})
	require.NoError(t, err)
	_, err = app.Registration.AddCourse(ctx, models.Course{Name: "Analiza", TeacherID: 1, MaxEnrollment: 3, Credits: 5, CourseID: 3})
	require.NoError(t, err)
	app.Registration.SaveAll(ctx)
	require.NoError(t, app.Close())

	raw, err := os.ReadFile(filepath.Join(cfg.Storage.DataDir, "teacher.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"courses": [`)

	reopened, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()
	reopened.Registration.LoadAll(ctx)

	teacher, err := reopened.Registration.GetTeacher(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, teacher.Courses)
}

func TestBuildSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendSQLite, config.CacheNone)

	app, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Cache)
	require.Len(t, app.Checks, 1)
	assert.Equal(t, "database", app.Checks[0].Name)
	assert.NoError(t, app.Checks[0].Check(ctx))

	_, err = app.Registration.AddTeacher(ctx, models.Teacher{FirstName: "Florin", LastName: "D", TeacherID: 2})
	require.NoError(t, err)
	_, err = app.Registration.AddStudent(ctx, models.Student{FirstName: "Alin", LastName: "Goga", StudentID: 1})
	require.NoError(t, err)
	_, err = app.Registration.AddCourse(ctx, models.Course{Name: "Baze de date", TeacherID: 2, MaxEnrollment: 10, Credits: 5, CourseID: 1})
	require.NoError(t, err)
	require.NoError(t, app.Registration.Register(ctx, 1, 1))

	credits, err := app.Registration.StudentCredits(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, credits)
}

func TestBuildRejectsUnknownDrivers(t *testing.T) {
	ctx := context.Background()

	_, err := Build(ctx, testConfig(t, "mongo", config.CacheNone), nil)
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = Build(ctx, testConfig(t, config.BackendJSON, "memcached"), nil)
	assert.ErrorContains(t, err, "unknown cache driver")
}

func TestAuthServiceUsesConfiguredSecret(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t, config.BackendJSON, config.CacheNone), nil)
	require.NoError(t, err)
	defer app.Close()

	token, err := app.Auth.IssueToken(models.TokenRequest{Subject: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	claims, err := app.Auth.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
}

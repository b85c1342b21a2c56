package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "registrar",
		Password: "p@ss word",
		Name:     "course_registration",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://registrar:p%40ss%20word@db:5433/course_registration?connect_timeout=5&sslmode=disable", dsn)
}

func TestNewSQLiteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registration.db")

	db, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE probe (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestNewSQLiteInMemory(t *testing.T) {
	db, err := NewSQLite(MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE probe (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO probe (id) VALUES (1)`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM probe`))
	assert.Equal(t, 1, count)
}

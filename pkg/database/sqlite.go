package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

// NewSQLite opens the SQLite database at path, creating the parent directory
// when needed. SQLite serialises writers, so the pool is capped at a single
// connection; this also keeps ":memory:" databases alive across queries.
func NewSQLite(path string) (*sqlx.DB, error) {
	dsn := MemoryDSN
	if path != "" && path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

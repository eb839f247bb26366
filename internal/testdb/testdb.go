// Package testdb provides helpers for tests that need a real PostgreSQL
// database. Tests using it skip automatically when DATABASE_URL is not
// set, so the default `go test ./...` run stays database-free.
package testdb

import (
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// URL returns the test database URL, or "" when integration tests
// should be skipped.
func URL() string {
	return os.Getenv("DATABASE_URL")
}

// Get opens a connection to the test database and runs migrations,
// skipping the test when DATABASE_URL is not set. The connection is
// closed when the test finishes.
func Get(t *testing.T) *sql.DB {
	t.Helper()

	url := URL()
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping database test")
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	require.NoError(t, db.Ping(), "failed to ping test database")

	migrate(t, db)
	return db
}

// migrate brings the schema up to date with goose.
func migrate(t *testing.T, db *sql.DB) {
	t.Helper()

	goose.SetLogger(goose.NopLogger())
	goose.SetTableName("schema_migrations")

	require.NoError(t, goose.SetDialect("postgres"), "failed to set goose dialect")
	require.NoError(t, goose.Up(db, migrationsDir(t)), "failed to run migrations")
}

// migrationsDir locates the migrations directory relative to this file,
// so tests work from any package directory.
func migrationsDir(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok, "failed to locate caller for migrations path")

	dir := filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations")
	require.DirExists(t, dir, "migrations directory not found: %s", dir)
	return dir
}

// WithTx executes fn inside a transaction that is always rolled back,
// keeping database tests isolated from each other.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Errorf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

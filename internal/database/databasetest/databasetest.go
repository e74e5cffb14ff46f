// Package databasetest opens throwaway SQLite databases with the production schema.
package databasetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digkill/guincho-facil/internal/database"
)

// New returns a migrated SQLite database that is closed when the test ends.
func New(tb testing.TB) *sql.DB {
	tb.Helper()

	db, err := database.OpenSQLite(filepath.Join(tb.TempDir(), "guincho.db"))
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = db.Close() })

	require.NoError(tb, database.Migrate(context.Background(), db, database.SQLite))
	return db
}

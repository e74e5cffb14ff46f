package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIgnore(t *testing.T) {
	assert.Equal(t, "INSERT IGNORE", MySQL.InsertIgnore())
	assert.Equal(t, "INSERT OR IGNORE", SQLite.InsertIgnore())
}

func TestForUpdate(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", MySQL.ForUpdate())
	assert.Empty(t, SQLite.ForUpdate())
}

func TestMigrateSQLiteIsRepeatable(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, SQLite))
	require.NoError(t, Migrate(ctx, db, SQLite))

	for _, table := range []string{"providers", "provider_subscriptions", "provider_customizations", "payments"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestSubscriptionCheckConstraints(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "check.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, SQLite))

	_, err = db.ExecContext(ctx, `INSERT INTO providers (id, nome, whatsapp, slug, created_at) VALUES ('p1', 'Joao', '5511999990000', 'joao', 0)`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO provider_subscriptions (provider_id, trial_corridas_restantes, created_at, updated_at) VALUES ('p1', -1, 0, 0)`)
	assert.Error(t, err, "negative trial allowance must be rejected by the store")
}

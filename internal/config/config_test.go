package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV_PATH", "")
	t.Setenv("DATABASE_DSN", "file:test.db")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("ADMIN_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "#6366f1", cfg.DefaultPrimaryColor)
	assert.Equal(t, "#8b5cf6", cfg.DefaultSecondary)
	assert.Equal(t, 60*time.Second, cfg.TenantCacheTTL)
	assert.Contains(t, cfg.MainDomains, "localhost")
	assert.False(t, cfg.BillingEnabled())
	assert.False(t, cfg.StorageEnabled())
}

func TestLoadMissingRequired(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV_PATH", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DSN")
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")
}

func TestLoadStripeRequiresWebhookSecret(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV_PATH", "")
	t.Setenv("DATABASE_DSN", "user:pass@tcp(localhost:3306)/guincho")
	t.Setenv("ADMIN_PASSWORD", "secret")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
}

func TestLoadEnvFileAndLists(t *testing.T) {
	chdirTemp(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.env")
	content := "DATABASE_DSN=file:x.db\nDATABASE_DRIVER=sqlite\nADMIN_PASSWORD=pw\nMAIN_DOMAINS= Example.com , ,app.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_ENV_PATH", path)
	// godotenv.Load does not override variables that are already set.
	for _, key := range []string{"DATABASE_DSN", "DATABASE_DRIVER", "ADMIN_PASSWORD", "MAIN_DOMAINS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pw", cfg.AdminPassword)
	assert.Equal(t, []string{"example.com", "app.example.com"}, cfg.MainDomains)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV_PATH", "")
	t.Setenv("DATABASE_DSN", "x")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("DATABASE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DRIVER")
}

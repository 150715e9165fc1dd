package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/sharegate/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndLegacyEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("MAIN_CHAT_ID", "-100200300")
	t.Setenv("PRIVATE_GROUP_LINK", "https://t.me/+private")

	cfg, usedPath, err := config.Load([]string{t.TempDir()})
	require.NoError(t, err)

	assert.Empty(t, usedPath)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(-100200300), cfg.Telegram.ChatID)
	assert.Equal(t, "https://t.me/+private", cfg.Telegram.PrivateLink)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Empty(t, cfg.Server.Secret)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "invites.db", cfg.Database.Path)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Telegram.MemberUpdates)
}

func TestLoadFileThenPrefixedEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
[telegram]
token = "file-token"
chat_id = -42
private_link = "https://t.me/+file"

[server]
port = 8080
secret = "from-file"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(content), 0o600))

	t.Setenv("WEBHOOK_SECRET", "legacy-secret")
	t.Setenv("SHAREGATE_SERVER__SECRET", "prefixed-secret")
	t.Setenv("SHAREGATE_DATABASE__PATH", "/data/invites.db")

	cfg, usedPath, err := config.Load([]string{filepath.Join(dir, "missing"), dir})
	require.NoError(t, err)

	assert.Equal(t, dir, usedPath)
	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, int64(-42), cfg.Telegram.ChatID)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "prefixed-secret", cfg.Server.Secret)
	assert.Equal(t, "/data/invites.db", cfg.Database.Path)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("MAIN_CHAT_ID", "")
	t.Setenv("PRIVATE_GROUP_LINK", "")

	_, _, err := config.Load([]string{t.TempDir()})
	require.ErrorIs(t, err, config.ErrMissingRequired)
	assert.Contains(t, err.Error(), "telegram.token")
	assert.Contains(t, err.Error(), "telegram.chat_id")
	assert.Contains(t, err.Error(), "telegram.private_link")
}

func TestValidateDriver(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Telegram: config.Telegram{Token: "t", ChatID: 1, PrivateLink: "l"},
		Database: config.Database{Driver: "mysql"},
	}
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidDriver)

	cfg.Database.Driver = config.DriverPostgres
	require.ErrorIs(t, cfg.Validate(), config.ErrMissingRequired)

	cfg.Database.DSN = "postgres://localhost/sharegate"
	require.NoError(t, cfg.Validate())
}

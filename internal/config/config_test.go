package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func clearBotEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BOT_TOKEN", "BOT_USERNAME", "CHANNEL_ID", "DATABASE_URL", "SQLITE_PATH", "REDIS_URL",
		"SESSION_TTL", "MEMBERSHIP_TIMEOUT", "POLL_TIMEOUT", "BOT_WORKERS", "BOT_DEBUG",
		"PORT", "ADMIN_ADDR", "ADMIN_USER", "ADMIN_PASSWORD", "ADMIN_PASSWORD_HASH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadBotFromEnvDefaults(t *testing.T) {
	clearBotEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("BOT_USERNAME", "@growbot")

	cfg, err := LoadBotFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "growbot", cfg.BotUsername)
	assert.Equal(t, "@ilimedu", cfg.ChannelID)
	assert.Equal(t, "refgrow.db", cfg.SQLitePath)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.MembershipTimeout)
	assert.Equal(t, 60*time.Second, cfg.PollTimeout)
	assert.Equal(t, 16, cfg.Workers)
	assert.False(t, cfg.Debug)
	assert.Equal(t, ":8080", cfg.Admin.Addr)
	assert.Equal(t, "admin", cfg.Admin.User)
	assert.Nil(t, cfg.Admin.PasswordHash)
}

func TestLoadBotFromEnvOverrides(t *testing.T) {
	clearBotEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("BOT_USERNAME", "growbot")
	t.Setenv("PORT", "9090")
	t.Setenv("BOT_WORKERS", "4")
	t.Setenv("MEMBERSHIP_TIMEOUT", "2s")
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("ADMIN_PASSWORD", "s3cret")

	cfg, err := LoadBotFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Admin.Addr)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.MembershipTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	require.NotEmpty(t, cfg.Admin.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword(cfg.Admin.PasswordHash, []byte("s3cret")))
}

func TestLoadBotFromEnvRequired(t *testing.T) {
	clearBotEnv(t)
	_, err := LoadBotFromEnv()
	require.ErrorContains(t, err, "BOT_TOKEN")

	t.Setenv("BOT_TOKEN", "123:abc")
	_, err = LoadBotFromEnv()
	require.ErrorContains(t, err, "BOT_USERNAME")

	t.Setenv("BOT_USERNAME", "growbot")
	t.Setenv("ADMIN_PASSWORD_HASH", "plaintext")
	_, err = LoadBotFromEnv()
	require.ErrorContains(t, err, "ADMIN_PASSWORD_HASH")
}

func TestLoadCLIFromEnv(t *testing.T) {
	t.Setenv("REFGROW_API_BASE_URL", "https://admin.example.com/")
	t.Setenv("BOT_USERNAME", "@growbot")
	cfg := LoadCLIFromEnv()
	assert.Equal(t, "https://admin.example.com", cfg.APIBaseURL)
	assert.Equal(t, "growbot", cfg.BotUsername)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.env")
	require.NoError(t, os.WriteFile(path, []byte("REFGROW_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("REFGROW_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("REFGROW_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("REFGROW_TEST_DOTENV"))

	require.Error(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[roll]
cookie = "session=abc"

[feed]
heartbeat_interval = "5s"

[notify]
deposit_webhook_url = "https://discord.test/dep"
withdraw_webhook_url = "https://discord.test/wd"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "session=abc", cfg.Roll.Cookie)
	assert.Equal(t, 5*time.Second, cfg.Feed.HeartbeatInterval.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, "https://api.csgoroll.com/graphql", cfg.Roll.APIURL)
	assert.Equal(t, 5, cfg.Feed.MaxReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Dispatch.MessageDelay.Duration)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ROLLWATCH_ROLL_COOKIE", "session=env")
	t.Setenv("ROLLWATCH_FEED_MAX_RECONNECT_ATTEMPTS", "3")
	t.Setenv("ROLLWATCH_DISPATCH_MESSAGE_DELAY", "250ms")
	t.Setenv("ROLLWATCH_SERVER_ENABLED", "false")

	path := writeConfig(t, `
[roll]
cookie = "session=file"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "session=env", cfg.Roll.Cookie, "environment wins over the file")
	assert.Equal(t, 3, cfg.Feed.MaxReconnectAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatch.MessageDelay.Duration)
	assert.False(t, cfg.Server.Enabled)
}

func TestLoadLegacyEnvAliases(t *testing.T) {
	t.Setenv("COOKIE", "session=legacy")
	t.Setenv("DISCORD_DEPOSIT_WEBHOOK_URL", "https://discord.test/dep")
	t.Setenv("DISCORD_WITHDRAW_WEBHOOK_URL", "https://discord.test/wd")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "session=legacy", cfg.Roll.Cookie)
	assert.Equal(t, "https://discord.test/dep", cfg.Notify.DepositWebhookURL)
	assert.Equal(t, "https://discord.test/wd", cfg.Notify.WithdrawWebhookURL)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Feed.MaxReconnectAttempts = 0
	cfg.Server.Port = 0
	// cookie and webhook URLs left empty

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "log_level")
	assert.Contains(t, msg, "cookie")
	assert.Contains(t, msg, "deposit_webhook_url")
	assert.Contains(t, msg, "withdraw_webhook_url")
	assert.Contains(t, msg, "max_reconnect_attempts")
	assert.Contains(t, msg, "port")
}

func TestValidateHappyPath(t *testing.T) {
	cfg := Defaults()
	cfg.Roll.Cookie = "session=abc"
	cfg.Notify.DepositWebhookURL = "https://discord.test/dep"
	cfg.Notify.WithdrawWebhookURL = "https://discord.test/wd"

	assert.NoError(t, cfg.Validate())
}

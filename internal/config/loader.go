package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ROLLWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ROLLWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject the session cookie and webhook URLs at
// deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Compatibility aliases apply first so the namespaced variables win when
	// both are set.
	setStr(&cfg.Roll.Cookie, "COOKIE")
	setStr(&cfg.Notify.DepositWebhookURL, "DISCORD_DEPOSIT_WEBHOOK_URL")
	setStr(&cfg.Notify.WithdrawWebhookURL, "DISCORD_WITHDRAW_WEBHOOK_URL")
	setInt(&cfg.Server.Port, "PORT") // hosting platforms inject PORT

	// Roll
	setStr(&cfg.Roll.Cookie, "ROLLWATCH_ROLL_COOKIE")
	setStr(&cfg.Roll.APIURL, "ROLLWATCH_ROLL_API_URL")
	setStr(&cfg.Roll.WsURL, "ROLLWATCH_ROLL_WS_URL")
	setStr(&cfg.Roll.UserAgent, "ROLLWATCH_ROLL_USER_AGENT")

	// Feed
	setDuration(&cfg.Feed.HeartbeatInterval, "ROLLWATCH_FEED_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Feed.ReconnectDelay, "ROLLWATCH_FEED_RECONNECT_DELAY")
	setInt(&cfg.Feed.MaxReconnectAttempts, "ROLLWATCH_FEED_MAX_RECONNECT_ATTEMPTS")

	// Notify
	setStr(&cfg.Notify.DepositWebhookURL, "ROLLWATCH_NOTIFY_DEPOSIT_WEBHOOK_URL")
	setStr(&cfg.Notify.WithdrawWebhookURL, "ROLLWATCH_NOTIFY_WITHDRAW_WEBHOOK_URL")
	setStr(&cfg.Notify.Timezone, "ROLLWATCH_NOTIFY_TIMEZONE")

	// Dispatch
	setDuration(&cfg.Dispatch.MessageDelay, "ROLLWATCH_DISPATCH_MESSAGE_DELAY")
	setDuration(&cfg.Dispatch.ThrottleFallback, "ROLLWATCH_DISPATCH_THROTTLE_FALLBACK")

	// Server
	setBool(&cfg.Server.Enabled, "ROLLWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ROLLWATCH_SERVER_PORT")

	setStr(&cfg.LogLevel, "ROLLWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

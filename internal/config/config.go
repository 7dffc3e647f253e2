// Package config defines the top-level configuration for the trade watcher
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ROLLWATCH_* environment variables.
type Config struct {
	Roll     RollConfig     `toml:"roll"`
	Feed     FeedConfig     `toml:"feed"`
	Notify   NotifyConfig   `toml:"notify"`
	Dispatch DispatchConfig `toml:"dispatch"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// RollConfig holds the CSGORoll API endpoints and the session credential.
type RollConfig struct {
	// Cookie is the authenticated session cookie. Usually injected via the
	// ROLLWATCH_ROLL_COOKIE environment variable or a .env file rather than
	// written into the TOML file.
	Cookie    string `toml:"cookie"`
	APIURL    string `toml:"api_url"`
	WsURL     string `toml:"ws_url"`
	UserAgent string `toml:"user_agent"`
}

// FeedConfig holds the streaming-connection lifecycle parameters.
type FeedConfig struct {
	// HeartbeatInterval is the cadence of transport-level pings. A pong not
	// observed before the next tick tears the connection down.
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	// ReconnectDelay is the fixed wait before each reconnection attempt.
	ReconnectDelay duration `toml:"reconnect_delay"`
	// MaxReconnectAttempts bounds consecutive failed connection attempts;
	// once reached the feed is reported permanently down.
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`
}

// NotifyConfig holds the Discord webhook destinations, one per trade
// direction.
type NotifyConfig struct {
	DepositWebhookURL  string `toml:"deposit_webhook_url"`
	WithdrawWebhookURL string `toml:"withdraw_webhook_url"`
	Timezone           string `toml:"timezone"`
}

// DispatchConfig holds the outbound-queue pacing parameters.
type DispatchConfig struct {
	// MessageDelay is the pause after each delivered (or dropped) job before
	// the next queued job is considered.
	MessageDelay duration `toml:"message_delay"`
	// ThrottleFallback is the wait applied to a 429 response that carries no
	// usable retry delay.
	ThrottleFallback duration `toml:"throttle_fallback"`
}

// ServerConfig holds the liveness HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "500ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "500ms".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Roll: RollConfig{
			APIURL:    "https://api.csgoroll.com/graphql",
			WsURL:     "wss://api.csgoroll.com/graphql",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
		},
		Feed: FeedConfig{
			HeartbeatInterval:    duration{15 * time.Second},
			ReconnectDelay:       duration{1 * time.Second},
			MaxReconnectAttempts: 5,
		},
		Notify: NotifyConfig{
			Timezone: "America/Sao_Paulo",
		},
		Dispatch: DispatchConfig{
			MessageDelay:     duration{1 * time.Second},
			ThrottleFallback: duration{2 * time.Second},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Roll
	if strings.TrimSpace(c.Roll.Cookie) == "" {
		errs = append(errs, "roll: cookie must be set (ROLLWATCH_ROLL_COOKIE or roll.cookie)")
	}
	if c.Roll.APIURL == "" {
		errs = append(errs, "roll: api_url must not be empty")
	}
	if c.Roll.WsURL == "" {
		errs = append(errs, "roll: ws_url must not be empty")
	}

	// Feed
	if c.Feed.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "feed: heartbeat_interval must be > 0")
	}
	if c.Feed.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "feed: reconnect_delay must be > 0")
	}
	if c.Feed.MaxReconnectAttempts < 1 {
		errs = append(errs, "feed: max_reconnect_attempts must be >= 1")
	}

	// Notify: both directions need a destination.
	if c.Notify.DepositWebhookURL == "" {
		errs = append(errs, "notify: deposit_webhook_url must not be empty")
	}
	if c.Notify.WithdrawWebhookURL == "" {
		errs = append(errs, "notify: withdraw_webhook_url must not be empty")
	}

	// Dispatch
	if c.Dispatch.MessageDelay.Duration < 0 {
		errs = append(errs, "dispatch: message_delay must be >= 0")
	}
	if c.Dispatch.ThrottleFallback.Duration <= 0 {
		errs = append(errs, "dispatch: throttle_fallback must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

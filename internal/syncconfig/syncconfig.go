// Package syncconfig reads and writes the global feedsync config and
// credentials. Every knob resolves env var > config.json > default.
package syncconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	fssync "github.com/marcus/feedsync/internal/sync"
)

// RetryConfig holds backoff settings for failed batch rounds.
type RetryConfig struct {
	MaxAttempts *int    `json:"max_attempts,omitempty"` // nil = default 5
	BaseDelay   string  `json:"base_delay,omitempty"`   // default "2s"
	Multiplier  float64 `json:"multiplier,omitempty"`   // default 2
	MaxDelay    string  `json:"max_delay,omitempty"`    // default "1m"
}

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL            string      `json:"url"`
	Auto           *bool       `json:"auto,omitempty"`            // nil = default true
	Debounce       string      `json:"debounce,omitempty"`        // default "3s"
	RequestTimeout string      `json:"request_timeout,omitempty"` // default "10s"
	Interval       string      `json:"interval,omitempty"`        // watch view periodic sync, default "1m"
	FlushOnExit    *bool       `json:"flush_on_exit,omitempty"`   // nil = default true
	FlushTimeout   string      `json:"flush_timeout,omitempty"`   // default "5s"
	Retry          RetryConfig `json:"retry"`
}

// Config is the global config stored at <config dir>/config.json.
type Config struct {
	DataDir string     `json:"data_dir,omitempty"`
	Sync    SyncConfig `json:"sync"`
}

// AuthCredentials stores the bearer token and actor at <config dir>/auth.json.
type AuthCredentials struct {
	Token     string `json:"token"`
	ActorID   string `json:"actor_id"`
	ServerURL string `json:"server_url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns $FEEDSYNC_HOME or ~/.config/feedsync, creating it if necessary.
func ConfigDir() (string, error) {
	dir := os.Getenv("FEEDSYNC_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "feedsync")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadConfig reads the global config.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes the global config.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads credentials, returning nil when logged out.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse auth.json: %w", err)
	}
	return &creds, nil
}

// SaveAuth writes credentials (0600 perms).
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes auth.json.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetDataDir returns the directory holding the local database.
// Priority: FEEDSYNC_DATA_DIR env > config.json data_dir > config dir.
func GetDataDir() (string, error) {
	if v := os.Getenv("FEEDSYNC_DATA_DIR"); v != "" {
		return v, nil
	}
	if cfg, err := LoadConfig(); err == nil && cfg.DataDir != "" {
		return cfg.DataDir, nil
	}
	return ConfigDir()
}

// GetServerURL returns the API base URL.
// Priority: FEEDSYNC_URL env > config.json > auth.json > default.
func GetServerURL() string {
	if v := os.Getenv("FEEDSYNC_URL"); v != "" {
		return v
	}
	if cfg, err := LoadConfig(); err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	if creds, err := LoadAuth(); err == nil && creds != nil && creds.ServerURL != "" {
		return creds.ServerURL
	}
	return defaultServerURL
}

// GetToken returns the bearer token.
// Priority: FEEDSYNC_TOKEN env > auth.json.
func GetToken() string {
	if v := os.Getenv("FEEDSYNC_TOKEN"); v != "" {
		return v
	}
	if creds, err := LoadAuth(); err == nil && creds != nil {
		return creds.Token
	}
	return ""
}

// GetActorID returns the current actor.
// Priority: FEEDSYNC_ACTOR env > auth.json.
func GetActorID() string {
	if v := os.Getenv("FEEDSYNC_ACTOR"); v != "" {
		return v
	}
	if creds, err := LoadAuth(); err == nil && creds != nil {
		return creds.ActorID
	}
	return ""
}

// IsAuthenticated returns true if both a token and an actor are available.
func IsAuthenticated() bool {
	return GetToken() != "" && GetActorID() != ""
}

// GetAutoSyncEnabled returns whether mutating commands ship the queue on exit.
// Priority: FEEDSYNC_AUTO env > config.json sync.auto > true
func GetAutoSyncEnabled() bool {
	return boolSetting("FEEDSYNC_AUTO", func(c *Config) *bool { return c.Sync.Auto }, true)
}

// GetFlushOnExit returns whether long-lived views flush when they close.
// Priority: FEEDSYNC_FLUSH_ON_EXIT env > config.json sync.flush_on_exit > true
func GetFlushOnExit() bool {
	return boolSetting("FEEDSYNC_FLUSH_ON_EXIT", func(c *Config) *bool { return c.Sync.FlushOnExit }, true)
}

// GetDebounce returns the quiet period before a batch is sent.
// Priority: FEEDSYNC_DEBOUNCE env > config.json sync.debounce > 3s
func GetDebounce() time.Duration {
	return durationSetting("FEEDSYNC_DEBOUNCE", func(c *Config) string { return c.Sync.Debounce }, 3*time.Second)
}

// GetRequestTimeout bounds a single batch request.
// Priority: FEEDSYNC_REQUEST_TIMEOUT env > config.json sync.request_timeout > 10s
func GetRequestTimeout() time.Duration {
	return durationSetting("FEEDSYNC_REQUEST_TIMEOUT", func(c *Config) string { return c.Sync.RequestTimeout }, 10*time.Second)
}

// GetSyncInterval returns the periodic sync interval of the watch view.
// Priority: FEEDSYNC_INTERVAL env > config.json sync.interval > 1m
func GetSyncInterval() time.Duration {
	return durationSetting("FEEDSYNC_INTERVAL", func(c *Config) string { return c.Sync.Interval }, time.Minute)
}

// GetFlushTimeout bounds the flush performed when a process exits.
// Priority: FEEDSYNC_FLUSH_TIMEOUT env > config.json sync.flush_timeout > 5s
func GetFlushTimeout() time.Duration {
	return durationSetting("FEEDSYNC_FLUSH_TIMEOUT", func(c *Config) string { return c.Sync.FlushTimeout }, 5*time.Second)
}

// GetRetryPolicy returns the retry policy for failed rounds.
// FEEDSYNC_RETRY_MAX and FEEDSYNC_RETRY_BASE override the config file.
func GetRetryPolicy() fssync.RetryPolicy {
	p := fssync.DefaultRetryPolicy()
	cfg, err := LoadConfig()
	if err != nil {
		cfg = &Config{}
	}
	r := cfg.Sync.Retry

	if r.MaxAttempts != nil && *r.MaxAttempts >= 0 {
		p.MaxAttempts = *r.MaxAttempts
	}
	if v := os.Getenv("FEEDSYNC_RETRY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.MaxAttempts = n
		}
	}
	if d, err := time.ParseDuration(r.BaseDelay); err == nil && d > 0 {
		p.BaseDelay = d
	}
	if v := os.Getenv("FEEDSYNC_RETRY_BASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			p.BaseDelay = d
		}
	}
	if r.Multiplier >= 1 {
		p.Multiplier = r.Multiplier
	}
	if d, err := time.ParseDuration(r.MaxDelay); err == nil && d > 0 {
		p.MaxDelay = d
	}
	return p
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	switch strings.ToLower(os.Getenv(envKey)) {
	case "1", "true":
		b := true
		return &b
	case "0", "false":
		b := false
		return &b
	}
	return nil
}

func boolSetting(envKey string, field func(*Config) *bool, def bool) bool {
	if v := parseBoolEnv(envKey); v != nil {
		return *v
	}
	if cfg, err := LoadConfig(); err == nil {
		if v := field(cfg); v != nil {
			return *v
		}
	}
	return def
}

func durationSetting(envKey string, field func(*Config) string, def time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	if cfg, err := LoadConfig(); err == nil && field(cfg) != "" {
		if d, err := time.ParseDuration(field(cfg)); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

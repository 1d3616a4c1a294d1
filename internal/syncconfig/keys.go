package syncconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Keys lists the config keys accepted by Set and Get.
var Keys = []string{
	"data_dir",
	"sync.url",
	"sync.auto",
	"sync.debounce",
	"sync.request_timeout",
	"sync.interval",
	"sync.flush_on_exit",
	"sync.flush_timeout",
	"sync.retry.max_attempts",
	"sync.retry.base_delay",
	"sync.retry.multiplier",
	"sync.retry.max_delay",
}

// IsValidKey reports whether key is a known config key.
func IsValidKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// ParseBool accepts true/false/1/0.
func ParseBool(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q (use true/false/1/0)", val)
	}
}

// Set validates val and stores it under key in cfg.
func Set(cfg *Config, key, val string) error {
	duration := func(dst *string) error {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*dst = val
		return nil
	}
	flag := func(dst **bool) error {
		b, err := ParseBool(val)
		if err != nil {
			return err
		}
		*dst = &b
		return nil
	}

	switch key {
	case "data_dir":
		cfg.DataDir = val
	case "sync.url":
		cfg.Sync.URL = val
	case "sync.auto":
		return flag(&cfg.Sync.Auto)
	case "sync.debounce":
		return duration(&cfg.Sync.Debounce)
	case "sync.request_timeout":
		return duration(&cfg.Sync.RequestTimeout)
	case "sync.interval":
		return duration(&cfg.Sync.Interval)
	case "sync.flush_on_exit":
		return flag(&cfg.Sync.FlushOnExit)
	case "sync.flush_timeout":
		return duration(&cfg.Sync.FlushTimeout)
	case "sync.retry.max_attempts":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid attempt count %q", val)
		}
		cfg.Sync.Retry.MaxAttempts = &n
	case "sync.retry.base_delay":
		return duration(&cfg.Sync.Retry.BaseDelay)
	case "sync.retry.multiplier":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 1 {
			return fmt.Errorf("invalid multiplier %q (must be >= 1)", val)
		}
		cfg.Sync.Retry.Multiplier = f
	case "sync.retry.max_delay":
		return duration(&cfg.Sync.Retry.MaxDelay)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Get returns the raw value stored under key, "" when unset.
func Get(cfg *Config, key string) (string, error) {
	boolStr := func(b *bool) string {
		if b == nil {
			return ""
		}
		return strconv.FormatBool(*b)
	}

	switch key {
	case "data_dir":
		return cfg.DataDir, nil
	case "sync.url":
		return cfg.Sync.URL, nil
	case "sync.auto":
		return boolStr(cfg.Sync.Auto), nil
	case "sync.debounce":
		return cfg.Sync.Debounce, nil
	case "sync.request_timeout":
		return cfg.Sync.RequestTimeout, nil
	case "sync.interval":
		return cfg.Sync.Interval, nil
	case "sync.flush_on_exit":
		return boolStr(cfg.Sync.FlushOnExit), nil
	case "sync.flush_timeout":
		return cfg.Sync.FlushTimeout, nil
	case "sync.retry.max_attempts":
		if cfg.Sync.Retry.MaxAttempts == nil {
			return "", nil
		}
		return strconv.Itoa(*cfg.Sync.Retry.MaxAttempts), nil
	case "sync.retry.base_delay":
		return cfg.Sync.Retry.BaseDelay, nil
	case "sync.retry.multiplier":
		if cfg.Sync.Retry.Multiplier == 0 {
			return "", nil
		}
		return strconv.FormatFloat(cfg.Sync.Retry.Multiplier, 'g', -1, 64), nil
	case "sync.retry.max_delay":
		return cfg.Sync.Retry.MaxDelay, nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}

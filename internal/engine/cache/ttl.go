package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TTL bounds and environment overrides.
const (
	MinTTLSeconds = 5
	MaxTTLSeconds = 86400

	EnvTTLSeconds   = "OPENLY_CACHE_TTL_SECONDS"
	EnvCacheEnabled = "OPENLY_CACHE_ENABLED"
	EnvCacheDir     = "OPENLY_CACHE_DIR"
	EnvCacheMaxSize = "OPENLY_CACHE_MAX_SIZE_MB"

	hoursPerDay = 24
)

// ErrInvalidTTL is returned by ParseTTL for out-of-range values.
var ErrInvalidTTL = fmt.Errorf("TTL must be between %d and %d seconds", MinTTLSeconds, MaxTTLSeconds)

// Options configure a Store.
type Options struct {
	Enabled    bool
	TTLSeconds int
	MaxSizeMB  int
}

// ApplyEnv overlays the OPENLY_CACHE_* environment variables onto o and
// returns the directory override, if any. Invalid values are ignored.
func (o *Options) ApplyEnv() string {
	if v := os.Getenv(EnvCacheEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			o.Enabled = enabled
		}
	}
	if v := os.Getenv(EnvTTLSeconds); v != "" {
		if ttl, err := ParseTTL(v); err == nil {
			o.TTLSeconds = ttl
		}
	}
	if v := os.Getenv(EnvCacheMaxSize); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size >= 0 {
			o.MaxSizeMB = size
		}
	}
	return os.Getenv(EnvCacheDir)
}

// TTL returns the configured TTL as a duration.
func (o Options) TTL() time.Duration {
	return time.Duration(o.TTLSeconds) * time.Second
}

// ParseTTL accepts integer seconds ("300") or a Go duration ("5m").
func ParseTTL(s string) (int, error) {
	seconds, err := strconv.Atoi(s)
	if err != nil {
		d, parseErr := time.ParseDuration(s)
		if parseErr != nil {
			return 0, fmt.Errorf("invalid TTL %q: %w", s, parseErr)
		}
		seconds = int(d.Seconds())
	}
	if seconds < MinTTLSeconds || seconds > MaxTTLSeconds {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidTTL, seconds)
	}
	return seconds, nil
}

// FormatDuration renders d compactly: "45s", "5m", "2h30m", "1d".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	case d < hoursPerDay*time.Hour:
		h := int(d.Hours())
		if m := int(d.Minutes()) % 60; m != 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dd", int(d.Hours())/hoursPerDay)
	}
}

// Package config loads and persists openly configuration.
//
// Configuration is layered: built-in defaults, the global file
// (~/.openly/config.yaml or $OPENLY_HOME/config.yaml), an optional
// project-local overlay (.openly/config.yaml), then environment variables.
// CLI flags are applied last by the cli package.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openlyhq/openly/internal/engine/batch"
)

// Configuration defaults.
const (
	DefaultBaseURL        = "https://api.openly.finance"
	DefaultTimeoutSeconds = 30
	DefaultOutputFormat   = "table"
	DefaultPrecision      = 2
	DefaultCacheTTL       = 300
	DefaultCacheMaxSizeMB = 50

	configFileName = "config.yaml"
	outputTypeFile = "file"
)

// Environment variables read by New.
const (
	EnvHome      = "OPENLY_HOME"
	EnvAPIURL    = "OPENLY_API_URL"
	EnvAPIToken  = "OPENLY_API_TOKEN"
	EnvLogLevel  = "OPENLY_LOG_LEVEL"
	EnvLogFormat = "OPENLY_LOG_FORMAT"
	EnvTimeout   = "OPENLY_API_TIMEOUT_SECONDS"
)

// Config errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownKey    = errors.New("unknown configuration key")
)

// Config is the root configuration.
type Config struct {
	API      APIConfig               `yaml:"api"`
	Output   OutputConfig            `yaml:"output"`
	Logging  LoggingConfig           `yaml:"logging"`
	Cache    CacheConfig             `yaml:"cache"`
	Policies map[string]PolicyConfig `yaml:"policies,omitempty"`

	// configPath is the file this config was loaded from, if any.
	configPath string
}

// APIConfig configures the backend REST client.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// OutputConfig configures result rendering.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Precision     int    `yaml:"precision"`
}

// LoggingConfig configures the zerolog logger and audit log.
type LoggingConfig struct {
	Level  string      `yaml:"level"`
	Format string      `yaml:"format"`
	File   string      `yaml:"file,omitempty"`
	Audit  AuditConfig `yaml:"audit"`
}

// AuditConfig configures the audit log of bulk commands.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file,omitempty"`
}

// CacheConfig configures the read cache for idempotent GET calls.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	Directory  string `yaml:"directory,omitempty"`
}

// PolicyConfig overrides one bulk operation's built-in policy. Zero values
// keep the built-in setting.
type PolicyConfig struct {
	MaxItems int `yaml:"max_items,omitempty"`
	Window   int `yaml:"window,omitempty"`
}

// Default returns a Config populated with built-in defaults only.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Output: OutputConfig{
			DefaultFormat: DefaultOutputFormat,
			Precision:     DefaultPrecision,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: DefaultCacheTTL,
			MaxSizeMB:  DefaultCacheMaxSizeMB,
		},
	}
}

// New returns defaults overlaid with the global config file (when present)
// and environment variables. A malformed global file is ignored so that a
// broken file never blocks `openly config init`.
func New() *Config {
	cfg := Default()

	if dir, err := GetConfigDir(); err == nil {
		path := filepath.Join(dir, configFileName)
		if _, statErr := os.Stat(path); statErr == nil {
			if loaded, loadErr := Load(path); loadErr == nil {
				cfg = loaded
			}
		}
	}

	cfg.ApplyEnv()
	return cfg
}

// Load reads a config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.configPath = path
	return cfg, nil
}

// Save writes the config as YAML to path with owner-only permissions,
// since it may hold an API token.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err = os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Path returns the file this config was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

// ApplyEnv overlays environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.API.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks the config for values that would break a command.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	} else if u.Scheme != "https" && u.Scheme != "http" {
		errs = append(errs, fmt.Errorf("api.base_url scheme must be http or https, got %q", u.Scheme))
	}
	if c.API.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout_seconds must be positive, got %d", c.API.TimeoutSeconds))
	}

	switch c.Output.DefaultFormat {
	case "table", "json":
	default:
		errs = append(errs, fmt.Errorf("output.default_format must be table or json, got %q", c.Output.DefaultFormat))
	}
	if c.Output.Precision < 0 || c.Output.Precision > 8 {
		errs = append(errs, fmt.Errorf("output.precision must be between 0 and 8, got %d", c.Output.Precision))
	}

	if c.Cache.Enabled && c.Cache.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl_seconds must be positive, got %d", c.Cache.TTLSeconds))
	}

	for name := range c.Policies {
		if _, policyErr := c.PolicyFor(batch.Operation(name)); policyErr != nil {
			errs = append(errs, fmt.Errorf("policies.%s: %w", name, policyErr))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// PolicyFor returns the built-in policy for op with any configured override.
func (c *Config) PolicyFor(op batch.Operation) (batch.Policy, error) {
	policy, err := batch.DefaultPolicy(op)
	if err != nil {
		return batch.Policy{}, err
	}
	override, ok := c.Policies[string(op)]
	if !ok {
		return policy, nil
	}
	return policy.WithOverrides(override.MaxItems, override.Window)
}

// Get returns the value at a dotted key such as "api.base_url".
func (c *Config) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "api.base_url":
		return c.API.BaseURL, nil
	case "api.token":
		return c.API.Token, nil
	case "api.timeout_seconds":
		return strconv.Itoa(c.API.TimeoutSeconds), nil
	case "output.default_format":
		return c.Output.DefaultFormat, nil
	case "output.precision":
		return strconv.Itoa(c.Output.Precision), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "logging.file":
		return c.Logging.File, nil
	case "logging.audit.enabled":
		return strconv.FormatBool(c.Logging.Audit.Enabled), nil
	case "logging.audit.file":
		return c.Logging.Audit.File, nil
	case "cache.enabled":
		return strconv.FormatBool(c.Cache.Enabled), nil
	case "cache.ttl_seconds":
		return strconv.Itoa(c.Cache.TTLSeconds), nil
	case "cache.max_size_mb":
		return strconv.Itoa(c.Cache.MaxSizeMB), nil
	case "cache.directory":
		return c.Cache.Directory, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set assigns the value at a dotted key. Numeric and boolean keys are parsed.
func (c *Config) Set(key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s expects an integer: %w", key, err)
		}
		return n, nil
	}
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s expects a boolean: %w", key, err)
		}
		return b, nil
	}

	var err error
	switch strings.ToLower(key) {
	case "api.base_url":
		c.API.BaseURL = value
	case "api.token":
		c.API.Token = value
	case "api.timeout_seconds":
		c.API.TimeoutSeconds, err = atoi()
	case "output.default_format":
		c.Output.DefaultFormat = value
	case "output.precision":
		c.Output.Precision, err = atoi()
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	case "logging.file":
		c.Logging.File = value
	case "logging.audit.enabled":
		c.Logging.Audit.Enabled, err = parseBool()
	case "logging.audit.file":
		c.Logging.Audit.File = value
	case "cache.enabled":
		c.Cache.Enabled, err = parseBool()
	case "cache.ttl_seconds":
		c.Cache.TTLSeconds, err = atoi()
	case "cache.max_size_mb":
		c.Cache.MaxSizeMB, err = atoi()
	case "cache.directory":
		c.Cache.Directory = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return err
}

// Keys lists the keys accepted by Get and Set.
func Keys() []string {
	return []string{
		"api.base_url", "api.token", "api.timeout_seconds",
		"output.default_format", "output.precision",
		"logging.level", "logging.format", "logging.file",
		"logging.audit.enabled", "logging.audit.file",
		"cache.enabled", "cache.ttl_seconds", "cache.max_size_mb", "cache.directory",
	}
}

// RedactedToken returns the token with all but the last four characters masked.
func (c *Config) RedactedToken() string {
	const visible = 4
	t := c.API.Token
	if len(t) <= visible {
		return strings.Repeat("*", len(t))
	}
	return strings.Repeat("*", len(t)-visible) + t[len(t)-visible:]
}

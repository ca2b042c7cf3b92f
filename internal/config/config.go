package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all mathblog configuration.
type Config struct {
	// Content
	PostsDir string `yaml:"posts_dir"`
	Workers  int    `yaml:"workers"`
	Watch    bool   `yaml:"watch"`

	// Storage
	DatabasePath string `yaml:"database_path"`

	// HTTP
	ListenAddr        string `yaml:"listen_addr"`
	ReadHeaderTimeout string `yaml:"read_header_timeout"`

	// Response cache; memory when MemcachedAddr is empty
	MemcachedAddr string `yaml:"memcached_addr"`
	CacheTTL      string `yaml:"cache_ttl"`

	// bcrypt hash guarding POST /admin/reload; the endpoint is disabled when empty
	AdminTokenHash string `yaml:"admin_token_hash"`

	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		PostsDir:          "_posts",
		Workers:           4,
		DatabasePath:      "mathblog.db",
		ListenAddr:        ":8080",
		ReadHeaderTimeout: "3s",
		CacheTTL:          "5m",
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a .env file if one exists, then the YAML file at path (a
// missing file yields defaults), then applies MATHBLOG_* environment
// overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"MATHBLOG_POSTS_DIR":           &c.PostsDir,
		"MATHBLOG_DATABASE_PATH":       &c.DatabasePath,
		"MATHBLOG_LISTEN_ADDR":         &c.ListenAddr,
		"MATHBLOG_READ_HEADER_TIMEOUT": &c.ReadHeaderTimeout,
		"MATHBLOG_MEMCACHED_ADDR":      &c.MemcachedAddr,
		"MATHBLOG_CACHE_TTL":           &c.CacheTTL,
		"MATHBLOG_ADMIN_TOKEN_HASH":    &c.AdminTokenHash,
		"MATHBLOG_LOG_LEVEL":           &c.Logging.Level,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// PORT is what most hosting platforms set.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("MATHBLOG_LISTEN_ADDR") == "" {
		c.ListenAddr = ":" + port
	}

	if v := os.Getenv("MATHBLOG_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MATHBLOG_WORKERS: %w", err)
		}
		c.Workers = n
	}
	for key, dst := range map[string]*bool{
		"MATHBLOG_WATCH":           &c.Watch,
		"MATHBLOG_LOG_DEVELOPMENT": &c.Logging.Development,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.PostsDir) == "" {
		errs = append(errs, errors.New("posts_dir is required"))
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := parseDuration(c.ReadHeaderTimeout); err != nil {
		errs = append(errs, fmt.Errorf("read_header_timeout: %w", err))
	}
	if _, err := parseDuration(c.CacheTTL); err != nil {
		errs = append(errs, fmt.Errorf("cache_ttl: %w", err))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// GetReadHeaderTimeout returns the parsed read header timeout.
func (c *Config) GetReadHeaderTimeout() time.Duration {
	d, _ := parseDuration(c.ReadHeaderTimeout)
	if d == 0 {
		return 3 * time.Second
	}
	return d
}

// GetCacheTTL returns the parsed cache TTL; zero means entries never expire.
func (c *Config) GetCacheTTL() time.Duration {
	d, _ := parseDuration(c.CacheTTL)
	return d
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"countdown/internal/clock"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultOffsetMin   = 180
	defaultLogLevel    = "info"
	defaultAdvanceCron = "1 0 * * *"
	defaultSQLitePath  = "/var/lib/countdown/countdown.db"
	defaultRedisAddr   = "127.0.0.1:6379"
)

// StoreConfig selects the countdown persistence backend.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "redis".
	Driver string `yaml:"driver" json:"driver"`

	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`

	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// ReferenceOffsetMinutes is the fixed UTC offset of the reference civil
	// calendar. 180 is Arabia Standard Time.
	ReferenceOffsetMinutes int `yaml:"reference_offset_minutes" json:"reference_offset_minutes"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// AdvanceCron is the five-field schedule of the auto-advance sweep,
	// evaluated in the reference zone.
	AdvanceCron string `yaml:"advance_cron" json:"advance_cron"`

	// CatalogPath optionally points at a YAML event catalog. Empty means
	// the built-in catalog.
	CatalogPath string `yaml:"catalog_path,omitempty" json:"catalog_path,omitempty"`

	Store StoreConfig `yaml:"store" json:"store"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 defaultListen,
		ReferenceOffsetMinutes: defaultOffsetMin,
		LogLevel:               defaultLogLevel,
		AdvanceCron:            defaultAdvanceCron,
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: defaultSQLitePath,
		},
	}
}

// Normalize fills in missing/zero values with defaults so partially filled
// configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	// Real offsets lie within UTC-12..UTC+14.
	if c.ReferenceOffsetMinutes == 0 || c.ReferenceOffsetMinutes < -12*60 || c.ReferenceOffsetMinutes > 14*60 {
		c.ReferenceOffsetMinutes = defaultOffsetMin
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.AdvanceCron == "" {
		c.AdvanceCron = defaultAdvanceCron
	}

	switch c.Store.Driver {
	case "sqlite", "redis":
	default:
		c.Store.Driver = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = defaultSQLitePath
	}
	if c.Store.Driver == "redis" && c.Store.RedisAddr == "" {
		c.Store.RedisAddr = defaultRedisAddr
	}

	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// ReferenceOffset returns the configured offset as a duration.
func (c *Config) ReferenceOffset() time.Duration {
	if c.ReferenceOffsetMinutes == 0 {
		return clock.DefaultOffset
	}
	return time.Duration(c.ReferenceOffsetMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether an unsaved default is good enough.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file in the same directory,
// then rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".countdown-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

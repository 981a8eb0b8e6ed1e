// Package config handles configuration loading for edgarkpi.
// It supports YAML config files with environment variable overrides and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: EDGARKPI_<SECTION>_<KEY>.
const EnvPrefix = "EDGARKPI"

// Config represents the complete application configuration.
type Config struct {
	SEC     SECConfig     `mapstructure:"sec"     yaml:"sec"     json:"sec"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"   json:"cache"`
	Data    DataConfig    `mapstructure:"data"    yaml:"data"    json:"data"`
	KPI     KPIConfig     `mapstructure:"kpi"     yaml:"kpi"     json:"kpi"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"     json:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// SECConfig holds the upstream client settings.
type SECConfig struct {
	UserAgent     string  `mapstructure:"user_agent"     yaml:"user_agent"     json:"-"`
	Email         string  `mapstructure:"email"          yaml:"email"          json:"-"`
	ThrottleMS    int     `mapstructure:"throttle_ms"    yaml:"throttle_ms"    json:"throttle_ms"`
	TimeoutSec    int     `mapstructure:"timeout_sec"    yaml:"timeout_sec"    json:"timeout_sec"`
	MaxRetries    int     `mapstructure:"max_retries"    yaml:"max_retries"    json:"max_retries"`
	BackoffFactor float64 `mapstructure:"backoff_factor" yaml:"backoff_factor" json:"backoff_factor"`
}

// CacheConfig selects the fetch cache backend and its TTLs (seconds).
type CacheConfig struct {
	Backend        string `mapstructure:"backend"         yaml:"backend"         json:"backend"` // "memory" or "redis"
	RedisAddr      string `mapstructure:"redis_addr"      yaml:"redis_addr"      json:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"  yaml:"redis_password"  json:"-"`
	RedisDB        int    `mapstructure:"redis_db"        yaml:"redis_db"        json:"redis_db"`
	TickerTTL      int    `mapstructure:"ticker_ttl"      yaml:"ticker_ttl"      json:"ticker_ttl"`
	SubmissionsTTL int    `mapstructure:"submissions_ttl" yaml:"submissions_ttl" json:"submissions_ttl"`
	FactsTTL       int    `mapstructure:"facts_ttl"       yaml:"facts_ttl"       json:"facts_ttl"`
	FeedTTL        int    `mapstructure:"feed_ttl"        yaml:"feed_ttl"        json:"feed_ttl"`
	DocumentTTL    int    `mapstructure:"document_ttl"    yaml:"document_ttl"    json:"document_ttl"`
}

// DataConfig points at an optional local mirror of the EDGAR JSON files.
type DataConfig struct {
	OfflineDir string `mapstructure:"offline_dir" yaml:"offline_dir" json:"offline_dir"`
}

// KPIConfig shapes each snapshot.
type KPIConfig struct {
	Extended     bool `mapstructure:"extended"      yaml:"extended"      json:"extended"` // add EPS Diluted
	FilingsLimit int  `mapstructure:"filings_limit" yaml:"filings_limit" json:"filings_limit"`
	PanelTail    int  `mapstructure:"panel_tail"    yaml:"panel_tail"    json:"panel_tail"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "console" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.edgarkpi/config.yaml (home directory)
//  3. /etc/edgarkpi/config.yaml (system)
//
// A .env file in the working directory is loaded first; it never overrides
// variables already set. Environment variables override config file values.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".edgarkpi"))
	v.AddConfigPath("/etc/edgarkpi")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// loadDotEnv loads a .env file if present.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// SEC client defaults
	v.SetDefault("sec.user_agent", "")
	v.SetDefault("sec.email", "")
	v.SetDefault("sec.throttle_ms", 350)
	v.SetDefault("sec.timeout_sec", 30)
	v.SetDefault("sec.max_retries", 6)
	v.SetDefault("sec.backoff_factor", 0.7)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ticker_ttl", 24*3600)     // 24 hours
	v.SetDefault("cache.submissions_ttl", 6*3600) // 6 hours
	v.SetDefault("cache.facts_ttl", 6*3600)
	v.SetDefault("cache.feed_ttl", 600)
	v.SetDefault("cache.document_ttl", 3600)

	v.SetDefault("data.offline_dir", "")

	// KPI defaults
	v.SetDefault("kpi.extended", false)
	v.SetDefault("kpi.filings_limit", 25)
	v.SetDefault("kpi.panel_tail", 12)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if ua := os.Getenv(EnvPrefix + "_SEC_USER_AGENT"); ua != "" {
		cfg.SEC.UserAgent = ua
	}
	if email := os.Getenv(EnvPrefix + "_SEC_EMAIL"); email != "" {
		cfg.SEC.Email = email
	}
	if pw := os.Getenv(EnvPrefix + "_CACHE_REDIS_PASSWORD"); pw != "" {
		cfg.Cache.RedisPassword = pw
	}
}

// UserAgentString returns the User-Agent sent to SEC: the explicit
// user_agent, else one built around the contact email, else "".
func (c SECConfig) UserAgentString() string {
	if ua := strings.TrimSpace(c.UserAgent); ua != "" {
		return ua
	}
	if email := strings.TrimSpace(c.Email); email != "" {
		return "edgarkpi KPI Tracker " + email
	}
	return ""
}

// Throttle is the minimum spacing between upstream requests.
func (c SECConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleMS) * time.Millisecond
}

// Timeout is the per-request timeout.
func (c SECConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// TTL converts a seconds setting to a duration.
func TTL(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// Addr is the listen address for the API server.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

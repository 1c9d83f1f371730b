package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the hashtag crawler
type Config struct {
	// Instagram session settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Collection defaults, overridable per crawl from the CLI
	Collection CollectionConfig `yaml:"collection" json:"collection"`

	// Rate limiting and retry behavior for remote calls
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds session-related configuration
type InstagramConfig struct {
	SessionID   string `yaml:"session_id" json:"session_id"`
	CSRFToken   string `yaml:"csrf_token" json:"csrf_token"`
	UserID      string `yaml:"user_id" json:"user_id"`
	UserAgent   string `yaml:"user_agent" json:"user_agent"`
	CookiesFile string `yaml:"cookies_file" json:"cookies_file"`
}

// CollectionConfig holds the parameters of one collection run.
// MinRecords > MaxRecords can never succeed and is rejected by Validate.
type CollectionConfig struct {
	OutputDir    string    `yaml:"output_dir" json:"output_dir"`
	MinRecords   int       `yaml:"min_records" json:"min_records"`
	MaxRecords   int       `yaml:"max_records" json:"max_records"`
	MinTimestamp time.Time `yaml:"min_timestamp,omitempty" json:"min_timestamp,omitempty"`
}

// Validate checks the collection parameters independently of the rest of
// the configuration, so per-crawl overrides can be re-checked.
func (c *CollectionConfig) Validate() error {
	var errs []error

	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.MinRecords < 0 {
		errs = append(errs, errors.New("min records cannot be negative"))
	}
	if c.MaxRecords < 1 {
		errs = append(errs, errors.New("max records must be at least 1"))
	}
	if c.MinRecords > c.MaxRecords {
		errs = append(errs, errors.New("min records cannot exceed max records"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RateLimitConfig holds rate limiting and retry configuration
type RateLimitConfig struct {
	RequestsPerMinute    int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	ProfileMaxAttempts   int           `yaml:"profile_max_attempts" json:"profile_max_attempts"`
	ProfileBackoffBase   time.Duration `yaml:"profile_backoff_base" json:"profile_backoff_base"`
	FeedRetryWait        time.Duration `yaml:"feed_retry_wait" json:"feed_retry_wait"`
	CourtesyDelay        time.Duration `yaml:"courtesy_delay" json:"courtesy_delay"`
	RequestTimeout       time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Collection: CollectionConfig{
			OutputDir:  "./hashtags",
			MinRecords: 1,
			MaxRecords: 100,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:  60,
			ProfileMaxAttempts: 3,
			ProfileBackoffBase: 5 * time.Second,
			FeedRetryWait:      60 * time.Second,
			CourtesyDelay:      50 * time.Millisecond,
			RequestTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if sessionID := os.Getenv("IGCRAWL_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken := os.Getenv("IGCRAWL_CSRF_TOKEN"); csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if userID := os.Getenv("IGCRAWL_USER_ID"); userID != "" {
		c.Instagram.UserID = userID
	}
	if userAgent := os.Getenv("IGCRAWL_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}
	if cookies := os.Getenv("IGCRAWL_COOKIES_FILE"); cookies != "" {
		c.Instagram.CookiesFile = cookies
	}

	if rpm := os.Getenv("IGCRAWL_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if outputDir := os.Getenv("IGCRAWL_OUTPUT_DIR"); outputDir != "" {
		c.Collection.OutputDir = outputDir
	}

	if logLevel := os.Getenv("IGCRAWL_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".igcrawl.yaml",
		".igcrawl.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igcrawl", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igcrawl", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igcrawl.yaml"),
		filepath.Join(os.Getenv("HOME"), ".igcrawl.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if err := c.Collection.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.ProfileMaxAttempts <= 0 {
		errs = append(errs, errors.New("profile max attempts must be positive"))
	}
	if c.RateLimit.FeedRetryWait < 0 {
		errs = append(errs, errors.New("feed retry wait cannot be negative"))
	}
	if c.RateLimit.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "output-dir":
			if v, ok := value.(string); ok && v != "" {
				c.Collection.OutputDir = v
			}
		case "max-posts":
			if v, ok := value.(int); ok && v > 0 {
				c.Collection.MaxRecords = v
			}
		case "min-posts":
			if v, ok := value.(int); ok && v >= 0 {
				c.Collection.MinRecords = v
			}
		case "since":
			if v, ok := value.(time.Time); ok && !v.IsZero() {
				c.Collection.MinTimestamp = v
			}
		case "cookies":
			if v, ok := value.(string); ok && v != "" {
				c.Instagram.CookiesFile = v
			}
		case "requests-per-minute":
			if v, ok := value.(int); ok && v > 0 {
				c.RateLimit.RequestsPerMinute = v
			}
		case "log-level":
			if v, ok := value.(string); ok && v != "" {
				c.Logging.Level = v
			}
		case "log-file":
			if v, ok := value.(string); ok && v != "" {
				c.Logging.File = v
			}
		}
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load builds the effective configuration from defaults, config file,
// environment, and command line flags, in that order of precedence.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igcrawl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
